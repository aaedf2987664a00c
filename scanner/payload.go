package scanner

// Expand pairs every word with each extension. The bare word comes first,
// then word.ext in the order the extensions were given.
func Expand(words, extensions []string) []string {
	out := make([]string, 0, len(words)*(1+len(extensions)))
	for _, w := range words {
		out = append(out, w)
		for _, ext := range extensions {
			out = append(out, w+"."+ext)
		}
	}
	return out
}
