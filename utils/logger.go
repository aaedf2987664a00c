package utils

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger writes operator messages to w. Per-candidate failures are only
// visible at debug level, which verbose mode enables.
func NewLogger(w io.Writer, verbose, noColor bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		DisableColors:   noColor,
	})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
