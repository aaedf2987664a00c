// Package internal holds transport helpers that are not part of the public API.
package internal

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
)

// FasthttpHTTPDialer returns a dialer that tunnels every connection through
// an HTTP proxy with CONNECT. timeout bounds both the TCP dial and the
// CONNECT exchange.
func FasthttpHTTPDialer(proxyAddr string, timeout time.Duration) (fasthttp.DialFunc, error) {
	proxyURL, err := url.Parse(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("parse proxy address: %w", err)
	}
	if proxyURL.Host == "" {
		return nil, fmt.Errorf("proxy address %q has no host", proxyAddr)
	}
	return func(addr string) (net.Conn, error) {
		conn, err := net.DialTimeout("tcp", proxyURL.Host, timeout)
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(timeout))
		}
		_, err = conn.Write([]byte("CONNECT " + addr + " HTTP/1.1\r\nHost: " + addr + "\r\n\r\n"))
		if err != nil {
			conn.Close()
			return nil, err
		}
		br := bufio.NewReader(conn)
		resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodConnect})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("read proxy response: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			conn.Close()
			return nil, fmt.Errorf("proxy refused CONNECT to %s: %s", addr, resp.Status)
		}
		_ = conn.SetDeadline(time.Time{})
		if br.Buffered() > 0 {
			return &bufferedConn{Conn: conn, r: br}, nil
		}
		return conn, nil
	}, nil
}

// bufferedConn hands out bytes the proxy sent right after its reply before
// reading from the tunnel again.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
