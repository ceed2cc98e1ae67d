package portal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/muurk/wifiportal/internal/logging"
)

var (
	errChunkedBody  = errors.New("chunked transfer encoding is not supported")
	errBodyTooLarge = errors.New("request body exceeds limit")
)

// request is the subset of an HTTP request the portal acts on.
type request struct {
	method      string
	path        string
	contentType string
	body        []byte
}

// readRequest reads one HTTP/1.x request from conn, including a body of at
// most maxBody bytes declared by Content-Length.
func readRequest(conn net.Conn, maxBody int64) (*request, error) {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to read HTTP request: %w", err)
	}
	defer req.Body.Close()

	if len(req.TransferEncoding) > 0 {
		return nil, errChunkedBody
	}
	if maxBody > 0 && req.ContentLength > maxBody {
		return nil, fmt.Errorf("%w: %d > %d bytes", errBodyTooLarge, req.ContentLength, maxBody)
	}

	// req.Body is bounded by Content-Length.
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	return &request{
		method:      req.Method,
		path:        req.URL.Path,
		contentType: req.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

// writeResponse writes a complete HTTP/1.0 response with an HTML body. The
// connection is always closed by the caller afterwards.
func writeResponse(conn net.Conn, remoteAddr string, status int, body string) error {
	header := fmt.Sprintf("HTTP/1.0 %d %s\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n"+
		"\r\n", status, http.StatusText(status), len(body))

	logging.LogRawBytes("HTTP response header", []byte(header))

	if _, err := io.WriteString(conn, header+body); err != nil {
		return fmt.Errorf("failed to write HTTP %d response: %w", status, err)
	}

	logging.LogHTTPResponse(remoteAddr, status, len(body))
	return nil
}
