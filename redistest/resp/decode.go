// Package resp implements the subset of the Redis Serialization Protocol
// (RESP) needed by a mock server: decoding client requests and encoding
// replies.
//
// See http://redis.io/topics/protocol for the reference.
package resp

import (
	"errors"
	"io"
	"strconv"
)

var (
	// ErrMissingCRLF is returned if a \r\n is missing in the data.
	ErrMissingCRLF = errors.New("resp: missing CRLF")

	// ErrInvalidInteger is returned if a length cannot be parsed as an
	// integer.
	ErrInvalidInteger = errors.New("resp: invalid integer")

	// ErrNotAnArray is returned if the request is not an array.
	ErrNotAnArray = errors.New("resp: expected an array type")

	// ErrInvalidRequest is returned if the request is not an array of bulk
	// strings with at least one element.
	ErrInvalidRequest = errors.New("resp: invalid request, must be an array of bulk strings with at least one element")
)

// maxLine is the maximum length of a length line, sign and CRLF included.
const maxLine = 32

// BytesReader defines the methods required by DecodeRequest. Notably, a
// *bufio.Reader and a *bytes.Buffer both satisfy this interface.
type BytesReader interface {
	io.Reader
	io.ByteReader
}

// DecodeRequest reads a request from r and returns the command name
// followed by its arguments. The bulk strings are binary-safe, the
// returned strings hold the exact bytes sent by the client.
func DecodeRequest(r BytesReader) ([]string, error) {
	ch, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if ch != '*' {
		return nil, ErrNotAnArray
	}

	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, ErrInvalidRequest
	}

	req := make([]string, n)
	for i := range req {
		ch, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if ch != '$' {
			return nil, ErrInvalidRequest
		}
		if req[i], err = readBulk(r); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// readBulk reads the length and data of a bulk string, the '$' prefix
// being already consumed.
func readBulk(r BytesReader) (string, error) {
	n, err := readLength(r)
	if err != nil {
		return "", err
	}
	if n < 0 {
		// nil bulk strings are not valid in a request
		return "", ErrInvalidRequest
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return "", err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return "", ErrMissingCRLF
	}
	return string(buf[:n]), nil
}

// readLength reads a line terminated by CRLF and parses it as a signed
// integer.
func readLength(r BytesReader) (int, error) {
	var line []byte
	for {
		ch, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if ch == '\n' {
			break
		}
		line = append(line, ch)
		if len(line) > maxLine {
			return 0, ErrInvalidInteger
		}
	}

	if len(line) == 0 || line[len(line)-1] != '\r' {
		return 0, ErrMissingCRLF
	}
	n, err := strconv.Atoi(string(line[:len(line)-1]))
	if err != nil {
		return 0, ErrInvalidInteger
	}
	return n, nil
}
