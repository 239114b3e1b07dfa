package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrInvalidValue is returned if the value to encode is not supported.
var ErrInvalidValue = errors.New("resp: invalid value")

// SimpleString is a status reply. It cannot contain \r or \n characters.
type SimpleString string

// Error is an error reply. It cannot contain \r or \n characters.
type Error string

// Array is an array reply. A nil Array is encoded as the nil array
// reply, *-1.
type Array []interface{}

// String returns the elements of the array separated by spaces, each
// formatted with %v.
func (a Array) String() string {
	if a == nil {
		return "(nil array)"
	}
	buf := make([]byte, 0, 16*len(a))
	for i, v := range a {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = fmt.Appendf(buf, "%v", v)
	}
	return string(buf)
}

// Encode writes the encoding of v to w. The supported values are:
//
//	nil                     nil bulk string ($-1)
//	string, []byte          bulk string
//	SimpleString            status reply
//	Error, error            error reply
//	int, int64              integer reply
//	bool                    integer reply, 1 or 0
//	Array, []interface{}    array reply, encoded recursively
//	[]string                array of bulk strings
//
// A nil Array or []string is encoded as the nil array (*-1).
func Encode(w io.Writer, v interface{}) error {
	bw := bufio.NewWriter(w)
	if err := encodeValue(bw, v); err != nil {
		return err
	}
	return bw.Flush()
}

func encodeValue(w *bufio.Writer, v interface{}) error {
	switch v := v.(type) {
	case nil:
		writeLine(w, '$', "-1")
	case string:
		writeBulk(w, v)
	case []byte:
		if v == nil {
			writeLine(w, '$', "-1")
			break
		}
		writeBulk(w, string(v))
	case SimpleString:
		writeLine(w, '+', string(v))
	case Error:
		writeLine(w, '-', string(v))
	case error:
		writeLine(w, '-', v.Error())
	case int:
		writeLine(w, ':', strconv.Itoa(v))
	case int64:
		writeLine(w, ':', strconv.FormatInt(v, 10))
	case bool:
		if v {
			writeLine(w, ':', "1")
		} else {
			writeLine(w, ':', "0")
		}
	case []string:
		if v == nil {
			writeLine(w, '*', "-1")
			break
		}
		writeLine(w, '*', strconv.Itoa(len(v)))
		for _, s := range v {
			writeBulk(w, s)
		}
	case []interface{}:
		return encodeArray(w, Array(v))
	case Array:
		return encodeArray(w, v)
	default:
		return ErrInvalidValue
	}
	return nil
}

func encodeArray(w *bufio.Writer, a Array) error {
	if a == nil {
		writeLine(w, '*', "-1")
		return nil
	}
	writeLine(w, '*', strconv.Itoa(len(a)))
	for _, v := range a {
		if err := encodeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

// writeBulk writes s as a bulk string. Errors are reported by the final
// Flush of the writer.
func writeBulk(w *bufio.Writer, s string) {
	writeLine(w, '$', strconv.Itoa(len(s)))
	w.WriteString(s)
	w.WriteString("\r\n")
}

func writeLine(w *bufio.Writer, prefix byte, s string) {
	w.WriteByte(prefix)
	w.WriteString(s)
	w.WriteString("\r\n")
}
