package redish

import (
	"bytes"
	"fmt"
	"strconv"
)

// Kind identifies the type of a Reply.
type Kind int

// List of reply kinds, as sent by a redis server.
const (
	KindStatus Kind = iota + 1
	KindError
	KindInteger
	KindBulk
	KindArray
	KindNil
)

var kindNames = [...]string{
	KindStatus:  "status",
	KindError:   "error",
	KindInteger: "integer",
	KindBulk:    "bulk",
	KindArray:   "array",
	KindNil:     "nil",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Reply is a reply received from the redis server. Only the field that
// corresponds to its Kind is meaningful: Str for status, error and bulk
// replies, Int for integer replies and Elems for arrays.
type Reply struct {
	Kind  Kind
	Str   []byte
	Int   int64
	Elems []*Reply

	released bool
}

// StatusReply returns a status reply with the text s.
func StatusReply(s string) *Reply {
	return &Reply{Kind: KindStatus, Str: []byte(s)}
}

// ErrorReply returns an error reply with the message msg.
func ErrorReply(msg string) *Reply {
	return &Reply{Kind: KindError, Str: []byte(msg)}
}

// IntegerReply returns an integer reply.
func IntegerReply(n int64) *Reply {
	return &Reply{Kind: KindInteger, Int: n}
}

// BulkReply returns a bulk string reply. A nil b is an absent bulk
// string, which is the same as NilReply. A non-nil, empty b is an empty
// bulk string.
func BulkReply(b []byte) *Reply {
	if b == nil {
		return NilReply()
	}
	return &Reply{Kind: KindBulk, Str: b}
}

// ArrayReply returns an array reply holding elems, in order.
func ArrayReply(elems ...*Reply) *Reply {
	if elems == nil {
		elems = []*Reply{}
	}
	return &Reply{Kind: KindArray, Elems: elems}
}

// NilReply returns the nil reply.
func NilReply() *Reply {
	return &Reply{Kind: KindNil}
}

// String returns a debugging representation of the reply.
func (r *Reply) String() string {
	var buf bytes.Buffer
	r.format(&buf)
	return buf.String()
}

func (r *Reply) format(buf *bytes.Buffer) {
	if r == nil {
		buf.WriteString("<nil>")
		return
	}
	switch r.Kind {
	case KindStatus:
		buf.WriteString("+" + string(r.Str))
	case KindError:
		buf.WriteString("-" + string(r.Str))
	case KindInteger:
		buf.WriteString(":" + strconv.FormatInt(r.Int, 10))
	case KindBulk:
		buf.WriteString(strconv.Quote(string(r.Str)))
	case KindNil:
		buf.WriteString("(nil)")
	case KindArray:
		buf.WriteByte('[')
		for i, e := range r.Elems {
			if i > 0 {
				buf.WriteString(", ")
			}
			e.format(buf)
		}
		buf.WriteByte(']')
	default:
		fmt.Fprintf(buf, "<%s>", r.Kind)
	}
}
