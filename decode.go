package redish

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ElementPolicy controls how list elements that cannot be represented in
// the element shape are decoded. An element is unrepresentable when it is
// a nil reply, or when it is an array and the element shape is a scalar
// shape other than Dynamic.
type ElementPolicy int

const (
	// ElementOptional decodes list elements to an optional Go type: the
	// element type itself if it can be nil (interface, slice and map
	// types), a pointer to it otherwise. Unrepresentable elements are nil.
	// For example, ListOf(Int64) decodes to []*int64.
	ElementOptional ElementPolicy = iota

	// ElementSentinel decodes list elements to the element Go type and
	// uses a sentinel value for unrepresentable elements: the minimum
	// value for signed integers, the maximum value for unsigned integers,
	// NaN for floats, false for booleans, an empty string for text and nil
	// for the other types. For example, ListOf(Int64) decodes to []int64
	// and a nil element is math.MinInt64.
	ElementSentinel
)

// DecodeOptions configures the decoding of replies. The zero value is
// the default configuration, used by Decode.
type DecodeOptions struct {
	// Elements is the policy for list elements, ElementOptional by default.
	Elements ElementPolicy

	// EmptyBulkIsNil decodes an empty bulk string as if it was a nil
	// reply. By default an empty bulk string is an empty value, distinct
	// from nil.
	EmptyBulkIsNil bool

	// TruncateIntegers converts integer replies that overflow the
	// requested integer shape using Go's conversion rules instead of
	// failing with a FormatError wrapping strconv.ErrRange.
	TruncateIntegers bool
}

// LegacyDecodeOptions reproduces the behaviour of older clients that
// used sentinel values in lists, collapsed empty bulk strings to nil and
// truncated out-of-range integers.
var LegacyDecodeOptions = DecodeOptions{
	Elements:         ElementSentinel,
	EmptyBulkIsNil:   true,
	TruncateIntegers: true,
}

// Decode decodes the reply r according to the shape s using the default
// options. See DecodeOptions.Decode for details.
func Decode(r *Reply, s Shape) (interface{}, error) {
	return DecodeOptions{}.Decode(r, s)
}

// Decode decodes the reply r according to the shape s. A nil reply always
// decodes to a nil value, regardless of the shape. An error reply always
// returns a ServerError. Otherwise the Go type of the returned value is
// determined by the shape:
//
//	Dynamic      string, int64, []interface{} or nil
//	Text         string
//	Binary       []byte
//	Bool         bool
//	IntN, UintN  the corresponding Go integer type
//	FloatN       the corresponding Go float type
//	ListOf(E)    a slice of E's type, see ElementPolicy
//	MapOf(K, V)  map[K]V
//
// Status and bulk string replies are decoded the same way. An array
// decoded with a MapOf shape is interpreted as a list of alternating keys
// and values; a trailing key without a value is ignored and later keys
// overwrite earlier ones.
func (o DecodeOptions) Decode(r *Reply, s Shape) (interface{}, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return o.decode(r, s)
}

func (o DecodeOptions) decode(r *Reply, s Shape) (interface{}, error) {
	if r == nil {
		return nil, &ProtocolError{}
	}

	switch r.Kind {
	case KindError:
		return nil, ServerError(r.Str)
	case KindNil:
		return nil, nil
	case KindStatus, KindBulk:
		if r.Kind == KindBulk && len(r.Str) == 0 && o.EmptyBulkIsNil {
			return nil, nil
		}
		return o.decodeText(r, s)
	case KindInteger:
		return o.decodeInteger(r.Int, s)
	case KindArray:
		return o.decodeArray(r, s)
	default:
		return nil, &ProtocolError{Kind: r.Kind}
	}
}

func (o DecodeOptions) decodeText(r *Reply, s Shape) (interface{}, error) {
	txt := string(r.Str)

	switch {
	case s.kind == shapeDynamic, s.kind == shapeText:
		return txt, nil

	case s.kind == shapeBinary:
		b := make([]byte, len(r.Str))
		copy(b, r.Str)
		return b, nil

	case s.kind == shapeBool:
		switch {
		case txt == "1", strings.EqualFold(txt, "true"):
			return true, nil
		case txt == "0", strings.EqualFold(txt, "false"):
			return false, nil
		}
		return nil, &FormatError{Shape: s, Text: txt, Err: ErrNotBool}

	case s.isSigned():
		n, err := strconv.ParseInt(txt, 10, s.bitSize())
		if err != nil {
			return nil, &FormatError{Shape: s, Text: txt, Err: numError(err)}
		}
		return signedAs(n, s), nil

	case s.isUnsigned():
		n, err := strconv.ParseUint(txt, 10, s.bitSize())
		if err != nil {
			return nil, &FormatError{Shape: s, Text: txt, Err: numError(err)}
		}
		return unsignedAs(n, s), nil

	case s.isFloat():
		f, err := strconv.ParseFloat(txt, s.bitSize())
		if err != nil {
			return nil, &FormatError{Shape: s, Text: txt, Err: numError(err)}
		}
		if s.kind == shapeFloat32 {
			return float32(f), nil
		}
		return f, nil
	}

	return nil, &TypeMismatchError{Requested: s.String(), Actual: r.Kind.String()}
}

func (o DecodeOptions) decodeInteger(n int64, s Shape) (interface{}, error) {
	switch {
	case s.kind == shapeDynamic, s.kind == shapeInt64:
		return n, nil

	case s.kind == shapeText:
		return strconv.FormatInt(n, 10), nil

	case s.kind == shapeBinary:
		return strconv.AppendInt(nil, n, 10), nil

	case s.kind == shapeBool:
		switch n {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
		return nil, &FormatError{Shape: s, Text: strconv.FormatInt(n, 10), Err: ErrNotBool}

	case s.isSigned():
		if bits := s.bitSize(); !o.TruncateIntegers && bits < 64 {
			if lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1; n < lo || n > hi {
				return nil, &FormatError{Shape: s, Text: strconv.FormatInt(n, 10), Err: strconv.ErrRange}
			}
		}
		return signedAs(n, s), nil

	case s.isUnsigned():
		if !o.TruncateIntegers {
			bits := s.bitSize()
			if n < 0 || (bits < 64 && uint64(n) > uint64(1)<<bits-1) {
				return nil, &FormatError{Shape: s, Text: strconv.FormatInt(n, 10), Err: strconv.ErrRange}
			}
		}
		return unsignedAs(uint64(n), s), nil

	case s.kind == shapeFloat32:
		return float32(n), nil

	case s.kind == shapeFloat64:
		return float64(n), nil
	}

	return nil, &TypeMismatchError{Requested: s.String(), Actual: KindInteger.String()}
}

func (o DecodeOptions) decodeArray(r *Reply, s Shape) (interface{}, error) {
	switch s.kind {
	case shapeDynamic:
		vals := make([]interface{}, len(r.Elems))
		for i, e := range r.Elems {
			v, err := o.decode(e, Dynamic)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil

	case shapeList:
		es := s.Elem()
		list := reflect.MakeSlice(s.goType(o.Elements), len(r.Elems), len(r.Elems))
		for i, e := range r.Elems {
			v, err := o.decodeElem(e, es)
			if err != nil {
				return nil, err
			}
			list.Index(i).Set(v)
		}
		return list.Interface(), nil

	case shapeMap:
		ks, vs := s.Key(), s.Elem()
		m := reflect.MakeMapWithSize(s.goType(o.Elements), len(r.Elems)/2)
		for i := 0; i+1 < len(r.Elems); i += 2 {
			k, err := o.decodeMapItem(r.Elems[i], ks)
			if err != nil {
				return nil, err
			}
			v, err := o.decodeMapItem(r.Elems[i+1], vs)
			if err != nil {
				return nil, err
			}
			m.SetMapIndex(k, v)
		}
		return m.Interface(), nil
	}

	return nil, &TypeMismatchError{Requested: s.String(), Actual: KindArray.String()}
}

// unrepresentable returns true if the reply r cannot be decoded as an
// element of shape s.
func (o DecodeOptions) unrepresentable(r *Reply, s Shape) bool {
	if r == nil {
		return false
	}
	switch r.Kind {
	case KindNil:
		return true
	case KindBulk:
		return len(r.Str) == 0 && o.EmptyBulkIsNil
	case KindArray:
		return !s.isContainer() && s.kind != shapeDynamic
	}
	return false
}

// decodeElem decodes the list element r with shape s and returns a value
// of the list element type.
func (o DecodeOptions) decodeElem(r *Reply, s Shape) (reflect.Value, error) {
	et := s.elemType(o.Elements)
	if o.unrepresentable(r, s) {
		if o.Elements == ElementSentinel {
			return sentinel(s), nil
		}
		return reflect.Zero(et), nil
	}

	v, err := o.decode(r, s)
	if err != nil {
		return reflect.Value{}, err
	}
	if v == nil {
		return reflect.Zero(et), nil
	}
	rv := reflect.ValueOf(v)
	if et.Kind() == reflect.Ptr && rv.Type() == et.Elem() {
		p := reflect.New(et.Elem())
		p.Elem().Set(rv)
		return p, nil
	}
	return rv, nil
}

// decodeMapItem decodes the map key or value r with shape s and returns a
// value of the Go type of s.
func (o DecodeOptions) decodeMapItem(r *Reply, s Shape) (reflect.Value, error) {
	t := s.goType(o.Elements)
	if o.unrepresentable(r, s) {
		if o.Elements == ElementSentinel {
			return sentinel(s), nil
		}
		if nillable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, &FormatError{Shape: s, Text: r.String(), Err: ErrNil}
	}

	v, err := o.decode(r, s)
	if err != nil {
		return reflect.Value{}, err
	}
	if v == nil {
		return reflect.Zero(t), nil
	}
	return reflect.ValueOf(v), nil
}

// sentinel returns the value used for unrepresentable elements of shape
// s under the ElementSentinel policy.
func sentinel(s Shape) reflect.Value {
	v := reflect.New(s.goType(ElementSentinel)).Elem()
	switch {
	case s.isSigned():
		v.SetInt(-1 << (s.bitSize() - 1))
	case s.isUnsigned():
		v.SetUint(math.MaxUint64 >> (64 - s.bitSize()))
	case s.isFloat():
		v.SetFloat(math.NaN())
	}
	return v
}

func numError(err error) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return ne.Err
	}
	return err
}

func signedAs(n int64, s Shape) interface{} {
	switch s.kind {
	case shapeInt:
		return int(n)
	case shapeInt8:
		return int8(n)
	case shapeInt16:
		return int16(n)
	case shapeInt32:
		return int32(n)
	default:
		return n
	}
}

func unsignedAs(n uint64, s Shape) interface{} {
	switch s.kind {
	case shapeUint:
		return uint(n)
	case shapeUint8:
		return uint8(n)
	case shapeUint16:
		return uint16(n)
	case shapeUint32:
		return uint32(n)
	default:
		return n
	}
}
