package redish

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type shapeKind uint8

const (
	shapeDynamic shapeKind = iota
	shapeText
	shapeBinary
	shapeBool
	shapeInt
	shapeInt8
	shapeInt16
	shapeInt32
	shapeInt64
	shapeUint
	shapeUint8
	shapeUint16
	shapeUint32
	shapeUint64
	shapeFloat32
	shapeFloat64
	shapeList
	shapeMap
)

var shapeNames = map[shapeKind]string{
	shapeDynamic: "dynamic",
	shapeText:    "text",
	shapeBinary:  "binary",
	shapeBool:    "bool",
	shapeInt:     "int",
	shapeInt8:    "int8",
	shapeInt16:   "int16",
	shapeInt32:   "int32",
	shapeInt64:   "int64",
	shapeUint:    "uint",
	shapeUint8:   "uint8",
	shapeUint16:  "uint16",
	shapeUint32:  "uint32",
	shapeUint64:  "uint64",
	shapeFloat32: "float32",
	shapeFloat64: "float64",
}

// Shape describes how a reply should be decoded. The zero value is
// Dynamic. Shapes are built from the predefined scalar shapes and the
// ListOf and MapOf functions.
type Shape struct {
	kind shapeKind
	key  *Shape // map key
	elem *Shape // list element or map value
}

// Predefined scalar shapes.
var (
	Dynamic = Shape{kind: shapeDynamic}
	Text    = Shape{kind: shapeText}
	Binary  = Shape{kind: shapeBinary}
	Bool    = Shape{kind: shapeBool}
	Int     = Shape{kind: shapeInt}
	Int8    = Shape{kind: shapeInt8}
	Int16   = Shape{kind: shapeInt16}
	Int32   = Shape{kind: shapeInt32}
	Int64   = Shape{kind: shapeInt64}
	Uint    = Shape{kind: shapeUint}
	Uint8   = Shape{kind: shapeUint8}
	Uint16  = Shape{kind: shapeUint16}
	Uint32  = Shape{kind: shapeUint32}
	Uint64  = Shape{kind: shapeUint64}
	Float32 = Shape{kind: shapeFloat32}
	Float64 = Shape{kind: shapeFloat64}
)

// ListOf returns the shape of a list whose elements are decoded
// using elem.
func ListOf(elem Shape) Shape {
	return Shape{kind: shapeList, elem: &elem}
}

// MapOf returns the shape of a map built from an array of alternating
// keys and values. The key shape must be a comparable scalar shape, that
// is any scalar shape except Dynamic and Binary.
func MapOf(key, value Shape) Shape {
	return Shape{kind: shapeMap, key: &key, elem: &value}
}

// Elem returns the element shape of a list, or the value shape of a map.
// It returns Dynamic for other shapes.
func (s Shape) Elem() Shape {
	if s.elem == nil {
		return Dynamic
	}
	return *s.elem
}

// Key returns the key shape of a map. It returns Dynamic for other shapes.
func (s Shape) Key() Shape {
	if s.key == nil {
		return Dynamic
	}
	return *s.key
}

// IsList returns true if s is a ListOf shape.
func (s Shape) IsList() bool { return s.kind == shapeList }

// IsMap returns true if s is a MapOf shape.
func (s Shape) IsMap() bool { return s.kind == shapeMap }

func (s Shape) isContainer() bool {
	return s.kind == shapeList || s.kind == shapeMap
}

func (s Shape) isSigned() bool {
	return s.kind >= shapeInt && s.kind <= shapeInt64
}

func (s Shape) isUnsigned() bool {
	return s.kind >= shapeUint && s.kind <= shapeUint64
}

func (s Shape) isFloat() bool {
	return s.kind == shapeFloat32 || s.kind == shapeFloat64
}

func (s Shape) isNumeric() bool {
	return s.isSigned() || s.isUnsigned() || s.isFloat()
}

// bitSize returns the size in bits of a numeric shape, as expected by
// the strconv parse functions.
func (s Shape) bitSize() int {
	switch s.kind {
	case shapeInt8, shapeUint8:
		return 8
	case shapeInt16, shapeUint16:
		return 16
	case shapeInt32, shapeUint32, shapeFloat32:
		return 32
	case shapeInt, shapeUint:
		return strconv.IntSize
	default:
		return 64
	}
}

// String returns the textual form of the shape, as accepted by
// ParseShape.
func (s Shape) String() string {
	switch s.kind {
	case shapeList:
		return "list<" + s.Elem().String() + ">"
	case shapeMap:
		return "map<" + s.Key().String() + "," + s.Elem().String() + ">"
	default:
		if n, ok := shapeNames[s.kind]; ok {
			return n
		}
		return fmt.Sprintf("shape(%d)", s.kind)
	}
}

var errInvalidMapKey = errors.New("redish: invalid map key shape")

func (s Shape) validate() error {
	switch s.kind {
	case shapeList:
		return s.Elem().validate()
	case shapeMap:
		k := s.Key()
		if k.isContainer() || k.kind == shapeDynamic || k.kind == shapeBinary {
			return fmt.Errorf("%w: %s", errInvalidMapKey, k)
		}
		return s.Elem().validate()
	}
	return nil
}

var (
	interfaceType = reflect.TypeOf((*interface{})(nil)).Elem()
	bytesType     = reflect.TypeOf([]byte(nil))

	scalarTypes = map[shapeKind]reflect.Type{
		shapeDynamic: interfaceType,
		shapeText:    reflect.TypeOf(""),
		shapeBinary:  bytesType,
		shapeBool:    reflect.TypeOf(false),
		shapeInt:     reflect.TypeOf(int(0)),
		shapeInt8:    reflect.TypeOf(int8(0)),
		shapeInt16:   reflect.TypeOf(int16(0)),
		shapeInt32:   reflect.TypeOf(int32(0)),
		shapeInt64:   reflect.TypeOf(int64(0)),
		shapeUint:    reflect.TypeOf(uint(0)),
		shapeUint8:   reflect.TypeOf(uint8(0)),
		shapeUint16:  reflect.TypeOf(uint16(0)),
		shapeUint32:  reflect.TypeOf(uint32(0)),
		shapeUint64:  reflect.TypeOf(uint64(0)),
		shapeFloat32: reflect.TypeOf(float32(0)),
		shapeFloat64: reflect.TypeOf(float64(0)),
	}
)

// goType returns the Go type of values decoded with s under the element
// policy p.
func (s Shape) goType(p ElementPolicy) reflect.Type {
	switch s.kind {
	case shapeList:
		return reflect.SliceOf(s.Elem().elemType(p))
	case shapeMap:
		return reflect.MapOf(s.Key().goType(p), s.Elem().goType(p))
	default:
		return scalarTypes[s.kind]
	}
}

// elemType returns the Go type of a list element decoded with s.
func (s Shape) elemType(p ElementPolicy) reflect.Type {
	t := s.goType(p)
	if p == ElementSentinel || nillable(t) {
		return t
	}
	return reflect.PtrTo(t)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Slice, reflect.Map, reflect.Ptr:
		return true
	}
	return false
}

// ParseShape parses the textual form of a shape, as returned by
// Shape.String. Scalar shapes are identified by their name (e.g. "text",
// "int64", "bool"), containers are written "list<elem>" and
// "map<key,value>". Whitespace is ignored.
func ParseShape(s string) (Shape, error) {
	p := shapeParser{src: strings.Join(strings.Fields(s), "")}
	sh, err := p.parse()
	if err != nil {
		return Dynamic, err
	}
	if p.pos != len(p.src) {
		return Dynamic, fmt.Errorf("redish: unexpected %q in shape %q", p.src[p.pos:], s)
	}
	if err := sh.validate(); err != nil {
		return Dynamic, err
	}
	return sh, nil
}

type shapeParser struct {
	src string
	pos int
}

func (p *shapeParser) parse() (Shape, error) {
	start := p.pos
	for p.pos < len(p.src) && isShapeNameByte(p.src[p.pos]) {
		p.pos++
	}
	name := strings.ToLower(p.src[start:p.pos])

	switch name {
	case "list":
		if err := p.expect('<'); err != nil {
			return Dynamic, err
		}
		elem, err := p.parse()
		if err != nil {
			return Dynamic, err
		}
		if err := p.expect('>'); err != nil {
			return Dynamic, err
		}
		return ListOf(elem), nil

	case "map":
		if err := p.expect('<'); err != nil {
			return Dynamic, err
		}
		key, err := p.parse()
		if err != nil {
			return Dynamic, err
		}
		if err := p.expect(','); err != nil {
			return Dynamic, err
		}
		val, err := p.parse()
		if err != nil {
			return Dynamic, err
		}
		if err := p.expect('>'); err != nil {
			return Dynamic, err
		}
		return MapOf(key, val), nil
	}

	for k, n := range shapeNames {
		if n == name {
			return Shape{kind: k}, nil
		}
	}
	return Dynamic, fmt.Errorf("redish: unknown shape %q", name)
}

func (p *shapeParser) expect(b byte) error {
	if p.pos >= len(p.src) || p.src[p.pos] != b {
		return fmt.Errorf("redish: expected %q at offset %d in shape %q", b, p.pos, p.src)
	}
	p.pos++
	return nil
}

func isShapeNameByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
