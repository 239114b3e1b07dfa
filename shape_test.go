package redish

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeString(t *testing.T) {
	cases := []struct {
		s    Shape
		want string
	}{
		0: {Shape{}, "dynamic"},
		1: {Text, "text"},
		2: {Uint16, "uint16"},
		3: {ListOf(Int64), "list<int64>"},
		4: {MapOf(Text, ListOf(Float64)), "map<text,list<float64>>"},
		5: {ListOf(MapOf(Int, Binary)), "list<map<int,binary>>"},
	}
	for i, c := range cases {
		assert.Equal(t, c.want, c.s.String(), "%d", i)
	}
}

func TestParseShape(t *testing.T) {
	shapes := []Shape{
		Dynamic, Text, Binary, Bool, Int, Int8, Int16, Int32, Int64,
		Uint, Uint8, Uint16, Uint32, Uint64, Float32, Float64,
		ListOf(Dynamic), ListOf(ListOf(Bool)), MapOf(Text, Int64),
		MapOf(Float64, MapOf(Uint8, ListOf(Binary))),
	}
	for _, s := range shapes {
		got, err := ParseShape(s.String())
		if assert.NoError(t, err, s.String()) {
			assert.Equal(t, s, got, s.String())
		}
	}

	got, err := ParseShape(" Map < TEXT , list<Int32> > ")
	if assert.NoError(t, err) {
		assert.Equal(t, MapOf(Text, ListOf(Int32)), got)
	}
}

func TestParseShapeInvalid(t *testing.T) {
	cases := []struct {
		in  string
		err string
	}{
		0: {"", "unknown shape"},
		1: {"string", "unknown shape"},
		2: {"list", "expected '<'"},
		3: {"list<text", "expected '>'"},
		4: {"map<text>", "expected ','"},
		5: {"text>", "unexpected"},
		6: {"map<binary,text>", "invalid map key"},
		7: {"map<list<text>,text>", "invalid map key"},
		8: {"list<map<dynamic,int>>", "invalid map key"},
	}
	for i, c := range cases {
		_, err := ParseShape(c.in)
		if assert.Error(t, err, "%d", i) {
			assert.Contains(t, err.Error(), c.err, "%d", i)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, MapOf(Bool, Dynamic).validate())
	err := ListOf(MapOf(Binary, Text)).validate()
	assert.True(t, errors.Is(err, errInvalidMapKey), "invalid nested map key")
}

func TestShapeGoType(t *testing.T) {
	cases := []struct {
		s    Shape
		p    ElementPolicy
		want interface{}
	}{
		0: {Text, ElementOptional, ""},
		1: {ListOf(Int64), ElementOptional, []*int64(nil)},
		2: {ListOf(Int64), ElementSentinel, []int64(nil)},
		3: {ListOf(Binary), ElementOptional, [][]byte(nil)},
		4: {ListOf(Dynamic), ElementOptional, []interface{}(nil)},
		5: {ListOf(ListOf(Bool)), ElementOptional, [][]*bool(nil)},
		6: {MapOf(Text, Float64), ElementOptional, map[string]float64(nil)},
		7: {ListOf(MapOf(Text, Text)), ElementOptional, []map[string]string(nil)},
	}
	for i, c := range cases {
		assert.Equal(t, reflect.TypeOf(c.want), c.s.goType(c.p), "%d", i)
	}
}
