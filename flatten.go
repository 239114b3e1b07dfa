package redish

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/gomodule/redigo/redis"
)

// Flatten converts the command arguments to the list of binary strings
// sent to the server. Each argument is converted using the first
// matching rule:
//
//   - a []byte is sent as is;
//   - a map adds each of its key and value pairs, with keys sorted by
//     their textual form;
//   - any other slice or array (but not a string) adds each of its
//     elements;
//   - any other value adds its textual form.
//
// Only one level is flattened: an element of a slice or map is always
// converted to a single string, even if it is itself a slice or map. The
// textual form of a value is the value itself for strings, "1" and "0"
// for booleans, an empty string for nil, the result of RedisArg for a
// redis.Argument and the result of fmt.Sprint for anything else.
//
// Map keys are sorted because the iteration order of Go maps is random.
// When the order of the pairs matters, pass a slice of alternating keys
// and values instead.
func Flatten(args ...interface{}) [][]byte {
	out := make([][]byte, 0, len(args))
	for _, arg := range args {
		out = appendFlat(out, arg)
	}
	return out
}

func appendFlat(out [][]byte, arg interface{}) [][]byte {
	switch arg := arg.(type) {
	case []byte:
		return append(out, arg)
	case string:
		return append(out, []byte(arg))
	case nil:
		return append(out, []byte{})
	case redis.Argument:
		return append(out, textBytes(arg))
	}

	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.Map:
		keys := rv.MapKeys()
		texts := make([][]byte, len(keys))
		for i, k := range keys {
			texts[i] = textBytes(k.Interface())
		}
		ix := make([]int, len(keys))
		for i := range ix {
			ix[i] = i
		}
		sort.SliceStable(ix, func(i, j int) bool {
			return string(texts[ix[i]]) < string(texts[ix[j]])
		})
		for _, i := range ix {
			out = append(out, texts[i], textBytes(rv.MapIndex(keys[i]).Interface()))
		}
		return out

	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// named byte slices and byte arrays (e.g. a [16]byte ID) are binary
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return append(out, b)
		}
		for i := 0; i < rv.Len(); i++ {
			out = append(out, textBytes(rv.Index(i).Interface()))
		}
		return out
	}
	return append(out, textBytes(arg))
}

// textBytes returns the textual form of v, or v itself if it is a []byte.
func textBytes(v interface{}) []byte {
	switch v := v.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	case nil:
		return []byte{}
	case bool:
		if v {
			return []byte("1")
		}
		return []byte("0")
	case int:
		return strconv.AppendInt(nil, int64(v), 10)
	case int8:
		return strconv.AppendInt(nil, int64(v), 10)
	case int16:
		return strconv.AppendInt(nil, int64(v), 10)
	case int32:
		return strconv.AppendInt(nil, int64(v), 10)
	case int64:
		return strconv.AppendInt(nil, v, 10)
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10)
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10)
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10)
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10)
	case uint64:
		return strconv.AppendUint(nil, v, 10)
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'g', -1, 32)
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64)
	case redis.Argument:
		return textBytes(v.RedisArg())
	default:
		return []byte(fmt.Sprint(v))
	}
}
