package redish

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/mna/redish/redistest"
	"github.com/mna/redish/redistest/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialMock(t *testing.T, s *redistest.MockServer) *Conn {
	host, port, err := net.SplitHostPort(s.Addr)
	require.NoError(t, err, "SplitHostPort")
	p, err := strconv.Atoi(port)
	require.NoError(t, err, "Atoi")

	c, err := Dial(host, p, time.Second)
	require.NoError(t, err, "Dial")
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedigoTransportReplies(t *testing.T) {
	s := redistest.StartMockServer(t, func(cmd string, args ...string) interface{} {
		switch cmd {
		case "STATUS":
			return resp.SimpleString("OK")
		case "ERROR":
			return resp.Error("WRONGTYPE bad type")
		case "INT":
			return int64(-7)
		case "BULK":
			return "a\r\nb"
		case "EMPTY":
			return ""
		case "NIL":
			return nil
		case "NILARRAY":
			return resp.Array(nil)
		case "ARRAY":
			return resp.Array{"x", int64(1), nil, resp.Error("ERR inner"), resp.Array{resp.SimpleString("OK")}}
		}
		return resp.Error("ERR unknown command")
	})

	rc, err := redis.Dial("tcp", s.Addr)
	require.NoError(t, err, "Dial")
	tr := NewRedigoTransport(rc)
	defer tr.Close()

	cases := []struct {
		cmd  string
		want string
	}{
		0: {"STATUS", "+OK"},
		1: {"ERROR", "-WRONGTYPE bad type"},
		2: {"INT", ":-7"},
		3: {"BULK", `"a\r\nb"`},
		4: {"EMPTY", `""`},
		5: {"NIL", "(nil)"},
		6: {"NILARRAY", "(nil)"},
		7: {"ARRAY", `["x", :1, (nil), -ERR inner, [+OK]]`},
	}
	for i, c := range cases {
		r, err := tr.Execute(context.Background(), [][]byte{[]byte(c.cmd)})
		if assert.NoError(t, err, "%d", i) {
			assert.Equal(t, c.want, r.String(), "%d", i)
			tr.ReleaseReply(r)
		}
	}

	r, err := tr.Execute(context.Background(), [][]byte{[]byte("EMPTY")})
	require.NoError(t, err)
	assert.Equal(t, KindBulk, r.Kind, "empty bulk is not nil")
	tr.ReleaseReply(r)
}

func TestRedigoTransportEmptyCommand(t *testing.T) {
	tr := NewRedigoTransport(nil)
	_, err := tr.Execute(context.Background(), nil)
	assert.Equal(t, errEmptyCommand, err)
	_, err = tr.Execute(context.Background(), [][]byte{{}})
	assert.Equal(t, errEmptyCommand, err)
}

func TestReleaseReplyTwicePanics(t *testing.T) {
	r, err := toReply([]interface{}{[]byte("a"), int64(1)})
	require.NoError(t, err)

	tr := &RedigoTransport{}
	tr.ReleaseReply(r)
	assert.Panics(t, func() { tr.ReleaseReply(r) })
}

func TestToReplyUnknownValue(t *testing.T) {
	_, err := toReply([]interface{}{int64(1), 1.5})
	var pe *ProtocolError
	if assert.True(t, errors.As(err, &pe), "%v", err) {
		assert.Equal(t, 1.5, pe.Value)
		assert.Contains(t, err.Error(), "float64")
	}
}

func TestDialError(t *testing.T) {
	// get a free port and close the listener so that nothing listens on it
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	_, err = Dial("127.0.0.1", addr.Port, time.Second)
	var ce *ConnectionError
	if assert.True(t, errors.As(err, &ce), "%v", err) {
		assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(addr.Port)), ce.Addr)
		assert.Contains(t, err.Error(), "redish: connect to")
		assert.NotNil(t, errors.Unwrap(err))
	}
}

func TestConnOverMockServer(t *testing.T) {
	s := redistest.StartMockServer(t, func(cmd string, args ...string) interface{} {
		switch cmd {
		case "HMSET":
			return resp.SimpleString("OK")
		case "HGETALL":
			return []string{"k", "®", "n", "12"}
		case "ZRANGE":
			return []string{"a", "1", "b", "2.5"}
		}
		return resp.Error("ERR unknown command")
	})
	c := dialMock(t, s)
	ctx := context.Background()

	_, err := c.Do("HMSET", "h", map[string]string{"k": "®", "n": "12"})
	require.NoError(t, err, "HMSET")

	h, err := Command[map[string]string](ctx, c, MapOf(Text, Text), "HGETALL", "h")
	require.NoError(t, err, "HGETALL")
	assert.Equal(t, map[string]string{"k": "®", "n": "12"}, h)

	z, err := Command[map[string]float64](ctx, c, MapOf(Text, Float64), "ZRANGE", "z", 0, -1, "WITHSCORES")
	require.NoError(t, err, "ZRANGE")
	assert.Equal(t, map[string]float64{"a": 1, "b": 2.5}, z)

	cmds := s.Commands()
	if assert.Len(t, cmds, 3) {
		assert.Equal(t, []string{"HMSET", "h", "k", "®", "n", "12"}, cmds[0])
		assert.Equal(t, []string{"ZRANGE", "z", "0", "-1", "WITHSCORES"}, cmds[2])
	}
}

func TestTransactOverMockServer(t *testing.T) {
	var execs int32
	s := redistest.StartMockServer(t, func(cmd string, args ...string) interface{} {
		switch cmd {
		case "WATCH", "MULTI":
			return resp.SimpleString("OK")
		case "INCR":
			return resp.SimpleString("QUEUED")
		case "EXEC":
			if atomic.AddInt32(&execs, 1) < 3 {
				return resp.Array(nil)
			}
			return resp.Array{int64(5)}
		}
		return resp.Error("ERR unknown command")
	})
	c := dialMock(t, s)

	res, err := c.Transact(context.Background(), Transaction{
		Name:       "incr",
		RetryDelay: time.Millisecond,
		MaxRetries: 3,
		Prepare: func(c *Conn) error {
			_, err := c.Do("WATCH", "k")
			return err
		},
		Queue: func(c *Conn) error {
			_, err := c.Do("INCR", "k")
			return err
		},
	})
	require.NoError(t, err, "Transact")
	if assert.Len(t, res, 1) && assert.NotNil(t, res[0]) {
		assert.Equal(t, "5", *res[0])
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&execs))
}
