package redish

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Transport executes commands on a redis server. Execute sends the
// command (the command name followed by its arguments) and returns the
// parsed reply. An error reply from the server is returned as a reply of
// KindError, not as an error; the error return value is for network and
// protocol failures, in which case the reply is nil.
//
// Each reply returned by Execute must be passed to ReleaseReply exactly
// once, after which it must not be used anymore.
//
// A Transport is not safe for concurrent use.
type Transport interface {
	Execute(ctx context.Context, cmd [][]byte) (*Reply, error)
	ReleaseReply(r *Reply)
	Close() error
}

var errEmptyCommand = errors.New("redish: empty command")

// RedigoTransport is a Transport that executes commands on a redigo
// connection.
type RedigoTransport struct {
	conn redis.Conn
}

// NewRedigoTransport returns a Transport that executes commands on conn.
// The transport owns the connection and closes it when it is closed.
func NewRedigoTransport(conn redis.Conn) *RedigoTransport {
	return &RedigoTransport{conn: conn}
}

// Execute executes the command on the redigo connection.
func (t *RedigoTransport) Execute(ctx context.Context, cmd [][]byte) (*Reply, error) {
	if len(cmd) == 0 || len(cmd[0]) == 0 {
		return nil, errEmptyCommand
	}

	args := make([]interface{}, len(cmd)-1)
	for i, arg := range cmd[1:] {
		args[i] = arg
	}

	v, err := redis.DoContext(t.conn, ctx, string(cmd[0]), args...)
	if err != nil {
		var re redis.Error
		if errors.As(err, &re) {
			return newReply(KindError, []byte(re)), nil
		}
		return nil, err
	}
	return toReply(v)
}

// ReleaseReply releases the reply and all its elements. It panics if the
// reply was already released.
func (t *RedigoTransport) ReleaseReply(r *Reply) {
	releaseReply(r)
}

// Close closes the redigo connection.
func (t *RedigoTransport) Close() error {
	return t.conn.Close()
}

var replyPool = sync.Pool{
	New: func() interface{} { return new(Reply) },
}

func newReply(k Kind, str []byte) *Reply {
	r := replyPool.Get().(*Reply)
	*r = Reply{Kind: k, Str: str}
	return r
}

func releaseReply(r *Reply) {
	if r == nil {
		return
	}
	if r.released {
		panic("redish: reply released twice")
	}
	for _, e := range r.Elems {
		releaseReply(e)
	}
	*r = Reply{released: true}
	replyPool.Put(r)
}

// toReply converts a reply value returned by redigo to a Reply.
func toReply(v interface{}) (*Reply, error) {
	switch v := v.(type) {
	case nil:
		return newReply(KindNil, nil), nil
	case string:
		return newReply(KindStatus, []byte(v)), nil
	case redis.Error:
		return newReply(KindError, []byte(v)), nil
	case int64:
		r := newReply(KindInteger, nil)
		r.Int = v
		return r, nil
	case []byte:
		return newReply(KindBulk, v), nil
	case []interface{}:
		r := newReply(KindArray, nil)
		r.Elems = make([]*Reply, 0, len(v))
		for _, e := range v {
			er, err := toReply(e)
			if err != nil {
				releaseReply(r)
				return nil, err
			}
			r.Elems = append(r.Elems, er)
		}
		return r, nil
	default:
		return nil, &ProtocolError{Value: v}
	}
}

// Dial connects to the redis server at host:port using redigo, with the
// provided connection timeout. Additional redigo dial options may be
// provided, e.g. to set a password or the read and write timeouts. If the
// connection fails, the returned error is a *ConnectionError.
func Dial(host string, port int, timeout time.Duration, options ...redis.DialOption) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	opts := append([]redis.DialOption{redis.DialConnectTimeout(timeout)}, options...)
	rc, err := redis.Dial("tcp", addr, opts...)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	return NewConn(NewRedigoTransport(rc)), nil
}
