package redish

import (
	"context"
	"errors"
	"reflect"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Conn executes commands on a redis server and decodes the replies. A
// Conn is not safe for concurrent use: the reply of a command is fully
// decoded and released before the next command can be sent.
type Conn struct {
	t      Transport
	opts   DecodeOptions
	logger *zap.Logger
	clock  clock.Clock
	closed bool
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithDecodeOptions sets the options used to decode replies.
func WithDecodeOptions(o DecodeOptions) ConnOption {
	return func(c *Conn) {
		c.opts = o
	}
}

// WithLogger sets the logger of the connection. By default nothing is
// logged.
func WithLogger(l *zap.Logger) ConnOption {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the clock used to wait between transaction attempts.
func WithClock(clk clock.Clock) ConnOption {
	return func(c *Conn) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// NewConn returns a connection that executes commands on the transport t.
func NewConn(t Transport, opts ...ConnOption) *Conn {
	c := &Conn{
		t:      t,
		logger: zap.NewNop(),
		clock:  clock.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do executes the command and returns the reply decoded with the
// Dynamic shape.
func (c *Conn) Do(cmd string, args ...interface{}) (interface{}, error) {
	return c.DoShape(context.Background(), Dynamic, cmd, args...)
}

// DoContext is like Do, using the provided context for the execution of
// the command.
func (c *Conn) DoContext(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	return c.DoShape(ctx, Dynamic, cmd, args...)
}

// DoShape executes the command and returns the reply decoded with the
// shape s. The arguments are converted as described by Flatten. See
// DecodeOptions.Decode for the Go type of the returned value.
func (c *Conn) DoShape(ctx context.Context, s Shape, cmd string, args ...interface{}) (interface{}, error) {
	return c.do(ctx, c.opts, s, cmd, args)
}

func (c *Conn) do(ctx context.Context, o DecodeOptions, s Shape, cmd string, args []interface{}) (interface{}, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return c.roundTrip(ctx, cmd, args, func(r *Reply) (interface{}, error) {
		return o.decode(r, s)
	})
}

// roundTrip sends the command and decodes its reply with decode. The
// reply is released before it returns.
func (c *Conn) roundTrip(ctx context.Context, cmd string, args []interface{}, decode func(*Reply) (interface{}, error)) (interface{}, error) {
	if c.closed {
		return nil, ErrClosed
	}

	full := make([]interface{}, 0, len(args)+1)
	full = append(full, cmd)
	full = append(full, args...)

	r, err := c.t.Execute(ctx, Flatten(full...))
	if err != nil {
		return nil, err
	}
	defer c.t.ReleaseReply(r)

	v, err := decode(r)
	var pe *ProtocolError
	if errors.As(err, &pe) {
		c.logger.Error("protocol violation", zap.String("command", cmd), zap.Error(err))
	}
	return v, err
}

// Close closes the connection and its transport.
func (c *Conn) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return c.t.Close()
}

// Command executes the command on c and returns the reply decoded with
// the shape s, as a value of type T. If the decoded value is not a T, a
// *TypeMismatchError is returned. If the reply is nil, the zero value of
// T is returned, along with ErrNil if T cannot be nil.
//
//	n, err := redish.Command[int64](ctx, conn, redish.Int64, "INCR", "counter")
//	h, err := redish.Command[map[string]string](ctx, conn, redish.MapOf(redish.Text, redish.Text), "HGETALL", "h")
func Command[T any](ctx context.Context, c *Conn, s Shape, cmd string, args ...interface{}) (T, error) {
	var zero T

	v, err := c.DoShape(ctx, s, cmd, args...)
	if err != nil {
		return zero, err
	}

	rt := reflect.TypeOf((*T)(nil)).Elem()
	if v == nil {
		if nillable(rt) {
			return zero, nil
		}
		return zero, ErrNil
	}

	tv, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Requested: rt.String(), Actual: reflect.TypeOf(v).String()}
	}
	return tv, nil
}
