package redish

import (
	"context"
	"errors"
	"sync"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"
)

// Client manages connections to a redis server. If the CreatePool field
// is not nil, a redis.Pool is used to get connections via Get. If it is
// nil or if Dial is called, redis.Dial is used to get the connection.
//
// A Client is safe for concurrent use, the connections it returns are not.
type Client struct {
	// Addr is the address of the redis server, as "host:port".
	Addr string

	// DialOptions is the list of options to set on each new connection.
	DialOptions []redis.DialOption

	// CreatePool is the function to call to create the redis.Pool for
	// the server address, using the provided options as set in
	// DialOptions. If this field is not nil, the pool is used to manage
	// the connections returned by Get.
	CreatePool func(address string, options ...redis.DialOption) (*redis.Pool, error)

	// DecodeOptions are the options used by the returned connections to
	// decode replies.
	DecodeOptions DecodeOptions

	// Logger is the logger used by the client and its connections. If nil,
	// nothing is logged.
	Logger *zap.Logger

	mu   sync.Mutex  // protects following fields
	err  error       // closed error
	pool *redis.Pool // created pool, if CreatePool is set
}

var errClientClosed = errors.New("redish: client closed")

// Get returns a connection to the server. The connection must be closed
// after use, which returns it to the pool if there is one.
func (c *Client) Get() (*Conn, error) {
	return c.GetContext(context.Background())
}

// GetContext is like Get, but waits for a pooled connection only until
// the context is done, if the pool's Wait field is set.
func (c *Client) GetContext(ctx context.Context) (*Conn, error) {
	return c.getConn(ctx, false)
}

// Dial returns a connection the same way as Get, but it guarantees that
// the connection will not be managed by the pool, even if CreatePool is
// set.
func (c *Client) Dial() (*Conn, error) {
	return c.getConn(context.Background(), true)
}

func (c *Client) getConn(ctx context.Context, forceDial bool) (*Conn, error) {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logger := c.logger()
	var rc redis.Conn
	if c.CreatePool == nil || forceDial {
		rc, err = redis.DialContext(ctx, "tcp", c.Addr, c.DialOptions...)
	} else {
		var p *redis.Pool
		if p, err = c.getPool(); err == nil {
			rc, err = p.GetContext(ctx)
		}
	}
	if err != nil {
		logger.Debug("connection failed", zap.String("addr", c.Addr), zap.Error(err))
		return nil, &ConnectionError{Addr: c.Addr, Err: err}
	}

	return NewConn(NewRedigoTransport(rc),
		WithDecodeOptions(c.DecodeOptions),
		WithLogger(logger)), nil
}

func (c *Client) getPool() (*redis.Pool, error) {
	c.mu.Lock()
	p := c.pool
	c.mu.Unlock()
	if p != nil {
		return p, nil
	}

	pool, err := c.CreatePool(c.Addr, c.DialOptions...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		pool.Close()
		return nil, c.err
	}
	if c.pool != nil {
		// another goroutine created it concurrently
		pool.Close()
		return c.pool, nil
	}
	c.pool = pool
	return pool, nil
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Stats returns the statistics of the pool. It returns the zero value
// if no pool was created.
func (c *Client) Stats() redis.PoolStats {
	c.mu.Lock()
	p := c.pool
	c.mu.Unlock()
	if p == nil {
		return redis.PoolStats{}
	}
	return p.Stats()
}

// Close releases the resources used by the client. It closes the pool
// if one was created.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.err
	if err != nil {
		return err
	}
	c.err = errClientClosed
	if c.pool != nil {
		return c.pool.Close()
	}
	return nil
}
