package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mna/redish"
	"go.uber.org/zap"
)

const (
	workingSet = 1000
	keySpace   = 10000
)

type stats struct {
	Reads, Writes             int
	FailedReads, FailedWrites int
	Aborted                   int
	LostWrites, NoAckWrites   int
}

func (s *stats) add(d stats) {
	s.Reads += d.Reads
	s.Writes += d.Writes
	s.FailedReads += d.FailedReads
	s.FailedWrites += d.FailedWrites
	s.Aborted += d.Aborted
	s.LostWrites += d.LostWrites
	s.NoAckWrites += d.NoAckWrites
}

func (s stats) String() string {
	return fmt.Sprintf("%d R (%d err) | %d W (%d err, %d aborted) | %d lost | %d noack",
		s.Reads, s.FailedReads, s.Writes, s.FailedWrites, s.Aborted, s.LostWrites, s.NoAckWrites)
}

// checker writes to random keys and verifies that reads return the last
// acknowledged write. Each write is an optimistic transaction that reads
// the current value of the key and sets it to the next value.
type checker struct {
	client     *redish.Client
	logger     *zap.Logger
	delay      time.Duration
	maxRetries int
	retryDelay time.Duration
	rnd        *rand.Rand

	// number of keys used half of the time, and the rest of the time
	workingSet, keySpace int

	cache map[string]int64

	mu    sync.Mutex // protects stats
	stats stats
}

func newChecker(client *redish.Client, cfg config, logger *zap.Logger) *checker {
	return &checker{
		client:     client,
		logger:     logger,
		delay:      cfg.Delay,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		workingSet: workingSet,
		keySpace:   keySpace,
		cache:      make(map[string]int64, workingSet),
	}
}

// run executes iterations of the check, or runs until ctx is done if
// iterations is 0. It returns an error only if no connection can be
// obtained.
func (c *checker) run(ctx context.Context, iterations int) error {
	var conn *redish.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for i := 0; iterations <= 0 || i < iterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if conn == nil {
			var err error
			if conn, err = c.client.GetContext(ctx); err != nil {
				return fmt.Errorf("failed to get a connection: %w", err)
			}
		}

		var d stats
		key := c.genKey()

		// read only if we know what that key should be
		if exp, ok := c.cache[key]; ok {
			v, err := redish.Command[int64](ctx, conn, redish.Int64, "GET", key)
			if errors.Is(err, redish.ErrNil) {
				v, err = 0, nil
			}
			switch {
			case isConnError(err):
				conn.Close()
				conn = nil
				continue
			case err != nil:
				c.logger.Warn("read failed", zap.String("key", key), zap.Error(err))
				d.FailedReads = 1
			default:
				d.Reads = 1
				if exp > v {
					d.LostWrites = int(exp - v)
				} else if exp < v {
					d.NoAckWrites = int(v - exp)
				}
			}
		}

		// write
		v, err := c.write(ctx, conn, key)
		var tfe *redish.TransactionFailedError
		switch {
		case isConnError(err):
			conn.Close()
			conn = nil
			continue
		case errors.As(err, &tfe):
			c.logger.Debug("write aborted", zap.String("key", key), zap.Error(err))
			d.Aborted = 1
			d.FailedWrites = 1
		case err != nil:
			c.logger.Warn("write failed", zap.String("key", key), zap.Error(err))
			d.FailedWrites = 1
		default:
			d.Writes = 1
			c.cache[key] = v
		}

		c.mu.Lock()
		c.stats.add(d)
		c.mu.Unlock()

		if c.delay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.delay):
			}
		}
	}
	return nil
}

func (c *checker) write(ctx context.Context, conn *redish.Conn, key string) (int64, error) {
	var next int64
	res, err := conn.Transact(ctx, redish.Transaction{
		Name:       "set " + key,
		RetryDelay: c.retryDelay,
		MaxRetries: c.maxRetries,
		Policy:     redish.RetryRandomized,
		Prepare: func(conn *redish.Conn) error {
			if _, err := conn.DoContext(ctx, "WATCH", key); err != nil {
				return err
			}
			cur, err := redish.Command[int64](ctx, conn, redish.Int64, "GET", key)
			if err != nil && !errors.Is(err, redish.ErrNil) {
				return err
			}
			next = cur + 1
			return nil
		},
		Queue: func(conn *redish.Conn) error {
			_, err := conn.DoContext(ctx, "SET", key, next)
			return err
		},
	})
	if err != nil {
		return 0, err
	}
	if len(res) != 1 || res[0] == nil || *res[0] != "OK" {
		return 0, fmt.Errorf("unexpected EXEC result for %s: %d replies", key, len(res))
	}
	return next, nil
}

func (c *checker) snapshot() stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// printStats prints the stats to w at each interval, until ctx is done.
func (c *checker) printStats(ctx context.Context, w io.Writer, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fmt.Fprintln(w, c.snapshot())
		}
	}
}

func (c *checker) genKey() string {
	ks := c.workingSet
	if c.rnd.Float64() > 0.5 {
		ks = c.keySpace
	}
	return "key_" + strconv.Itoa(c.rnd.Intn(ks))
}

// isConnError returns true if err indicates that the connection is
// broken, e.g. because the server was restarted.
func isConnError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
