package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mna/redish"
)

var benchCommands = []string{"SET", "GET", "DEL"}

type benchResult struct {
	Ops       int
	Durations map[string]time.Duration
}

// runBench executes n SET, then n GET, then n DEL commands on distinct
// random keys, with values of size bytes, and verifies each reply.
func runBench(ctx context.Context, conn *redish.Conn, n, size int) (benchResult, error) {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = "bench:" + uuid.NewString()
	}
	value := strings.Repeat("x", size)

	steps := map[string]func(key string) error{
		"SET": func(key string) error {
			_, err := conn.DoContext(ctx, "SET", key, value)
			return err
		},
		"GET": func(key string) error {
			v, err := redish.Command[string](ctx, conn, redish.Text, "GET", key)
			if err == nil && v != value {
				err = fmt.Errorf("got %d bytes, want %d", len(v), len(value))
			}
			return err
		},
		"DEL": func(key string) error {
			v, err := redish.Command[int64](ctx, conn, redish.Int64, "DEL", key)
			if err == nil && v != 1 {
				err = fmt.Errorf("deleted %d keys, want 1", v)
			}
			return err
		},
	}

	res := benchResult{Ops: n, Durations: make(map[string]time.Duration, len(steps))}
	for _, name := range benchCommands {
		step := steps[name]
		start := time.Now()
		for _, key := range keys {
			if err := step(key); err != nil {
				return res, fmt.Errorf("%s %s: %w", name, key, err)
			}
		}
		res.Durations[name] = time.Since(start)
	}
	return res, nil
}

func (r benchResult) print(w io.Writer) {
	for _, name := range benchCommands {
		d := r.Durations[name]
		var rate float64
		if d > 0 {
			rate = float64(r.Ops) / d.Seconds()
		}
		fmt.Fprintf(w, "%s: %d ops in %s (%.0f ops/s)\n", name, r.Ops, d.Round(time.Microsecond), rate)
	}
}
