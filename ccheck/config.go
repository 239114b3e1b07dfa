package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gomodule/redigo/redis"
	"github.com/mna/redish"
	"go.uber.org/zap"
)

type config struct {
	Addr string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxIdle        int
	MaxActive      int

	Delay      time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Iterations int

	Bench     int
	BenchSize int
}

func defaultConfig() config {
	return config{
		Addr:           "localhost:6379",
		ConnectTimeout: time.Second,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   100 * time.Millisecond,
		IdleTimeout:    30 * time.Second,
		MaxIdle:        10,
		MaxActive:      100,
		MaxRetries:     3,
		RetryDelay:     10 * time.Millisecond,
		BenchSize:      16,
	}
}

type fileConfig struct {
	Addr           string `toml:"addr"`
	ConnectTimeout string `toml:"connect_timeout"`
	ReadTimeout    string `toml:"read_timeout"`
	WriteTimeout   string `toml:"write_timeout"`
	IdleTimeout    string `toml:"idle_timeout"`
	MaxIdle        int    `toml:"max_idle"`
	MaxActive      int    `toml:"max_active"`
	Delay          string `toml:"delay"`
	MaxRetries     int    `toml:"max_retries"`
	RetryDelay     string `toml:"retry_delay"`
	Iterations     int    `toml:"iterations"`
	Bench          int    `toml:"bench"`
	BenchSize      int    `toml:"bench_size"`
}

// loadConfig reads the TOML file at path and returns cfg with the values
// defined in the file applied to it.
func loadConfig(path string, cfg config) (config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("addr") {
		if addr := strings.TrimSpace(raw.Addr); addr != "" {
			cfg.Addr = addr
		}
	}

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", raw.IdleTimeout, &cfg.IdleTimeout},
		{"delay", raw.Delay, &cfg.Delay},
		{"retry_delay", raw.RetryDelay, &cfg.RetryDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		val int
		dst *int
	}{
		{"max_idle", raw.MaxIdle, &cfg.MaxIdle},
		{"max_active", raw.MaxActive, &cfg.MaxActive},
		{"max_retries", raw.MaxRetries, &cfg.MaxRetries},
		{"iterations", raw.Iterations, &cfg.Iterations},
		{"bench", raw.Bench, &cfg.Bench},
		{"bench_size", raw.BenchSize, &cfg.BenchSize},
	}
	for _, i := range ints {
		if meta.IsDefined(i.key) {
			*i.dst = i.val
		}
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	return cfg, nil
}

func (c config) validate() error {
	switch {
	case c.Addr == "":
		return errors.New("address is required")
	case c.MaxRetries < 0:
		return errors.New("max retries must be >= 0")
	case c.Iterations < 0:
		return errors.New("iterations must be >= 0")
	case c.Bench < 0:
		return errors.New("bench must be >= 0")
	case c.BenchSize < 0:
		return errors.New("bench size must be >= 0")
	}
	return nil
}

func (c config) client(logger *zap.Logger) *redish.Client {
	return &redish.Client{
		Addr: c.Addr,
		DialOptions: []redis.DialOption{
			redis.DialConnectTimeout(c.ConnectTimeout),
			redis.DialReadTimeout(c.ReadTimeout),
			redis.DialWriteTimeout(c.WriteTimeout),
		},
		CreatePool: c.createPool,
		Logger:     logger,
	}
}

func (c config) createPool(addr string, opts ...redis.DialOption) (*redis.Pool, error) {
	return &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, opts...)
		},
		TestOnBorrow: func(conn redis.Conn, t time.Time) error {
			_, err := conn.Do("PING")
			return err
		},
		MaxActive:   c.MaxActive,
		MaxIdle:     c.MaxIdle,
		IdleTimeout: c.IdleTimeout,
	}, nil
}
