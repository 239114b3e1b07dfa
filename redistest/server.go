// Package redistest provides test helpers to run a redis server, or a
// mock redis server that replies with values computed by a handler.
package redistest

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/require"
)

// ServerConfig is the configuration used by StartServer when none is
// provided. The value must contain a single reference to a string
// placeholder (%s), the port number. Persistence is disabled so that the
// server leaves no file behind.
var ServerConfig = `
port %s
save ""
appendonly no
`

// Server is a redis-server process started by StartServer.
type Server struct {
	// Addr is the address the server listens on, as "127.0.0.1:port".
	Addr string

	cmd *exec.Cmd
}

// StartServer starts a redis-server instance on a free port. If the
// redis-server command is not found in the PATH, the test is skipped. The
// server is killed when the test ends.
//
// If w is not nil, both stdout and stderr of the server are written to
// it. The configuration conf is supplied to the server via stdin, after
// replacing its %s placeholder with the port; if it is empty,
// ServerConfig is used.
func StartServer(t testing.TB, w io.Writer, conf string) *Server {
	if _, err := exec.LookPath("redis-server"); err != nil {
		t.Skip("redis-server not found in $PATH")
	}

	if conf == "" {
		conf = ServerConfig
	}
	port := freePort(t)

	c := exec.Command("redis-server", "-")
	c.Dir = os.TempDir()
	c.Stdin = strings.NewReader(fmt.Sprintf(conf, port))
	if w != nil {
		c.Stdout, c.Stderr = w, w
	}
	require.NoError(t, c.Start(), "start redis-server")

	s := &Server{Addr: net.JoinHostPort("127.0.0.1", port), cmd: c}
	t.Cleanup(s.stop)
	require.True(t, s.waitReady(10*time.Second), "wait for redis-server")
	t.Logf("redis-server started on %s", s.Addr)
	return s
}

// Dial returns a new connection to the server, closed when the test
// ends.
func (s *Server) Dial(t testing.TB) redis.Conn {
	conn, err := redis.Dial("tcp", s.Addr, redis.DialConnectTimeout(2*time.Second))
	require.NoError(t, err, "Dial to redis-server")
	t.Cleanup(func() { conn.Close() })
	return conn
}

// CreatePool creates a small pool of connections to addr that checks
// idle connections with a PING before use. Its signature matches the
// CreatePool field of redish.Client.
func CreatePool(addr string, opts ...redis.DialOption) (*redis.Pool, error) {
	return &redis.Pool{
		MaxIdle:     2,
		MaxActive:   10,
		IdleTimeout: time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, _ time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}, nil
}

func (s *Server) stop() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
}

func (s *Server) waitReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if conn, err := net.DialTimeout("tcp", s.Addr, time.Second); err == nil {
			conn.Close()
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func freePort(t testing.TB) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "listen on port 0")
	defer l.Close()

	_, p, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err, "parse host and port")
	return p
}
