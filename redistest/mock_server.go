package redistest

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mna/redish/redistest/resp"
	"github.com/stretchr/testify/require"
)

// MockServer is a mock redis server.
type MockServer struct {
	Addr string

	done chan struct{}
	wg   sync.WaitGroup
	h    func(string, ...string) interface{}
	t    testing.TB
	l    net.Listener

	mu     sync.Mutex // protects following fields
	closed bool
	conns  map[net.Conn]struct{}
	cmds   [][]string
}

// StartMockServer creates and starts a mock redis server. The handler is
// called for each command received by the server. The returned value is
// encoded in the redis protocol as described by resp.Encode and sent to
// the client. The server is closed when the test ends, or when Close is
// called.
func StartMockServer(t testing.TB, handler func(cmd string, args ...string) interface{}) *MockServer {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "net.Listen")

	s := &MockServer{
		Addr:  l.Addr().String(),
		done:  make(chan struct{}),
		h:     handler,
		t:     t,
		l:     l,
		conns: make(map[net.Conn]struct{}),
	}
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Commands returns the commands received by the server so far, in
// order, each as the command name followed by its arguments.
func (s *MockServer) Commands() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmds := make([][]string, len(s.cmds))
	copy(cmds, s.cmds)
	return cmds
}

// Close closes the mock redis server and the connections it accepted.
// It is safe to call it more than once.
func (s *MockServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	require.NoError(s.t, s.l.Close(), "Close listener")
	<-s.done

	exit := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(exit)
	}()
	select {
	case <-exit:
	case <-time.After(5 * time.Second):
		s.t.Fatal("failed to cleanly stop the mock server")
	}
}

func (s *MockServer) serve() {
	defer close(s.done)
	for {
		conn, err := s.l.Accept()
		if err != nil {
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// track registers c as an open connection. It returns false if the
// server is closed.
func (s *MockServer) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *MockServer) serveConn(c net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.Close()
	}()

	br := bufio.NewReader(c)
	for {
		req, err := resp.DecodeRequest(br)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.cmds = append(s.cmds, req)
		s.mu.Unlock()

		v := s.h(req[0], req[1:]...)
		if err := resp.Encode(c, v); err != nil {
			s.t.Errorf("mock server: encode %T: %v", v, err)
			return
		}
	}
}
