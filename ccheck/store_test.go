package main

import (
	"sync"
	"testing"

	"github.com/mna/redish/redistest"
	"github.com/mna/redish/redistest/resp"
)

// memStore is an in-memory implementation of the few commands used by
// ccheck, served by a redistest mock server. It does not track watched
// keys, instead abortNext EXEC calls fail as if a watched key was
// modified.
type memStore struct {
	mu        sync.Mutex
	data      map[string]string
	multi     bool
	queued    [][]string
	abortNext int
	execs     int
}

func startMemStore(t *testing.T) (*memStore, *redistest.MockServer) {
	m := &memStore{data: make(map[string]string)}
	return m, redistest.StartMockServer(t, m.handle)
}

func (m *memStore) handle(cmd string, args ...string) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.multi && cmd != "EXEC" && cmd != "DISCARD" {
		m.queued = append(m.queued, append([]string{cmd}, args...))
		return resp.SimpleString("QUEUED")
	}

	switch cmd {
	case "WATCH", "UNWATCH":
		return resp.SimpleString("OK")
	case "MULTI":
		m.multi = true
		return resp.SimpleString("OK")
	case "DISCARD":
		m.multi, m.queued = false, nil
		return resp.SimpleString("OK")
	case "EXEC":
		m.execs++
		queued := m.queued
		m.multi, m.queued = false, nil
		if m.abortNext > 0 {
			m.abortNext--
			return resp.Array(nil)
		}
		res := resp.Array{}
		for _, q := range queued {
			res = append(res, m.exec(q[0], q[1:]...))
		}
		return res
	}
	return m.exec(cmd, args...)
}

func (m *memStore) exec(cmd string, args ...string) interface{} {
	switch cmd {
	case "PING":
		return resp.SimpleString("PONG")
	case "GET":
		if v, ok := m.data[args[0]]; ok {
			return v
		}
		return nil
	case "SET":
		m.data[args[0]] = args[1]
		return resp.SimpleString("OK")
	case "DEL":
		if _, ok := m.data[args[0]]; ok {
			delete(m.data, args[0])
			return int64(1)
		}
		return int64(0)
	}
	return resp.Error("ERR unknown command '" + cmd + "'")
}

func (m *memStore) set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *memStore) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *memStore) abort(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abortNext = n
}

func (m *memStore) execCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execs
}
