package redish_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/mna/redish"
	"go.uber.org/zap"
)

// Create and use a client.
func Example() {
	// create the client
	client := &redish.Client{
		Addr:        "localhost:6379",
		DialOptions: []redis.DialOption{redis.DialConnectTimeout(5 * time.Second)},
		CreatePool:  createPool,
	}
	defer client.Close()

	// grab a connection from the pool
	conn, err := client.Get()
	if err != nil {
		log.Fatalf("Get failed: %v", err)
	}
	defer conn.Close()

	// call commands on it
	if _, err := conn.Do("SET", "some-key", 42); err != nil {
		log.Fatalf("SET failed: %v", err)
	}

	n, err := redish.Command[int64](context.Background(), conn, redish.Int64, "GET", "some-key")
	if err != nil {
		log.Fatalf("GET failed: %v", err)
	}
	log.Println(n)
}

func createPool(addr string, opts ...redis.DialOption) (*redis.Pool, error) {
	return &redis.Pool{
		MaxIdle:     5,
		MaxActive:   10,
		IdleTimeout: time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}, nil
}

// Decode replies with shapes.
func ExampleCommand() {
	conn, err := redish.Dial("localhost", 6379, 5*time.Second)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	// maps are flattened to alternating keys and values
	if _, err := conn.Do("HSET", "user:1", map[string]interface{}{"name": "Jane", "visits": 3}); err != nil {
		log.Fatalf("HSET failed: %v", err)
	}

	user, err := redish.Command[map[string]string](ctx, conn,
		redish.MapOf(redish.Text, redish.Text), "HGETALL", "user:1")
	if err != nil {
		log.Fatalf("HGETALL failed: %v", err)
	}
	fmt.Println(user["name"], user["visits"])

	// list elements are optional, a missing key is a nil element
	vals, err := redish.Command[[]*int64](ctx, conn, redish.ListOf(redish.Int64), "MGET", "counter", "missing")
	if err != nil {
		log.Fatalf("MGET failed: %v", err)
	}
	for _, v := range vals {
		if v == nil {
			fmt.Println("(nil)")
			continue
		}
		fmt.Println(*v)
	}
}

// Parse a shape from its textual form.
func ExampleParseShape() {
	s, err := redish.ParseShape("map<text, list<float64>>")
	if err != nil {
		log.Fatalf("ParseShape failed: %v", err)
	}
	fmt.Println(s.IsMap(), s.Key(), s.Elem())

	// Output:
	// true text list<float64>
}

// Flatten command arguments.
func ExampleFlatten() {
	for _, arg := range redish.Flatten("HMSET", "h", map[string]int{"b": 2, "a": 1}, []string{"c", "d"}) {
		fmt.Printf("%s ", arg)
	}
	fmt.Println()

	// Output:
	// HMSET h a 1 b 2 c d
}

// Execute an optimistic transaction.
func ExampleConn_Transact() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("NewDevelopment failed: %v", err)
	}

	client := &redish.Client{Addr: "localhost:6379", Logger: logger}
	defer client.Close()

	conn, err := client.Get()
	if err != nil {
		log.Fatalf("Get failed: %v", err)
	}
	defer conn.Close()

	// double the value of a key, retrying if the key is modified concurrently
	var current int64
	res, err := conn.Transact(context.Background(), redish.Transaction{
		Name:       "double",
		RetryDelay: 10 * time.Millisecond,
		MaxRetries: 5,
		Policy:     redish.RetryRandomized,
		Prepare: func(c *redish.Conn) error {
			if _, err := c.Do("WATCH", "some-key"); err != nil {
				return err
			}
			v, err := redish.Command[int64](context.Background(), c, redish.Int64, "GET", "some-key")
			current = v
			return err
		},
		Queue: func(c *redish.Conn) error {
			_, err := c.Do("SET", "some-key", current*2)
			return err
		},
	})
	if err != nil {
		log.Fatalf("Transact failed: %v", err)
	}
	fmt.Println(*res[0])
}
