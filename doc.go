// Package redish implements a redis client that decodes replies
// according to a shape requested by the caller, on top of the redigo
// client package. It also implements optimistic transactions
// (WATCH/MULTI/EXEC) with automatic retries.
//
// Connections
//
// A Conn executes commands on a Transport, which sends the commands to
// the server and parses the replies. The RedigoTransport executes them
// on a redigo redis.Conn. A connection is created with Dial, or with a
// Client, which manages a redigo redis.Pool if its CreatePool function
// field is set:
//
//	client := &redish.Client{
//	  Addr:       "localhost:6379",
//	  CreatePool: createPool,
//	}
//	defer client.Close()
//
//	conn, err := client.Get()
//	if err != nil {
//	  // handle error
//	}
//	defer conn.Close()
//
// A Conn must not be used concurrently. A Client is safe for concurrent
// use.
//
// Commands
//
// The arguments of a command are flattened to a list of strings before
// being sent, see Flatten for the conversion rules. Notably, slices and
// maps add each of their elements, so that:
//
//	conn.Do("HMSET", "key", map[string]string{"a": "1", "b": "2"})
//
// sends HMSET key a 1 b 2.
//
// Shapes
//
// The reply is decoded according to a Shape, which is one of the
// predefined scalar shapes (Text, Binary, Bool, Int64, Float64, etc.) or
// a container shape built with ListOf and MapOf. The Do method uses the
// Dynamic shape, which decodes status and bulk string replies as strings,
// integers as int64 and arrays as []interface{}. The Command function
// decodes the reply with the requested shape and returns it as the
// requested Go type:
//
//	n, err := redish.Command[int64](ctx, conn, redish.Int64, "INCR", "counter")
//	m, err := redish.Command[map[string]float64](ctx, conn,
//	  redish.MapOf(redish.Text, redish.Float64), "ZRANGE", "z", 0, -1, "WITHSCORES")
//
// A nil reply always decodes to nil. An error reply is always returned
// as a ServerError. If the reply cannot be decoded with the requested
// shape, a *FormatError or a *TypeMismatchError is returned, values are
// never silently replaced with a default.
//
// Lists may contain nil elements, or nested arrays where a scalar is
// expected. By default, list elements are decoded to an optional type
// (e.g. ListOf(Int64) decodes to []*int64) and those elements are nil.
// The DecodeOptions type controls this and other policies, and
// LegacyDecodeOptions reproduces the behaviour of older clients.
//
// Transactions
//
// The Transact method executes an optimistic transaction. It calls the
// Prepare function of the Transaction (typically to WATCH keys), sends
// MULTI, calls the Queue function to send the commands of the transaction
// and sends EXEC. If a watched key was modified, EXEC returns nil and the
// transaction is retried, after a fixed or randomized delay, until it
// succeeds or until its retry budget is exhausted:
//
//	res, err := conn.Transact(ctx, redish.Transaction{
//	  Name:       "incr-if-set",
//	  RetryDelay: 10 * time.Millisecond,
//	  MaxRetries: 3,
//	  Policy:     redish.RetryRandomized,
//	  Prepare: func(c *redish.Conn) error {
//	    _, err := c.Do("WATCH", "key")
//	    return err
//	  },
//	  Queue: func(c *redish.Conn) error {
//	    _, err := c.Do("INCR", "key")
//	    return err
//	  },
//	})
//
package redish
