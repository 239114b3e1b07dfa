package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/mna/mainer"
	"github.com/mna/redish"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const binName = "redish-cli"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<arg>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<arg>...]
       %[1]s -h|--help

Execute a command on a redis server via the redish package and print
the reply decoded with the requested shape.

Valid flag options are:
       -h --help                 Show this help and exit immediately.
       -a --addr ADDR            Address of the redis server (default
                                 localhost:6379).
       -s --shape SHAPE          Shape used to decode the reply, e.g.
                                 "int64", "list<text>" or
                                 "map<text,float64>" (default dynamic).
       -t --timeout DUR          Connection timeout (default 5s).
       --legacy                  Decode with the legacy options: sentinel
                                 list elements, empty bulk strings as
                                 nil and truncated integers.
       --parse-shape SHAPE       Parse and print SHAPE and exit
                                 immediately.
       -v --verbose              Log debug messages.

The <command> is the redis command to execute, with the provided <arg>s.
`, binName)
)

type cmd struct {
	Help bool `flag:"h,help"`

	Addr       string        `flag:"a,addr"`
	Shape      string        `flag:"s,shape"`
	Timeout    time.Duration `flag:"t,timeout"`
	Legacy     bool          `flag:"legacy"`
	ParseShape string        `flag:"parse-shape"`
	Verbose    bool          `flag:"v,verbose"`

	args  []string
	shape redish.Shape
}

func (c *cmd) SetArgs(args []string) {
	c.args = args
}

func (c *cmd) Validate() error {
	if c.Help || c.ParseShape != "" {
		return nil
	}

	if c.Timeout < 0 {
		return errors.New("--timeout must be >= 0")
	}
	if c.Shape != "" {
		s, err := redish.ParseShape(c.Shape)
		if err != nil {
			return err
		}
		c.shape = s
	}
	if len(c.args) == 0 {
		return errors.New("no redis command provided")
	}
	return nil
}

func (c *cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	var p mainer.Parser
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.ParseShape != "":
		s, err := redish.ParseShape(c.ParseShape)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return mainer.InvalidArgs
		}
		fmt.Fprintln(stdio.Stdout, s)
		return mainer.Success
	}

	logger := zap.NewNop()
	if c.Verbose {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		logger = zap.New(zapcore.NewCore(enc, zapcore.AddSync(stdio.Stderr), zapcore.DebugLevel))
		defer logger.Sync()
	}

	v, err := c.execute(context.Background(), logger)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "(error) %s\n", err)
		return mainer.ExitCode(1)
	}
	printValue(stdio.Stdout, v, "")
	return mainer.Success
}

func (c *cmd) execute(ctx context.Context, logger *zap.Logger) (interface{}, error) {
	addr := c.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	client := &redish.Client{
		Addr: addr,
		DialOptions: []redis.DialOption{
			redis.DialConnectTimeout(timeout),
			redis.DialReadTimeout(timeout),
			redis.DialWriteTimeout(timeout),
		},
		Logger: logger,
	}
	if c.Legacy {
		client.DecodeOptions = redish.LegacyDecodeOptions
	}
	defer client.Close()

	conn, err := client.Dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	args := make([]interface{}, len(c.args)-1)
	for i, a := range c.args[1:] {
		args[i] = a
	}
	logger.Debug("executing", zap.String("addr", addr), zap.String("command", c.args[0]), zap.Stringer("shape", c.shape))
	return conn.DoShape(ctx, c.shape, c.args[0], args...)
}

// printValue prints v the way redis-cli prints replies: nil values as
// (nil), strings quoted, lists and maps as numbered lines.
func printValue(w io.Writer, v interface{}, indent string) {
	if v == nil {
		fmt.Fprintln(w, "(nil)")
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			fmt.Fprintln(w, "(nil)")
			return
		}
		printValue(w, rv.Elem().Interface(), indent)

	case reflect.String:
		fmt.Fprintf(w, "%q\n", rv.String())

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			fmt.Fprintf(w, "%q\n", rv.Bytes())
			return
		}
		if rv.IsNil() {
			fmt.Fprintln(w, "(nil)")
			return
		}
		if rv.Len() == 0 {
			fmt.Fprintln(w, "(empty list)")
			return
		}
		for i := 0; i < rv.Len(); i++ {
			printItem(w, indent, i+1, rv.Index(i).Interface())
		}

	case reflect.Map:
		if rv.IsNil() {
			fmt.Fprintln(w, "(nil)")
			return
		}
		if rv.Len() == 0 {
			fmt.Fprintln(w, "(empty map)")
			return
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for i, k := range keys {
			prefix := fmt.Sprintf("%d) %s => ", i+1, formatKey(k.Interface()))
			fmt.Fprint(w, indent+prefix)
			printNested(w, indent, len(prefix), rv.MapIndex(k).Interface())
		}

	case reflect.Bool:
		if rv.Bool() {
			fmt.Fprintln(w, "(true)")
		} else {
			fmt.Fprintln(w, "(false)")
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fmt.Fprintf(w, "(integer) %v\n", v)

	case reflect.Float32, reflect.Float64:
		fmt.Fprintf(w, "(double) %v\n", v)

	default:
		fmt.Fprintf(w, "%v\n", v)
	}
}

func printItem(w io.Writer, indent string, n int, v interface{}) {
	prefix := fmt.Sprintf("%d) ", n)
	fmt.Fprint(w, indent+prefix)
	printNested(w, indent, len(prefix), v)
}

// printNested prints v after a prefix of width columns was already
// written. Nested lists and maps start on the same line, their
// following lines are indented past the prefix.
func printNested(w io.Writer, indent string, width int, v interface{}) {
	var buf strings.Builder
	printValue(&buf, v, "")
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	pad := indent + strings.Repeat(" ", width)
	for i, l := range lines {
		if i > 0 {
			fmt.Fprint(w, pad)
		}
		fmt.Fprintln(w, l)
	}
}

func formatKey(k interface{}) string {
	if s, ok := k.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(k)
}

func main() {
	var c cmd
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
