// Command ccheck implements a consistency checker for the redish package,
// in the spirit of the one described in
// http://redis.io/topics/cluster-tutorial. It is used to test the redish
// optimistic transactions against a real redis server, e.g. during
// failovers or restarts. With the --bench flag, it instead runs a simple
// benchmark of SET, GET and DEL commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mna/mainer"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const binName = "ccheck"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...]
       %[1]s -h|--help

Check the consistency of writes executed as optimistic transactions
on a redis server, printing statistics each second.

Valid flag options are:
       -h --help                 Show this help and exit immediately.
       --config FILE             Load the configuration from this TOML
                                 file, flags set on the command line
                                 override its values, even when set
                                 to 0.
       -a --addr ADDR            Address of the redis server.
       -c --conn-timeout DUR     Connection timeout.
       -r --read-timeout DUR     Read timeout.
       -w --write-timeout DUR    Write timeout.
       -i --idle-timeout DUR     Pooled connection idle timeout.
       --max-idle INT            Maximum idle connections in the pool.
       --max-active INT          Maximum active connections in the pool.
       -d --delay DUR            Delay between checks.
       --max-retries INT         Maximum retries of an aborted write.
       --retry-delay DUR         Delay before retrying an aborted write.
       -n --iterations INT       Stop after this number of checks, run
                                 until interrupted if 0.
       --bench INT               Run a benchmark of INT SET, GET and DEL
                                 commands instead of the check.
       --bench-size INT          Size in bytes of the benchmark values.
       -v --verbose              Log debug messages.
`, binName)
)

type cmd struct {
	Help bool `flag:"h,help"`

	Config       string        `flag:"config"`
	Addr         string        `flag:"a,addr"`
	ConnTimeout  time.Duration `flag:"c,conn-timeout"`
	ReadTimeout  time.Duration `flag:"r,read-timeout"`
	WriteTimeout time.Duration `flag:"w,write-timeout"`
	IdleTimeout  time.Duration `flag:"i,idle-timeout"`
	MaxIdle      int           `flag:"max-idle"`
	MaxActive    int           `flag:"max-active"`
	Delay        time.Duration `flag:"d,delay"`
	MaxRetries   int           `flag:"max-retries"`
	RetryDelay   time.Duration `flag:"retry-delay"`
	Iterations   int           `flag:"n,iterations"`
	Bench        int           `flag:"bench"`
	BenchSize    int           `flag:"bench-size"`
	Verbose      bool          `flag:"v,verbose"`

	args []string
	set  map[string]bool // flags present on the command line
}

func (c *cmd) SetArgs(args []string) {
	c.args = args
}

func (c *cmd) Validate() error {
	if c.Help {
		return nil
	}
	if len(c.args) > 0 {
		return fmt.Errorf("unexpected argument: %s", c.args[0])
	}
	return nil
}

// config returns the configuration resulting from the defaults, the
// config file if any and the flags set on the command line, in
// increasing order of precedence.
func (c *cmd) config() (config, error) {
	cfg := defaultConfig()
	if c.Config != "" {
		var err error
		if cfg, err = loadConfig(c.Config, cfg); err != nil {
			return cfg, err
		}
	}

	if c.isSet("a", "addr") {
		cfg.Addr = c.Addr
	}
	for _, d := range []struct {
		names []string
		flag  time.Duration
		dst   *time.Duration
	}{
		{[]string{"c", "conn-timeout"}, c.ConnTimeout, &cfg.ConnectTimeout},
		{[]string{"r", "read-timeout"}, c.ReadTimeout, &cfg.ReadTimeout},
		{[]string{"w", "write-timeout"}, c.WriteTimeout, &cfg.WriteTimeout},
		{[]string{"i", "idle-timeout"}, c.IdleTimeout, &cfg.IdleTimeout},
		{[]string{"d", "delay"}, c.Delay, &cfg.Delay},
		{[]string{"retry-delay"}, c.RetryDelay, &cfg.RetryDelay},
	} {
		if c.isSet(d.names...) {
			*d.dst = d.flag
		}
	}
	for _, i := range []struct {
		names []string
		flag  int
		dst   *int
	}{
		{[]string{"max-idle"}, c.MaxIdle, &cfg.MaxIdle},
		{[]string{"max-active"}, c.MaxActive, &cfg.MaxActive},
		{[]string{"max-retries"}, c.MaxRetries, &cfg.MaxRetries},
		{[]string{"n", "iterations"}, c.Iterations, &cfg.Iterations},
		{[]string{"bench"}, c.Bench, &cfg.Bench},
		{[]string{"bench-size"}, c.BenchSize, &cfg.BenchSize},
	} {
		if c.isSet(i.names...) {
			*i.dst = i.flag
		}
	}

	return cfg, cfg.validate()
}

func (c *cmd) isSet(names ...string) bool {
	for _, n := range names {
		if c.set[n] {
			return true
		}
	}
	return false
}

// flagsSet returns the names of the flags present in args, without
// their leading dashes and values. Parsing stops at "--".
func flagsSet(args []string) map[string]bool {
	set := make(map[string]bool)
	for _, a := range args {
		if a == "--" {
			break
		}
		if len(a) < 2 || a[0] != '-' {
			continue
		}
		name := strings.TrimLeft(a, "-")
		if ix := strings.IndexByte(name, '='); ix >= 0 {
			name = name[:ix]
		}
		set[name] = true
	}
	return set
}

func (c *cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	var p mainer.Parser
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	if c.Help {
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	}
	if len(args) > 0 {
		c.set = flagsSet(args[1:])
	}

	cfg, err := c.config()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid configuration: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	logger := newLogger(stdio.Stderr, c.Verbose)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := execute(ctx, cfg, logger, stdio.Stdout); err != nil {
		logger.Error("ccheck failed", zap.Error(err))
		return mainer.ExitCode(1)
	}
	return mainer.Success
}

func execute(ctx context.Context, cfg config, logger *zap.Logger, stdout io.Writer) error {
	client := cfg.client(logger)
	defer client.Close()

	if cfg.Bench > 0 {
		conn, err := client.GetContext(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		res, err := runBench(ctx, conn, cfg.Bench, cfg.BenchSize)
		if err != nil {
			return err
		}
		res.print(stdout)
		return nil
	}

	chk := newChecker(client, cfg, logger)
	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	done := make(chan struct{})
	go func() {
		defer close(done)
		chk.printStats(statsCtx, stdout, time.Second)
	}()

	err := chk.run(ctx, cfg.Iterations)
	stopStats()
	<-done
	fmt.Fprintln(stdout, chk.snapshot())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

func main() {
	var c cmd
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
