// Command goclerk drives the Frontend API from a terminal.
//
// Every invocation restores the device token from the configured keychain,
// loads the current client and runs one step, so a sign-up or sign-in can be
// completed across several invocations:
//
//	goclerk sign-up -email a@b.com -password secret
//	goclerk prepare -strategy email_code
//	goclerk verify -strategy email_code -code 424242
//	goclerk token
//
// The memory keychain forgets everything when the process exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	goClerk "github.com/MrEthical07/goClerk"
	"github.com/MrEthical07/goClerk/internal/logging"
	"github.com/MrEthical07/goClerk/keychain"
	"github.com/redis/go-redis/v9"
)

const defaultConfigPath = "goclerk.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 success, 1 operation failure, 2 usage.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("goclerk", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", defaultConfigPath, "path to the YAML config file")
	global.Usage = func() { usage(global) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(global)
		return 2
	}

	cmd, ok := commands[global.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", global.Arg(0))
		usage(global)
		return 2
	}

	explicit := false
	global.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	fc, err := loadFileConfig(*configPath, explicit)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	fs := flag.NewFlagSet(global.Arg(0), flag.ContinueOnError)
	fs.SetOutput(stderr)
	exec := cmd.flags(fs)
	if err := fs.Parse(global.Args()[1:]); err != nil {
		return 2
	}

	engine, closeEngine, err := buildEngine(fc, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer closeEngine()

	out, err := exec(ctx, engine)
	if err != nil {
		fmt.Fprintln(stderr, describe(err))
		return 1
	}
	if out != nil {
		if err := printJSON(stdout, out); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	return 0
}

func buildEngine(fc fileConfig, stderr io.Writer) (*goClerk.Engine, func(), error) {
	cfg, err := fc.engineConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewWithWriter(fc.Logging, "goclerk", goClerk.Version, stderr)
	b := goClerk.New().WithConfig(cfg).WithLogger(logger)
	if fc.AuditLog {
		b.WithAuditSink(goClerk.NewJSONWriterSink(stderr))
	}

	var rdb redis.UniversalClient
	switch fc.Keychain.Backend {
	case backendMemory:
		b.WithKeychain(keychain.NewMemory())
	case backendRedis:
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{fc.Keychain.RedisAddr},
			DB:    fc.Keychain.RedisDB,
		})
		b.WithRedis(rdb)
	}

	engine, err := b.Build()
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
	}, nil
}

func describe(err error) string {
	var apiErr *goClerk.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.LongMessage
		if msg == "" {
			msg = apiErr.Message
		}
		return fmt.Sprintf("error: %s (%s, trace %s)", msg, apiErr.Code, apiErr.TraceID)
	}
	return "error: " + err.Error()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "usage: goclerk [-config file] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
}
