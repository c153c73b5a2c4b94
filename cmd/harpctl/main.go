// cmd/harpctl/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/tamzrod/harp-replicator/internal/config"
	"github.com/tamzrod/harp-replicator/internal/device/catalog"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/logging"
	"github.com/tamzrod/harp-replicator/internal/poller/link"
	"github.com/tamzrod/harp-replicator/internal/transport"
)

var version = "dev"

func main() {
	port := flag.String("port", "", "serial port of the device (required)")
	kind := flag.String("device", catalog.KindLicketySplit, "device kind: "+strings.Join(catalog.Kinds(), ", "))
	baud := flag.Int("baud", transport.DefaultBaudRate, "serial baud rate")
	timeout := flag.Duration("timeout", 500*time.Millisecond, "reply timeout per command")
	exec := flag.String("exec", "", "run ';'-separated commands and exit")
	level := flag.String("log-level", "warn", "log level")
	dump := flag.String("dump", "", "print device messages from a capture file and exit (no port needed)")
	only := flag.String("register", "", "with -dump: only this register (name or address)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dump != "" {
		info, err := catalog.Lookup(*kind)
		if err == nil {
			err = dumpCapture(ctx, os.Stdout, info.Table, *dump, *only)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "harpctl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *port == "" {
		fmt.Fprintln(os.Stderr, "harpctl: -port is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(ctx, *port, *kind, *baud, *timeout, *exec, *level); err != nil {
		fmt.Fprintf(os.Stderr, "harpctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, port, kind string, baud int, timeout time.Duration, exec, level string) error {
	// Interactive output must go through readline so events do not
	// clobber the prompt.
	var (
		rl  *readline.Instance
		out io.Writer = os.Stdout
		err error
	)
	if exec == "" {
		rl, err = readline.NewEx(&readline.Config{
			Prompt:          "harp> ",
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()
		out = rl.Stdout()
	}

	log := logging.New(config.LoggingConfig{Level: level, Format: "console", Output: "stderr"}, version)

	var events atomic.Bool
	var sh *shell
	var ready atomic.Bool

	c, err := link.Dial(ctx, link.Config{
		Unit:     "harpctl",
		Device:   kind,
		Port:     port,
		BaudRate: baud,
		Timeout:  timeout,
		Log:      log,
		OnEvent: func(m harp.Message) {
			if events.Load() && ready.Load() {
				sh.printEvent(m)
			}
		},
	})
	if err != nil {
		return err
	}
	defer c.Close()

	sh = newShell(c.Device(), out, timeout, &events)
	ready.Store(true)

	if exec != "" {
		for _, line := range strings.Split(exec, ";") {
			quit, err := sh.exec(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				break
			}
		}
		return nil
	}

	sh.printHelp()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return fmt.Errorf("link closed: %w", c.Transport().Err())
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			return nil
		}

		quit, err := sh.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit {
			fmt.Fprintln(out, "Exiting...")
			return nil
		}
	}
}
