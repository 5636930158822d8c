// Command rctmon talks to an RCT inverter's TCP serial port, decodes
// its frames, and republishes them as JSONL and/or a Foxglove websocket
// feed. It also doubles as a decoder for captured byte streams and a
// standalone simulator for testing against without real hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"ratitude/pkg/bridge/foxglove"
	"ratitude/pkg/catalog"
	"ratitude/pkg/config"
	"ratitude/pkg/engine"
	"ratitude/pkg/logger"
	"ratitude/pkg/protocol"
	"ratitude/pkg/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:], stdout, stderr)
	case "decode":
		return runDecode(args[1:], stdout, stderr)
	case "catalog":
		return runCatalog(args[1:], stdout, stderr)
	case "simulate":
		return runSimulate(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rctmon serve [--config rctmon.toml]")
	fmt.Fprintln(w, "  rctmon decode [--catalog catalog.toml] [file]")
	fmt.Fprintln(w, "  rctmon catalog [--catalog catalog.toml]")
	fmt.Fprintln(w, "  rctmon simulate [--addr host:port] [--catalog catalog.toml]")
}

func loadRegistry(path string) (*protocol.Registry, error) {
	if path == "" {
		return catalog.Sample()
	}
	return catalog.Load(path)
}

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	withFoxglove := fs.Bool("foxglove", false, "also serve the Foxglove websocket bridge")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	registry, err := loadRegistry(cfg.Catalog.Path)
	if err != nil {
		fmt.Fprintln(stderr, "catalog:", err)
		return 1
	}

	var out io.Writer = stdout
	if cfg.Logger.Path != "" {
		file, err := os.Create(cfg.Logger.Path)
		if err != nil {
			fmt.Fprintln(stderr, "open log file:", err)
			return 1
		}
		defer file.Close()
		out = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := engine.NewHub()
	go hub.Run(ctx)

	events := make(chan engine.Event, cfg.Transport.BufSize)
	reconnect, reconnectMax, dialTimeout, readTimeout := cfg.Durations()
	transport.StartListener(ctx, cfg.Transport.Addr, events,
		transport.WithReconnectInterval(reconnect),
		transport.WithReconnectMax(reconnectMax),
		transport.WithDialTimeout(dialTimeout),
		transport.WithReadTimeout(readTimeout),
		transport.WithErrorHandler(func(err error) {
			fmt.Fprintln(stderr, "transport:", err)
		}),
	)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				hub.Publish(evt)
			}
		}
	}()

	jsonl := logger.NewJSONLWriter(out, registry)
	go jsonl.Consume(ctx, hub.Subscribe())

	if *withFoxglove {
		fcfg := foxglove.DefaultConfig()
		fcfg.WSAddr = cfg.Foxglove.WSAddr
		fcfg.Topic = cfg.Foxglove.Topic
		fcfg.LogTopic = cfg.Foxglove.LogTopic
		srv := foxglove.NewServer(fcfg, hub, registry)
		go func() {
			if err := srv.Run(ctx); err != nil {
				fmt.Fprintln(stderr, "foxglove:", err)
			}
		}()
	}

	<-ctx.Done()
	return 0
}

func runDecode(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	catalogPath := fs.String("catalog", "", "catalog file path (default: built-in sample)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	registry, err := loadRegistry(*catalogPath)
	if err != nil {
		fmt.Fprintln(stderr, "catalog:", err)
		return 1
	}

	var in io.Reader = os.Stdin
	if fs.NArg() > 0 {
		file, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(stderr, "open input:", err)
			return 1
		}
		defer file.Close()
		in = file
	}

	data, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintln(stderr, "read input:", err)
		return 1
	}

	jsonl := logger.NewJSONLWriter(stdout, registry)
	rf := protocol.NewReceiveFrame()
	chunk := data
	for len(chunk) > 0 {
		n := rf.Consume(chunk)
		chunk = chunk[n:]
		if !rf.Complete() {
			if n == 0 {
				break
			}
			continue
		}
		if err := rf.Err(); err == nil {
			_ = jsonl.WriteEvent(engine.Event{Frame: rf.Frame(), At: time.Now()})
		} else {
			fmt.Fprintln(stderr, "decode:", err)
		}
		rf = protocol.NewReceiveFrame()
	}
	return 0
}

func runCatalog(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(stderr)
	catalogPath := fs.String("catalog", "", "catalog file path (default: built-in sample)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	registry, err := loadRegistry(*catalogPath)
	if err != nil {
		fmt.Fprintln(stderr, "catalog:", err)
		return 1
	}

	entries := registry.All()
	for _, e := range entries {
		fmt.Fprintf(stdout, "0x%08X  %-40s  %-10s  %s\n", e.ObjectID, e.Name, e.Group, e.RequestDataType)
	}
	return 0
}

func runSimulate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "127.0.0.1:8899", "TCP address to listen on")
	catalogPath := fs.String("catalog", "", "catalog file path (default: built-in sample)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	registry, err := loadRegistry(*catalogPath)
	if err != nil {
		fmt.Fprintln(stderr, "catalog:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sim, err := newSimulator(*addr, registry, stdout)
	if err != nil {
		fmt.Fprintln(stderr, "simulate:", err)
		return 1
	}
	fmt.Fprintf(stdout, "simulator listening on %s\n", sim.Addr())
	return sim.Run(ctx)
}
