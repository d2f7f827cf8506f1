package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"RagChat/internal/app"
	"RagChat/internal/config"
	"RagChat/internal/repl"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		kind       string
		provider   string
		model      string
		storeDSN   string
		mcpServers string
		seedDemo   bool
		debug      bool
		telemetry  bool
	)

	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&kind, "responder", config.ResponderSimulator, "Reply source (simulator|llm|mcp)")
	flag.StringVar(&provider, "provider", "ollama", "LLM provider (ollama|anthropic|grok|openai)")
	flag.StringVar(&model, "model", "", "LLM model, e.g. llama3:latest")
	flag.StringVar(&storeDSN, "db", "", "SQLite file for conversations (default in memory)")
	flag.StringVar(&mcpServers, "mcp", "", "Comma-separated MCP servers (URLs or commands)")
	flag.BoolVar(&seedDemo, "seed-demo", false, "Load the sample conversations")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&telemetry, "telemetry", false, "Write traces and metrics under the log directory")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// explicitly set flags win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "responder":
			cfg.Responder.Kind = kind
		case "provider":
			cfg.LLM.Provider = provider
		case "model":
			cfg.LLM.Model = model
		case "db":
			cfg.Store.Driver = config.StoreSQLite
			cfg.Store.DSN = storeDSN
		case "mcp":
			cfg.MCP.Servers = strings.Split(mcpServers, ",")
		case "seed-demo":
			cfg.SeedDemo = seedDemo
		case "debug":
			if debug {
				cfg.Logging.Level = "debug"
			}
		case "telemetry":
			cfg.Telemetry.Enabled = telemetry
		}
	})
	if err := cfg.Finalize(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize ragchat: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	opts := []repl.Option{
		repl.WithCatalog(a.Tenants(), a.Entities()),
		repl.WithBanner("Responder: " + a.ResponderName),
		repl.WithLogger(a.Logger),
	}
	switch cfg.Responder.Kind {
	case config.ResponderLLM:
		opts = append(opts, repl.WithModels(a.Models))
	case config.ResponderMCP:
		opts = append(opts, repl.WithTools(a.Tools))
	}

	return repl.New(a.Controller, os.Stdin, os.Stdout, opts...).Run(ctx)
}
