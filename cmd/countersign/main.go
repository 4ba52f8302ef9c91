package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/perigee-labs/countersign/internal/config"
	"github.com/perigee-labs/countersign/internal/doctor"
	"github.com/perigee-labs/countersign/internal/keys"
	"github.com/perigee-labs/countersign/internal/lock"
	"github.com/perigee-labs/countersign/internal/log"
	"github.com/perigee-labs/countersign/internal/trigger"
	"github.com/perigee-labs/countersign/internal/webhook"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "doctor":
		os.Exit(runDoctor(args))
	case "version":
		fmt.Printf("countersign version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`countersign - Signed-webhook verification gateway

Usage:
  countersign <command> [flags]

Commands:
  start     Run the gateway in the foreground
  doctor    Validate configuration and key material without serving
  version   Print the version

Flags:
  --config <path>   Configuration file (default: ./config.yaml)
  --json            doctor: emit the report as JSON
`)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("gateway")

	// A missing or malformed key for any source stops the process here,
	// before it can serve a single request.
	sourceKeys, err := keys.LoadAll(cfg.Sources)
	if err != nil {
		logger.Error("key material rejected", "error", err)
		return 1
	}
	for _, sk := range sourceKeys {
		logger.Info("verification key loaded",
			"source", sk.Source,
			"fingerprint", sk.Fingerprint,
		)
	}

	if cfg.Service.LockFile != "" {
		l, err := lock.Acquire(cfg.Service.LockFile)
		if err != nil {
			logger.Error("failed to acquire instance lock", "error", err)
			return 1
		}
		defer l.Release()
	}

	var trig webhook.SigningTrigger
	if cfg.Trigger != nil {
		trig = trigger.New(*cfg.Trigger, log.WithComponent("trigger"))
	} else {
		logger.Warn("no signing-trigger endpoint configured; transaction events will not trigger signing")
	}

	maxBody, err := config.ParseMaxBodySize(cfg.Service.MaxBodySize)
	if err != nil {
		logger.Error("invalid max body size", "error", err)
		return 1
	}

	server := webhook.New(
		webhook.Config{Listen: cfg.Service.Listen, MaxBodySize: maxBody},
		sourceKeys,
		trig,
		log.WithComponent("webhook"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("server exited", "error", err)
		return 1
	}
	return 0
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "configuration file")
	asJSON := fs.Bool("json", false, "emit report as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
	} else {
		printDoctorReport(result)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func printDoctorReport(r *doctor.Result) {
	for _, k := range r.Keys {
		fmt.Printf("key ok: source=%s curve=%s fingerprint=%s\n", k.Source, k.Curve, k.Fingerprint)
	}
	for _, w := range r.Warnings {
		fmt.Printf("warning [%s] %s: %s\n", w.Category, w.Field, w.Message)
	}
	for _, e := range r.Errors {
		fmt.Printf("error [%s] %s: %s\n", e.Category, e.Field, e.Message)
	}
	if r.Valid {
		fmt.Println("configuration ok")
	} else {
		fmt.Println("configuration invalid")
	}
}
