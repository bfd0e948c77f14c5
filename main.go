package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"

	"retirement-engine/internal/engine"
	"retirement-engine/internal/model"
	"retirement-engine/internal/rules"
)

func main() {
	input := flag.String("input", "-", "calculation request JSON file, - for stdin")
	rulesFile := flag.String("rules", "", "optional YAML file overriding the built-in fiscal rules")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *input, *rulesFile); err != nil {
		logger.Error("calculation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, input, rulesFile string) error {
	rs := rules.Default()
	if rulesFile != "" {
		data, err := os.ReadFile(rulesFile)
		if err != nil {
			return fmt.Errorf("read rules: %w", err)
		}
		rs, err = rs.WithYAML(data)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		slog.Debug("loaded rules override", "file", rulesFile)
	}

	var raw []byte
	var err error
	if input == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(input)
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	var req model.CalculationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	resp := engine.New(rs).Process(ctx, &req)

	slog.Info("calculation complete",
		"calculation_id", resp.CalculationMetadata.CalculationID,
		"outcome", resp.CalculationMetadata.CalculationOutcome,
		"instructions", len(resp.CalculationResult.Instructions),
		"messages", len(resp.CalculationResult.Messages),
		"duration_ms", resp.CalculationMetadata.CalculationDurationMs)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
