package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/retina-explain-mcp/internal/analysis"
	"github.com/ironsheep/retina-explain-mcp/internal/config"
	"github.com/ironsheep/retina-explain-mcp/internal/inference"
	"github.com/ironsheep/retina-explain-mcp/internal/logging"
	"github.com/ironsheep/retina-explain-mcp/internal/nn"
	"github.com/ironsheep/retina-explain-mcp/internal/server"
	"github.com/ironsheep/retina-explain-mcp/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("retina-explain-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "retina-explain-mcp: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("retina-explain-mcp - MCP server for explained retinal OCT classification")
	fmt.Println()
	fmt.Println("Usage: retina-explain-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Printf("  %-22s Model kind (default efficientnet_b4)\n", config.EnvModel)
	fmt.Printf("  %-22s Directory holding <model>.gob checkpoints (default models)\n", config.EnvWeightsDir)
	fmt.Printf("  %-22s Default heatmap opacity (default 0.5)\n", config.EnvAlpha)
	fmt.Printf("  %-22s Square model input size (default 224)\n", config.EnvInputSize)
	fmt.Printf("  %-22s debug, info, warn or error (default info)\n", config.EnvLogLevel)
	fmt.Printf("  %-22s Tesseract language (default eng)\n", config.EnvOCRLang)
	fmt.Printf("  %-22s Optional .onnx model for scan_classify backend=onnx\n", config.EnvONNXModel)
	fmt.Printf("  %-22s Metadata JSON for the .onnx model\n", config.EnvONNXMetadata)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries the protocol, so logs go to stderr
	logger, err := logging.New("retina-mcp", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", GitCommit),
		zap.String("model", cfg.Model))

	model, err := nn.Load(nn.Kind(cfg.Model), cfg.WeightsDir, logger)
	if err != nil {
		return err
	}

	patients := store.NewMemoryPatientRepository()
	analyses := store.NewMemoryAnalysisRepository()
	svc, err := analysis.NewService(model,
		analysis.WithLogger(logger.Named("analysis")),
		analysis.WithAlpha(cfg.Alpha),
		analysis.WithInputSize(cfg.InputSize),
		analysis.WithRepositories(patients, analyses))
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger.Named("server")),
		server.WithRepositories(patients, analyses),
		server.WithOCRLanguage(cfg.OCRLang),
		server.WithVersion(Version),
	}
	if cfg.ONNXModel != "" {
		predictor, perr := inference.NewPredictor(cfg.ONNXModel, cfg.ONNXMetadata)
		if perr != nil {
			logger.Warn("onnx backend disabled", zap.String("model", cfg.ONNXModel), zap.Error(perr))
		} else {
			defer func() { err = multierr.Append(err, predictor.Close()) }()
			opts = append(opts, server.WithPredictor(predictor))
			logger.Info("onnx backend enabled", zap.String("model", cfg.ONNXModel))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(svc, opts...).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}
