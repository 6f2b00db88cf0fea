package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/reimbursement-tracker/internal/record"
	"github.com/zombor/reimbursement-tracker/internal/scanning"
)

type serveConfig struct {
	port        int
	dbPath      string
	postgresDSN string
	storagePath string
	s3          record.S3Config
	scannerType string
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
}

func newServeCommand(root *rootConfig) *ff.Command {
	var cfg serveConfig
	fs := ff.NewFlagSet("serve").SetParent(root.flags)
	fs.IntVar(&cfg.port, 0, "port", 8080, "HTTP server port")
	fs.StringVar(&cfg.dbPath, 0, "db", "reimbursement-tracker.db", "BoltDB file path")
	fs.StringVar(&cfg.postgresDSN, 0, "postgres-dsn", "", "PostgreSQL connection string (replaces --db when set)")
	fs.StringVar(&cfg.storagePath, 0, "storage", "./receipts", "receipt storage directory")
	fs.StringVar(&cfg.s3.Endpoint, 0, "s3-endpoint", "", "S3-compatible endpoint for receipts (replaces --storage when set)")
	fs.StringVar(&cfg.s3.AccessKey, 0, "s3-access-key", "", "S3 access key")
	fs.StringVar(&cfg.s3.SecretKey, 0, "s3-secret-key", "", "S3 secret key")
	fs.StringVar(&cfg.s3.Bucket, 0, "s3-bucket", "receipts", "S3 bucket")
	fs.StringVar(&cfg.s3.Region, 0, "s3-region", "", "S3 region")
	fs.BoolVar(&cfg.s3.UseSSL, 0, "s3-ssl", "use TLS for the S3 endpoint")
	fs.StringVar(&cfg.scannerType, 0, "scanner", "gemini", "scanner type: 'gemini' or 'ollama'")
	fs.StringVar(&cfg.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	fs.StringVar(&cfg.geminiModel, 0, "gemini-models", "", "comma-separated Gemini models, tried in order")
	fs.StringVar(&cfg.ollamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	fs.StringVar(&cfg.ollamaModel, 0, "ollama-model", "llava", "Ollama model name")

	return &ff.Command{
		Name:      "serve",
		Usage:     "reimbursement-tracker serve [FLAGS]",
		ShortHelp: "run the analysis and record service",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			return serve(ctx, cfg)
		},
	}
}

func openDB(ctx context.Context, cfg serveConfig) (record.DB, error) {
	if cfg.postgresDSN != "" {
		slog.Info("Initializing database...", "driver", "postgres")
		return record.NewPostgresDB(ctx, cfg.postgresDSN)
	}
	slog.Info("Initializing database...", "driver", "bolt", "path", cfg.dbPath)
	return record.NewBoltDB(cfg.dbPath)
}

func openStorage(ctx context.Context, cfg serveConfig) (record.Storage, error) {
	if cfg.s3.Endpoint != "" {
		slog.Info("Initializing storage...", "endpoint", cfg.s3.Endpoint, "bucket", cfg.s3.Bucket)
		return record.NewS3Storage(ctx, cfg.s3)
	}
	slog.Info("Initializing storage...", "path", cfg.storagePath)
	return record.NewLocalStorage(cfg.storagePath)
}

func openScanner(cfg serveConfig) (scanning.Scanner, error) {
	switch cfg.scannerType {
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		models := splitList(cfg.geminiModel)
		slog.Info("Initializing Gemini scanner...", "models", models)
		return scanning.NewGemini(apiKey, models...)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q: valid are gemini or ollama", cfg.scannerType)
	}
}

func serve(ctx context.Context, cfg serveConfig) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	scanner, err := openScanner(cfg)
	if err != nil {
		return fmt.Errorf("initializing scanner: %w", err)
	}
	defer scanner.Close()

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	server := record.NewServer(record.NewService(db, scanner, storage))

	addr := fmt.Sprintf(":%d", cfg.port)
	errc := make(chan error, 1)
	go func() {
		errc <- server.Start(addr)
	}()
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
