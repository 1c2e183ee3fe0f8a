// Package main is the entry point: it reads configuration from the
// environment, constructs the database and file store, and starts the
// server. All real logic lives in internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/sakif/broken-weave/internal/repository"
	"github.com/sakif/broken-weave/internal/repository/postgres"
	"github.com/sakif/broken-weave/internal/repository/sqlite"
	"github.com/sakif/broken-weave/internal/server"
	"github.com/sakif/broken-weave/internal/storage"
)

// Configuration is environment-only:
//
//	PORT               listen port                      (default 8080)
//	JWT_SECRET         token signing secret, >= 16 chars (required)
//	DB_DRIVER          "sqlite" or "postgres"           (default sqlite)
//	DB_PATH            sqlite file path                 (default data/registry.db)
//	DATABASE_DSN       postgres connection string       (required with DB_DRIVER=postgres)
//	UPLOAD_BACKEND     "local", "s3", or "none"         (default local)
//	UPLOAD_DIR         local upload directory           (default uploads)
//	S3_ENDPOINT        bucket endpoint, host:port or URL
//	S3_ACCESS_KEY      bucket access key
//	S3_SECRET_KEY      bucket secret key
//	S3_BUCKET          bucket name
//	TEMPLATE_DIR       HTML templates                   (default web/templates)
//	STATIC_DIR         static assets                    (default web/static)
//	PUBLIC_VOLUNTEERS  "true" opens the volunteer list to everyone
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := run(logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	cfg := server.Config{
		Port:             envInt("PORT", 8080),
		TemplateDir:      envStr("TEMPLATE_DIR", "web/templates"),
		StaticDir:        envStr("STATIC_DIR", "web/static"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		PublicVolunteers: os.Getenv("PUBLIC_VOLUNTEERS") == "true",
	}

	store, err := openStore(ctx, logger)
	if err != nil {
		return err
	}

	files, err := openFileStore(ctx, logger)
	if err != nil {
		store.Close()
		return err
	}

	srv, err := server.New(cfg, store, files, logger)
	if err != nil {
		store.Close()
		return err
	}

	return srv.Start()
}

// openStore picks the database adapter from DB_DRIVER. Both adapters run
// their own migrations on startup.
func openStore(ctx context.Context, logger *slog.Logger) (repository.Store, error) {
	driver := envStr("DB_DRIVER", "sqlite")

	switch driver {
	case "sqlite":
		path := envStr("DB_PATH", "data/registry.db")
		logger.Info("opening sqlite database", slog.String("path", path))
		return sqlite.New(path)
	case "postgres":
		dsn := os.Getenv("DATABASE_DSN")
		logger.Info("opening postgres database")
		return postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", driver)
	}
}

// openFileStore picks the upload backend from UPLOAD_BACKEND. "none"
// returns nil: reports then persist no image and image replacement answers
// 501.
func openFileStore(ctx context.Context, logger *slog.Logger) (storage.Store, error) {
	backend := envStr("UPLOAD_BACKEND", "local")

	switch backend {
	case "local":
		dir := envStr("UPLOAD_DIR", "uploads")
		logger.Info("using local upload storage", slog.String("dir", dir))
		return storage.NewLocal(dir)
	case "s3":
		logger.Info("using s3 upload storage", slog.String("bucket", os.Getenv("S3_BUCKET")))
		return storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    os.Getenv("S3_BUCKET"),
			UseSSL:    os.Getenv("S3_USE_SSL") == "true",
		})
	case "none":
		logger.Warn("file uploads disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("UPLOAD_BACKEND must be local, s3, or none, got %q", backend)
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
