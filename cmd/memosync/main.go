package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dmitrijs2005/memosync/internal/buildinfo"
	"github.com/dmitrijs2005/memosync/internal/client/accounts"
	"github.com/dmitrijs2005/memosync/internal/client/cli"
	"github.com/dmitrijs2005/memosync/internal/client/config"
	"github.com/dmitrijs2005/memosync/internal/client/filestore"
	"github.com/dmitrijs2005/memosync/internal/client/services"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/filex"
	"github.com/dmitrijs2005/memosync/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	logger, closer := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	defer closer.Close()

	if cfg.DBDriver == "sqlite" {
		if _, err := filex.EnsureDir(filepath.Dir(cfg.DBDSN)); err != nil {
			log.Fatalf("%v", err)
		}
	}

	store, err := storage.InitDatabase(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer store.Close()

	files, err := openFiles(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	mgr := accounts.NewManager(store, files, logger,
		services.WithQueueSize(cfg.PushQueueSize),
		services.WithBackgroundPush(cfg.BackgroundPush),
	)

	app := cli.NewApp(cfg, mgr, logger)
	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func openFiles(ctx context.Context, cfg *config.Config) (filestore.FileStore, error) {
	if cfg.UsesS3() {
		return filestore.NewS3Store(ctx, filestore.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
	}
	return filestore.NewDiskStore(cfg.FilesDir)
}
