package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lectorhq/pagesplit/internal/config"
	"github.com/lectorhq/pagesplit/internal/gcp"
	"github.com/lectorhq/pagesplit/internal/resolver"
	"github.com/lectorhq/pagesplit/internal/server"
	"github.com/lectorhq/pagesplit/internal/splitter"
	"github.com/lectorhq/pagesplit/internal/status"
	"github.com/lectorhq/pagesplit/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("Server exited with error.", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	source, artifacts, err := buildBlobStores(ctx, cfg)
	if err != nil {
		return err
	}
	statusStore, err := buildStatusStore(ctx, cfg)
	if err != nil {
		return err
	}

	var opts []splitter.Option
	if cfg.WorkflowID != "" {
		execClient, err := gcp.NewExecutionsClient(ctx)
		if err != nil {
			return err
		}
		defer execClient.Close()
		opts = append(opts, splitter.WithCompletionTrigger(
			splitter.NewWorkflowTrigger(execClient, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)))
	}
	runner := splitter.New(source, artifacts, statusStore, opts...)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(runner, resolver.New(source, artifacts), statusStore, artifacts).Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Page-splitting server listening.", "addr", cfg.ListenAddr, "blobBackend", cfg.BlobBackend, "statusBackend", cfg.StatusBackend)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Outstanding jobs are drained, not cancelled, so their status
		// records reach a terminal state.
		runner.Close()
		return err
	})
	return g.Wait()
}

func buildBlobStores(ctx context.Context, cfg *config.Config) (store.BlobStore, store.BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendGCS:
		client, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return store.NewGCS(client, cfg.SourceBucket), store.NewGCS(client, cfg.SplitPagesBucket), nil
	default:
		source, err := store.NewFS(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		artifacts, err := store.NewFS(filepath.Join(cfg.DataDir, "pages"))
		if err != nil {
			return nil, nil, err
		}
		return source, artifacts, nil
	}
}

func buildStatusStore(ctx context.Context, cfg *config.Config) (status.Store, error) {
	switch cfg.StatusBackend {
	case config.StatusBackendFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		return status.NewFirestoreStore(client, cfg.FirestoreCollection), nil
	default:
		return status.NewFileStore(filepath.Join(cfg.DataDir, "status"))
	}
}
