package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpserver "github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/http"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		host  string
		port  int
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query, ingest and clear API over HTTP",
		Long: `Start the HTTP API:

  GET  /health          liveness
  GET  /metrics         Prometheus metrics
  GET  /api/v1/status   collection statistics
  POST /api/v1/query    {"query": "...", "top_k": 5, "distance_threshold": 1.2}
  POST /api/v1/ingest   {"folder": "...", "keep": false}
  POST /api/v1/clear

With --watch the data folder is re-ingested whenever it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			svc, err := a.ingestService()
			if err != nil {
				return err
			}
			cfg := &httpserver.Config{Host: a.cfg.Server.Host, Port: a.cfg.Server.Port}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			deps := httpserver.Deps{
				Retriever:     a.engine,
				Ingester:      svc,
				DefaultFolder: a.cfg.Data.Folder,
				IngestRoot:    a.cfg.Server.IngestRoot,
				Version:       version,
			}
			if a.publisher != nil {
				deps.Notifier = a.publisher
			}
			srv, err := httpserver.NewServer(deps, a.zap, cfg)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration())
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if watch {
				g.Go(func() error {
					return watchAlongside(gctx, a, svc, a.cfg.Data.Folder)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default: server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: server.http_port)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-ingest the data folder when it changes")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var initial bool
	cmd := &cobra.Command{
		Use:   "watch [folder]",
		Short: "Re-ingest a folder whenever its files change",
		Long: `Watch the folder recursively and run the full ingest transaction after
changes settle for watch.debounce (default 2s).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			svc, err := a.ingestService()
			if err != nil {
				return err
			}
			folder := a.folderArg(args)
			if initial {
				report, err := svc.Ingest(ctx, folder, false)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
			}
			return watchFolder(ctx, a, svc, folder)
		},
	}
	cmd.Flags().BoolVar(&initial, "initial", true, "ingest once before watching")
	return cmd
}

func watchFolder(ctx context.Context, a *app, svc *ingestion.Service, folder string) error {
	w := ingestion.NewWatcher(folder, a.cfg.Watch.Debounce.Duration(), func(ctx context.Context) error {
		report, err := svc.Ingest(ctx, folder, false)
		if err != nil {
			return err
		}
		a.zap.Info("re-ingested after change",
			zap.String("run_id", report.RunID),
			zap.Int("chunks", report.Chunks),
			zap.Int("failed", report.FilesFailed))
		return nil
	}, a.zap)
	return w.Run(ctx)
}

// watchAlongside runs the watcher next to the HTTP server. A data folder
// that does not exist yet disables watching instead of stopping the server.
func watchAlongside(ctx context.Context, a *app, svc *ingestion.Service, folder string) error {
	err := watchFolder(ctx, a, svc, folder)
	if errors.Is(err, ingestion.ErrWatchRootMissing) {
		a.zap.Warn("data folder does not exist, watching disabled", zap.String("folder", folder))
		return nil
	}
	return err
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve rag_query, rag_ingest and rag_clear as MCP tools over stdio",
		Long: `Run an MCP server on stdin/stdout so an assistant can pull grounding
context while it writes test cases. Logs go to stderr.

Example client configuration:
  {"command": "ragctl", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			svc, err := a.ingestService()
			if err != nil {
				return err
			}
			var notifier mcp.ClearNotifier
			if a.publisher != nil {
				notifier = a.publisher
			}
			srv, err := mcp.NewServer(&mcp.Config{
				Name:          "ragctl",
				Version:       version,
				DefaultFolder: a.cfg.Data.Folder,
				IngestRoot:    a.cfg.Server.IngestRoot,
				Logger:        a.zap,
			}, a.engine, svc, notifier, a.redactor)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
