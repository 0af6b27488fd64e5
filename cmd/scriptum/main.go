package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/handler"
	"github.com/Guiss-Guiss/ScriptumAI/internal/job"
	"github.com/Guiss-Guiss/ScriptumAI/internal/middleware"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/jwt"
	"github.com/Guiss-Guiss/ScriptumAI/internal/schedule"
	"github.com/Guiss-Guiss/ScriptumAI/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "scriptum",
		Short: "document ingestion and retrieval service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (defaults apply when empty)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), a)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest <file|dir>",
		Short: "ingest a file or every supported file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				info, err := os.Stat(args[0])
				if err != nil {
					return err
				}
				if info.IsDir() {
					results, err := a.ingest.IngestDirectory(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(results)
				}
				res, err := a.ingest.IngestFile(ctx, args[0], func(count int, stage string) {
					logutil.GetLogger(ctx).Debug("ingest progress", zap.String("stage", stage), zap.Int("count", count))
				})
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}

	var k int
	var threshold float64
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "print the ranked chunks for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				opts := service.QueryOptions{K: k, Threshold: threshold}
				return printJSON(a.query.Search(ctx, strings.Join(args, " "), opts))
			})
		},
	}
	queryCmd := &cobra.Command{
		Use:   "query <question>",
		Short: "answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				opts := service.QueryOptions{K: k, Threshold: threshold}
				return printJSON(a.query.Query(ctx, strings.Join(args, " "), opts))
			})
		},
	}
	for _, c := range []*cobra.Command{searchCmd, queryCmd} {
		c.Flags().IntVar(&k, "k", 0, "number of chunks (0 uses retrieval.top_k)")
		c.Flags().Float64Var(&threshold, "threshold", 0, "minimum similarity score")
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "print per-language collection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app) error {
				stats, err := a.system.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(stats)
			})
		},
	}

	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token <client>",
		Short: "issue an api token signed with auth.jwt_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set")
			}
			token, err := jwt.GenerateToken(args[0], []byte(cfg.Auth.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (0 never expires)")

	rootCmd.AddCommand(runCmd, ingestCmd, searchCmd, queryCmd, statsCmd, tokenCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func withApp(ctx context.Context, configPath string, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = a.Close(closeCtx)
	}()
	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger := logutil.GetLogger(context.Background())
	logger.Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("file_store", cfg.FileStore.Type),
		zap.Strings("languages", cfg.SupportedLanguages),
	)

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewTaskSweepJob(a.tracker, time.Duration(cfg.Tasks.RetentionHours)*time.Hour), cfg.Tasks.SweepSpec); err != nil {
		return fmt.Errorf("schedule task sweep: %w", err)
	}
	if err := scheduler.AddJob(job.NewUploadCleanupJob(a.files, time.Duration(cfg.Tasks.UploadMaxAgeHours)*time.Hour), cfg.Tasks.UploadCleanupSpec); err != nil {
		return fmt.Errorf("schedule upload cleanup: %w", err)
	}

	if a.embedDB != nil && cfg.Cache.PersistentTTLHours > 0 {
		cleanup := job.NewEmbeddingCacheCleanupJob(a.embedDB, time.Duration(cfg.Cache.PersistentTTLHours)*time.Hour)
		if err := scheduler.AddJob(cleanup, cfg.Cache.PersistentPrune); err != nil {
			return fmt.Errorf("schedule embedding cache cleanup: %w", err)
		}
	}

	deps := handler.RouterDeps{
		Ingest:       handler.NewIngestHandler(a.ingest, a.tracker, cfg.Ingest.MaxUploadSize, cfg.Ingest.AllowedExtensions),
		Search:       handler.NewSearchHandler(a.query, a.retrieval),
		System:       handler.NewSystemHandler(a.system),
		JWTSecret:    []byte(cfg.Auth.JWTSecret),
		UploadWindow: time.Duration(cfg.Auth.UploadRateLimit) * time.Second,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.AccessLog(),
			middleware.CORS(cfg.Auth.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/query/stream"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler.Start(ctx)

	server := &http.Server{Addr: addr, Handler: engine}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	logger.Info("server stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("close vector store failed", zap.Error(err))
	}
	return serveErr
}
