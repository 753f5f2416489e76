package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SnehaChouksey/Acadlyst/ai/gemini"
	"github.com/SnehaChouksey/Acadlyst/config"
	"github.com/SnehaChouksey/Acadlyst/credit"
	"github.com/SnehaChouksey/Acadlyst/db"
	"github.com/SnehaChouksey/Acadlyst/errors"
	"github.com/SnehaChouksey/Acadlyst/ingest"
	"github.com/SnehaChouksey/Acadlyst/internal/httpclient"
	"github.com/SnehaChouksey/Acadlyst/logger"
	"github.com/SnehaChouksey/Acadlyst/observe"
	"github.com/SnehaChouksey/Acadlyst/pipeline"
	"github.com/SnehaChouksey/Acadlyst/queue"
	"github.com/SnehaChouksey/Acadlyst/server"
	"github.com/SnehaChouksey/Acadlyst/vector"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and job workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	log := logger.Logger

	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFromFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	conn, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.Migrate(conn, log); err != nil {
		return err
	}

	llm := gemini.NewClient(gemini.Config{
		APIKey:            cfg.AI.APIKey,
		BaseURL:           cfg.AI.BaseURL,
		Model:             cfg.AI.Model,
		EmbeddingModel:    cfg.AI.EmbeddingModel,
		Temperature:       &cfg.AI.Temperature,
		MaxCallsPerMinute: cfg.AI.MaxCallsPerMinute,
		Timeout:           time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		Logger:            log,
	})

	fetchClient := httpclient.New(60 * time.Second)
	resolver := ingest.NewResolver(fetchClient, ingest.NewPDFTextExtractor(), cfg.Server.UploadsDir, log)
	transcripts := ingest.NewTimedTextFetcher(fetchClient, log)

	vectors := vector.NewStore(conn, log)
	ledger := credit.NewLedger(conn, cfg.Credits, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := queue.NewWorkerPool(ctx, conn, queue.WorkerPoolConfig{
		Workers:      cfg.Jobs.Workers,
		PollInterval: time.Duration(cfg.Jobs.PollIntervalSeconds) * time.Second,
	}, log, observe.JobMetrics{})

	pool.Registry().Register(pipeline.NewSummarizeHandler(resolver, llm, log))
	pool.Registry().Register(pipeline.NewQuizHandler(resolver, llm, cfg.AI.QuizModel, cfg.AI.QuizTemperature, log))
	pool.Registry().Register(pipeline.NewRAGIndexHandler(resolver, llm, vectors, log))

	pool.Start()

	if cfg.Jobs.CleanupAfterHours > 0 {
		go runJobCleanup(ctx, pool.GetQueue().Store(), time.Duration(cfg.Jobs.CleanupAfterHours)*time.Hour)
	}

	srv := server.New(cfg, server.Deps{
		Queue:       pool.GetQueue(),
		Ledger:      ledger,
		Transcripts: transcripts,
		LLM:         llm,
		Embedder:    llm,
		Vectors:     vectors,
	}, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		pool.Stop()
		return err
	case <-ctx.Done():
	}

	log.Infow("Shutting down")

	// Stop taking requests first, then drain the workers
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP shutdown incomplete", "error", err)
	}
	pool.Stop()

	return nil
}

// runJobCleanup periodically purges terminal jobs older than the retention
// window.
func runJobCleanup(ctx context.Context, store *queue.Store, retention time.Duration) {
	log := logger.Logger

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOldJobs(retention)
			if err != nil {
				log.Warnw("Job cleanup failed", "error", err)
			} else if removed > 0 {
				log.Infow("Purged old jobs", "removed", removed)
			}
		}
	}
}
