package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vehicle-sense/gateway/internal/audit"
	"vehicle-sense/gateway/internal/config"
	"vehicle-sense/gateway/internal/domain"
	"vehicle-sense/gateway/internal/live"
	"vehicle-sense/gateway/internal/predict"
	"vehicle-sense/gateway/internal/routing"
	"vehicle-sense/gateway/internal/store"
	transport "vehicle-sense/gateway/internal/transport/http"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Telemetry inference gateway",
		Long: `Routes vehicle sensor telemetry to per-category prediction backends
(accident, maintenance, battery) and keeps an append-only audit log of
every inference request and its result.`,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(initDBCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}
	return config.Load()
}

func openAuditStore(ctx context.Context, cfg *config.Config) (store.AuditStore, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return store.NewPostgresStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want postgres or sqlite)", cfg.StoreBackend)
	}
}

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the inference gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if port != "" {
				cfg.HTTPPort = port
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openAuditStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("audit store: %w", err)
			}
			defer db.Close()

			var redisStore *store.RedisStore
			if cfg.RedisAddr != "" {
				redisStore, err = store.NewRedisStore(ctx, cfg)
				if err != nil {
					return fmt.Errorf("redis: %w", err)
				}
				defer redisStore.Close()
			}

			recorder := audit.NewRecorder(db, cfg.AuditQueueSize,
				time.Duration(cfg.AuditWriteTimeoutMS)*time.Millisecond)
			go recorder.Run(ctx)

			server := transport.NewServer(transport.Deps{
				Routes: routing.New(routing.Endpoints{
					Accident:    cfg.AccidentURL,
					Maintenance: cfg.MaintenanceURL,
					Battery:     cfg.BatteryURL,
				}),
				Predictor: predict.NewClient(time.Duration(cfg.PredictTimeoutMS) * time.Millisecond),
				DB:        db,
				Recorder:  recorder,
				Redis:     redisStore,
				Hub:       live.NewHub(),
				AuditSkip: cfg.AuditSkipCategories,
			})

			httpServer := &http.Server{
				Addr:    ":" + cfg.HTTPPort,
				Handler: server.Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("gateway listening on :%s (store=%s)", cfg.HTTPPort, cfg.StoreBackend)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Println("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("http shutdown: %v", err)
			}

			// Let already-enqueued audit writes finish before closing the store.
			recorder.Wait()
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides HTTP_PORT)")
	return cmd
}

func auditCmd() *cobra.Command {
	var (
		category     string
		since, until string
		limit        int
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the prediction audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			ctx := context.Background()
			db, err := openAuditStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("audit store: %w", err)
			}
			defer db.Close()

			q := store.AuditQuery{
				Category: domain.Category(category),
				Limit:    limit,
			}
			if since != "" {
				if q.Since, err = time.Parse(time.RFC3339, since); err != nil {
					return fmt.Errorf("invalid --since (use RFC3339): %w", err)
				}
			}
			if until != "" {
				if q.Until, err = time.Parse(time.RFC3339, until); err != nil {
					return fmt.Errorf("invalid --until (use RFC3339): %w", err)
				}
			}

			records, err := db.Query(ctx, q)
			if err != nil {
				return fmt.Errorf("query error: %w", err)
			}

			switch outputFormat {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.Encode(records)
			default:
				fmt.Printf("Found %d records\n\n", len(records))
				for _, r := range records {
					fmt.Printf("[%s] %-12s decision=%v id=%s\n",
						r.CreatedAt.Format("2006-01-02 15:04:05"),
						r.Category, r.Decision, r.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category (accident, maintenance, battery)")
	cmd.Flags().StringVarP(&since, "since", "s", "", "Start time (RFC3339)")
	cmd.Flags().StringVarP(&until, "until", "u", "", "End time (RFC3339)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum records to return")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the audit schema for the configured store backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx := context.Background()

			db, err := openAuditStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("audit store: %w", err)
			}
			defer db.Close()

			// SQLite creates its schema on open; Postgres needs an explicit step.
			if pg, ok := db.(*store.PostgresStore); ok {
				if err := pg.InitSchema(ctx); err != nil {
					return err
				}
			}

			fmt.Printf("✓ audit schema ready (%s)\n", cfg.StoreBackend)
			return nil
		},
	}
}
