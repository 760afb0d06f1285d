// Command similarity-job recomputes the embedding similarity table used by
// the embedding matching mode.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitea.kood.tech/petrkubec/affinity/config"
	"gitea.kood.tech/petrkubec/affinity/embedding"
	"gitea.kood.tech/petrkubec/affinity/logger"
	"gitea.kood.tech/petrkubec/affinity/matching"
	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const app = "similarity-job"

var (
	// Used for flags.
	cfgFile string
	debug   bool
	jsonLog bool

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "similarity-job embeds every bio and stores the pairwise similarity table",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Recompute and replace the similarity table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (defaults and environment only when unset)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLog, "json", "j", false, "json format for logging")

	rootCmd.AddCommand(runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// similarityStore is the part of the store the job touches.
type similarityStore interface {
	FetchAllProfiles(ctx context.Context) ([]matching.Profile, error)
	ReplaceSimilarityTable(ctx context.Context, table matching.SimilarityTable) error
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Printf("loading config: %s", err)
		return err
	}

	logger, err := logger.New(jsonLog || cfg.Log.JSON, debug || cfg.Log.Debug)
	if err != nil {
		log.Printf("creating a logger: %s", err)
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(ctx, cfg.DatabaseURL, logger.Named("store"))
	if err != nil {
		logger.Error("opening the database", zap.Error(err))
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		logger.Error("applying the schema", zap.Error(err))
		return err
	}

	// The client lives only for this run.
	embedder, err := embedding.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BatchSize, logger.Named("gemini"))
	if err != nil {
		logger.Error("creating the embedding client", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or the 'gemini.api-key' key in the configuration file"))
		return err
	}

	if err := recompute(ctx, st, embedder, logger); err != nil {
		logger.Error("similarity job failed, previous table kept", zap.Error(err))
		return err
	}
	return nil
}

// recompute builds the whole table before writing anything, so a failed
// embedding leaves the stored table untouched.
func recompute(ctx context.Context, st similarityStore, embedder matching.Embedder, logger *zap.Logger) error {
	start := time.Now()

	profiles, err := st.FetchAllProfiles(ctx)
	if err != nil {
		return fmt.Errorf("fetching profiles: %w", err)
	}
	logger.Info("profiles loaded", zap.Int("profiles", len(profiles)))

	table, err := matching.BatchSimilarityTable(ctx, embedder, profiles)
	if err != nil {
		return fmt.Errorf("computing similarities: %w", err)
	}

	if err := st.ReplaceSimilarityTable(ctx, table); err != nil {
		return fmt.Errorf("storing similarities: %w", err)
	}

	logger.Info("similarity table replaced",
		zap.Int("pairs", len(table)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
