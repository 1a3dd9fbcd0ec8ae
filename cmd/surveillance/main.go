package main

import (
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-health-surveillance/internal/analytics"
	"github.com/mr1hm/go-health-surveillance/internal/config"
	"github.com/mr1hm/go-health-surveillance/internal/logging"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
	"github.com/mr1hm/go-health-surveillance/internal/transport"
	"github.com/mr1hm/go-health-surveillance/internal/validator"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "surveillance",
		Short:         "Offline-first public health surveillance service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(parseSMSCmd())
	rootCmd.AddCommand(assessCmd())

	if err := rootCmd.Execute(); err != nil {
		logging.Fatalf("%v", err)
	}
}

// setup loads config, installs the logger and opens the local store.
func setup() (*config.Config, *repository.SQLiteDB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	logging.Setup(cfg.Logging.Level)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening database: %w", err)
	}
	return cfg, db, nil
}

// newTransport builds the configured delivery transport. The returned
// closer releases its connections.
func newTransport(cfg *config.Config) (transport.Transport, io.Closer) {
	switch cfg.Sync.Transport {
	case "http":
		return transport.NewHTTP(cfg.Sync.EndpointURL, cfg.Sync.DeliveryTimeout), nopCloser{}
	case "kafka":
		k := transport.NewKafka(cfg.Sync.KafkaBrokers, cfg.Sync.KafkaTopic, cfg.Sync.DeliveryTimeout)
		return k, k
	default:
		return transport.Offline{}, nopCloser{}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newValidator(cfg *config.Config) (*validator.Validator, error) {
	defs, err := validator.LoadDiseaseDefinitions(cfg.Analytics.DiseaseDefinitionsPath)
	if err != nil {
		return nil, err
	}
	return validator.New(defs), nil
}

func newEngine(cfg *config.Config) (*analytics.Engine, error) {
	baselines, err := analytics.LoadBaselines(cfg.Analytics.BaselinesPath)
	if err != nil {
		return nil, err
	}
	return analytics.NewEngine(baselines), nil
}

func analyticsSince(cfg *config.Config) time.Time {
	return time.Now().Add(-cfg.RetentionWindow())
}
