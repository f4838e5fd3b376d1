package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hive-corporation/iocagg/internal/adapter/exporter"
	"github.com/hive-corporation/iocagg/internal/adapter/provider"
	"github.com/hive-corporation/iocagg/internal/adapter/repository"
	"github.com/hive-corporation/iocagg/internal/config"
	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/ports"
	"github.com/hive-corporation/iocagg/internal/core/service"
	"github.com/hive-corporation/iocagg/internal/logging"
)

// ProviderFactory builds the feeds for a run from the loaded config.
type ProviderFactory func(cfg *config.Config) []ports.ThreatProvider

// RepositoryOpener connects to the optional result store. The returned func
// releases the connection.
type RepositoryOpener func(ctx context.Context, databaseURL string) (ports.IOCRepository, func(), error)

func DefaultProviders(cfg *config.Config) []ports.ThreatProvider {
	return provider.Default(http.DefaultClient, provider.Credentials{
		AbuseIPDBKey: cfg.AbuseIPDBKey,
		OTXKey:       cfg.OTXKey,
	}, cfg.URLHausOnlineOnly)
}

func OpenPostgres(ctx context.Context, databaseURL string) (ports.IOCRepository, func(), error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to database: %w", err)
	}
	repo := repository.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}

func Execute() error {
	return NewRootCommand(DefaultProviders, OpenPostgres).Execute()
}

// NewRootCommand wires the aggregation command. It always exits 0: problems
// are reported on stdout and the run carries on with what it has.
func NewRootCommand(providers ProviderFactory, openRepo RepositoryOpener) *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "iocagg",
		Short: "Threat intel IOC aggregator",
		Long: `iocagg pulls indicators of compromise from AbuseIPDB, AlienVault OTX,
URLHaus and Feodo Tracker, normalizes them into one shape, removes
duplicates across feeds, applies filters and prints or exports the result.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run(cmd.Context(), cmd.OutOrStdout(), v, cfgFile, providers, openRepo)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "optional YAML config file")
	flags.String("sources", "abuseipdb,otx", "comma-separated list of sources to pull (abuseipdb, otx, urlhaus, feodo)")
	flags.String("country", "", "filter by country code (applies to sources that include country)")
	flags.Int("min-score", 90, "minimum abuse score (25-100, AbuseIPDB only)")
	flags.String("type", "", "filter by IOC type (ip, domain, url, hash)")
	flags.Int("limit", 10, "maximum number of results to display (after filtering/dedup)")
	flags.String("save-to", "", "export results: "+strings.Join(exporter.Formats, ", "))
	flags.String("output-dir", ".", "directory for exported files")
	flags.String("database-url", "", "also store the results in Postgres")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console, json")

	for key, flag := range map[string]string{
		"sources":        "sources",
		"country":        "country",
		"min_score":      "min-score",
		"type":           "type",
		"limit":          "limit",
		"save_to":        "save-to",
		"output_dir":     "output-dir",
		"database_url":   "database-url",
		"logging.level":  "log-level",
		"logging.format": "log-format",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func run(ctx context.Context, out io.Writer, v *viper.Viper, cfgFile string, providers ProviderFactory, openRepo RepositoryOpener) {
	_ = config.LoadDotEnv()

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	agg := service.NewAggregator(providers(cfg), domain.DefaultTypeTable(), cfg.FetchCap, logger)

	result := agg.Run(ctx, service.Query{
		Sources:  service.ParseSources(cfg.Sources),
		MinScore: cfg.MinScore,
		Country:  cfg.Country,
		Type:     domain.IOCType(cfg.Type),
		Limit:    cfg.Limit,
	})

	for _, failed := range result.Failed() {
		fmt.Fprintf(out, "⚠️  %s\n", failed)
	}

	for _, ioc := range result.IOCs {
		fmt.Fprintln(out, FormatLine(ioc))
	}

	if cfg.SaveTo != "" {
		save(out, cfg, result.IOCs)
	}

	if cfg.DatabaseURL != "" {
		persist(ctx, out, openRepo, cfg.DatabaseURL, result)
	}
}

func save(out io.Writer, cfg *config.Config, iocs []domain.IOC) {
	exp, err := exporter.ForFormat(cfg.SaveTo)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}
	path, err := exporter.SaveToFile(cfg.OutputDir, exp, iocs)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(out, "Results saved to %s\n", path)
}

func persist(ctx context.Context, out io.Writer, openRepo RepositoryOpener, databaseURL string, result service.Result) {
	repo, closeRepo, err := openRepo(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}
	defer closeRepo()

	if err := repo.SaveBatch(ctx, result.RunID, result.IOCs); err != nil {
		fmt.Fprintf(out, "❌ Error saving results: %v\n", err)
		return
	}
	fmt.Fprintf(out, "📦 %d results stored (run %s)\n", len(result.IOCs), result.RunID)
}

// FormatLine renders one result for the terminal, absent fields as None.
func FormatLine(ioc domain.IOC) string {
	iocType, score, country := "None", "None", "None"
	if ioc.HasType() {
		iocType = string(ioc.Type)
	}
	if ioc.Score != nil {
		score = strconv.Itoa(*ioc.Score)
	}
	if ioc.Country != nil {
		country = *ioc.Country
	}
	return fmt.Sprintf("%s | Type: %s | Score: %s | Country: %s | Source: %s",
		ioc.Value, iocType, score, country, ioc.Source)
}
