package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shikha-SShikha/peerlens/internal/config"
	"github.com/Shikha-SShikha/peerlens/internal/oracle"
	"github.com/Shikha-SShikha/peerlens/pkg/briefboard"
	"github.com/redis/go-redis/v9"
)

var (
	version string
	commit  string
	date    string
)

// ErrManualReview signals that at least one manuscript ended in
// needs_manual_review. main maps it to exit code 2: output was produced,
// but a human has to look at it.
var ErrManualReview = errors.New("at least one manuscript needs manual review")

// Global flags, applied as overrides on top of the loaded configuration.
var (
	configPath    string
	flagOracle    string
	flagThreshold float64
	flagRetries   int
	flagTimeout   string
	flagRedisAddr string
	flagInstance  string
	flagWorkers   int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "peerlens",
	Short: "PeerLens - peer review synthesis pipeline",
	Long: `PeerLens distills a manuscript's peer reviews into a single editorial
brief: deduplicated issues ranked by severity and support, reviewer
disagreements, an evidence-backed action checklist, and a consensus
snapshot. Every reported issue stays traceable to verbatim reviewer text.

The pipeline runs in four stages (extract, resolve, synthesize, validate),
each available as a standalone subcommand for inspection and replay, or
end to end with 'peerlens run-all'.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// ExitCode maps a command error to the process exit code contract:
// 0 success, 2 output delivered but flagged for manual review, 1 failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrManualReview) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to peerlens.yml (defaults apply if omitted)")
	rootCmd.PersistentFlags().StringVar(&flagOracle, "oracle", "", "Oracle kind override: lexical or remote")
	rootCmd.PersistentFlags().Float64Var(&flagThreshold, "threshold", 0, "Similarity merge threshold override (0..1)")
	rootCmd.PersistentFlags().IntVar(&flagRetries, "max-retries", 0, "Per-stage retry budget override")
	rootCmd.PersistentFlags().StringVar(&flagTimeout, "timeout", "", "Per-call oracle timeout override (e.g. 30s)")
	rootCmd.PersistentFlags().StringVar(&flagRedisAddr, "redis-addr", "", "Redis address for the brief board (e.g. localhost:6379)")
	rootCmd.PersistentFlags().StringVar(&flagInstance, "instance", "", "Brief board instance name")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "Manuscript worker count override")
}

// loadConfig loads the configuration file (or defaults) and applies any
// command-line overrides, re-validating the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("oracle") {
		cfg.Oracle.Kind = flagOracle
	}
	if flags.Changed("threshold") {
		cfg.Resolver.SimilarityMergeThreshold = &flagThreshold
	}
	if flags.Changed("max-retries") {
		cfg.Orchestrator.MaxRetries = &flagRetries
	}
	if flags.Changed("timeout") {
		d, err := time.ParseDuration(flagTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.Orchestrator.PerCallTimeout = config.Duration(d)
	}
	if flags.Changed("workers") {
		cfg.Orchestrator.ManuscriptWorkers = flagWorkers
	}
	if flags.Changed("redis-addr") {
		if cfg.Redis == nil {
			cfg.Redis = &config.RedisConfig{}
		}
		cfg.Redis.Addr = flagRedisAddr
	}
	if flags.Changed("instance") {
		if cfg.Redis == nil {
			cfg.Redis = &config.RedisConfig{}
		}
		cfg.Redis.Instance = flagInstance
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildOracle constructs the configured analysis oracle.
func buildOracle(cfg *config.Config) (oracle.Oracle, error) {
	return oracle.New(cfg.Oracle.Kind, oracle.Options{
		Endpoint: cfg.Oracle.Endpoint,
		Model:    cfg.Oracle.Model,
		APIKey:   cfg.Oracle.APIKey,
		Timeout:  cfg.PerCallTimeout(),
		Taxonomy: cfg.Taxonomy,
	})
}

// buildBoard constructs the brief board client when Redis is configured.
// Returns nil when persistence is disabled.
func buildBoard(cfg *config.Config) (*briefboard.Client, error) {
	if cfg.Redis == nil {
		return nil, nil
	}
	return briefboard.NewClient(&redis.Options{Addr: cfg.Redis.Addr}, cfg.Redis.Instance)
}

// writeJSON marshals v with indentation to the given path, or to stdout
// when path is empty or "-".
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// readJSON unmarshals the JSON file at path into v.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
