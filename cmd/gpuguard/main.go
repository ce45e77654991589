// Package main is the CLI entry point for gpuguard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/gpuguard/internal/config"
	"github.com/eliteGoblin/gpuguard/internal/daemon"
	"github.com/eliteGoblin/gpuguard/internal/domain"
	"github.com/eliteGoblin/gpuguard/internal/infra"
	"github.com/eliteGoblin/gpuguard/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const defaultLogFile = "/var/tmp/gpuguard.log"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gpuguard",
	Short: "GPU temperature watchdog - shuts down mining software when the GPU runs hot",
	Long: `gpuguard samples the GPU die temperature via nvidia-smi on a fixed
cadence. When the hottest device crosses the configured threshold it
requests a graceful shutdown of every matching workload process and
force kills whatever survives the grace period.

On first run (no config file) it writes documented defaults and exits;
review the file and re-run to start monitoring.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runGuard,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath    string
	tempThreshold float64
	checkInterval int
	createConfig  bool
	dryRun        bool
	testMode      bool
	logFile       string
	jsonOutput    bool
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file path")
	rootCmd.Flags().BoolVar(&createConfig, "create-config", false, "Create default configuration file and exit")
	rootCmd.Flags().Float64VarP(&tempThreshold, "temp-threshold", "t", 0, "Override temperature threshold in Celsius")
	rootCmd.Flags().IntVarP(&checkInterval, "check-interval", "i", 0, "Override check interval in seconds")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check current temperature and targets once without monitoring")
	rootCmd.Flags().BoolVar(&testMode, "test-mode", false, "Run the loop but log instead of signaling processes")
	rootCmd.Flags().StringVar(&logFile, "log-file", defaultLogFile, "Append-only log file path")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
}

func runGuard(cmd *cobra.Command, args []string) error {
	if createConfig {
		if err := config.WriteDefault(configPath); err != nil {
			return err
		}
		fmt.Printf("Default configuration saved to %s\n", configPath)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Never silently monitor with unacknowledged defaults.
			if werr := config.WriteDefault(configPath); werr != nil {
				return werr
			}
			fmt.Printf("No configuration found; defaults written to %s\n", configPath)
			fmt.Println("Review the file and re-run to start monitoring.")
			return nil
		}
		return fmt.Errorf("%w (run with --create-config to write defaults)", err)
	}

	// Command line overrides
	if cmd.Flags().Changed("temp-threshold") {
		cfg.TempThreshold = tempThreshold
	}
	if cmd.Flags().Changed("check-interval") {
		cfg.CheckInterval = checkInterval
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w (run with --create-config to write defaults)", err)
	}

	logger, err := createLogger(cfg.LogLevel, logFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sampler := infra.NewNvidiaSmiSampler(logger)
	directory := infra.NewProcessDirectory()
	escalator := usecase.NewEscalator(usecase.EscalatorConfig{
		Threshold:     cfg.TempThreshold,
		NameFragments: cfg.ProcessNames,
		GracePeriod:   cfg.GracePeriodDuration(),
		Rehearse:      testMode,
	}, directory, logger)

	if dryRun {
		return runStatusReport(cfg, sampler, escalator)
	}

	if testMode {
		fmt.Println("=== TEST MODE - no processes will actually be signaled ===")
	}

	// Cancellable at any suspension point, including mid-grace-wait.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	watchdog := daemon.NewWatchdog(daemon.WatchdogConfig{
		CheckInterval: cfg.CheckIntervalDuration(),
	}, sampler, escalator, logger)

	if err := watchdog.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runStatusReport performs one sample-and-report cycle without entering
// the loop and without signaling anything.
func runStatusReport(cfg config.Config, sampler domain.Sampler, escalator domain.Escalator) error {
	fmt.Println("=== DRY RUN MODE ===")

	ctx := context.Background()
	reading := sampler.Sample(ctx)
	if !reading.Available {
		fmt.Println("Could not read GPU temperature")
		return nil
	}

	fmt.Printf("Current GPU temperature: %.1f C\n", reading.Celsius)
	fmt.Printf("Threshold: %.1f C\n", cfg.TempThreshold)

	if reading.Celsius < cfg.TempThreshold {
		fmt.Println("Temperature is within safe range")
		return nil
	}

	fmt.Println("Temperature EXCEEDS threshold!")
	targets, err := escalator.FindTargets(ctx)
	if err != nil {
		return fmt.Errorf("process enumeration failed: %w", err)
	}
	if len(targets) == 0 {
		fmt.Println("No matching target processes found")
		return nil
	}
	fmt.Printf("Found %d target process(es):\n", len(targets))
	for _, t := range targets {
		fmt.Printf("  - PID %d: %s\n", t.PID, t.Name)
	}
	return nil
}

func createLogger(level, logFile string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stdout", logFile}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("gpuguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
