package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ib-77/l1tnp/internal/config"
	"github.com/ib-77/l1tnp/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	verbose    bool
	inputPath  string
	outputDir  string
	workers    int
	isMC       bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "l1tnp",
	Short: "Level-1 muon trigger efficiencies with tag and probe",
	Long: `l1tnp selects Z->mumu tag and probe pairs from NanoAOD-like event
files, matches probes to Level-1 muon candidates, and measures the efficiency
of the Level-1 single and double muon seeds.

  l1tnp reduce   write one record per probe and the cutflow
  l1tnp hist     fill probe histograms and efficiencies from the records
  l1tnp config   print the effective configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd)

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Dataset.Input = inputPath
	}
	if flags.Changed("output") {
		cfg.Output.Dir = outputDir
	}
	if flags.Changed("workers") {
		cfg.Runner.Workers = workers
	}
	if flags.Changed("mc") {
		cfg.Dataset.IsMC = isMC
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "l1tnp.yaml", "Configuration file (defaults are used if missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides output.dir)")

	reduceCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input JSON lines file (overrides dataset.input)")
	reduceCmd.Flags().IntVarP(&workers, "workers", "j", 0, "Number of workers (overrides runner.workers)")
	reduceCmd.Flags().BoolVar(&isMC, "mc", false, "Treat the input as simulation (overrides dataset.is_mc)")

	histCmd.Flags().StringVar(&recordsPath, "records", "", "Probe record file (default: the reduce output)")

	configCmd.Flags().StringVar(&writePath, "write", "", "Write the effective configuration to this file")

	rootCmd.AddCommand(reduceCmd)
	rootCmd.AddCommand(histCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
