package main

import (
	"fmt"

	"github.com/ib-77/l1tnp/internal/eventio"
	"github.com/ib-77/l1tnp/internal/metrics"
	"github.com/ib-77/l1tnp/internal/runner"
	"github.com/ib-77/l1tnp/internal/stats"
	"github.com/ib-77/l1tnp/pkg/rop/core"
	"github.com/ib-77/l1tnp/pkg/tnp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Run the tag and probe reduction over the input file",
	Args:  cobra.NoArgs,
	RunE:  runReduce,
}

func runReduce(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Dataset.Input == "" {
		return fmt.Errorf("no input file (set dataset.input, L1TNP_INPUT or --input)")
	}
	ctx := core.WithWorkerOptions(cmd.Context(), cfg.Runner.Workers)

	collector := metrics.New(cfg.Dataset.Name)
	reducer, err := tnp.NewReducer(cfg.Reduction,
		tnp.WithLogger(logger.Named("tnp")),
		tnp.WithObserver(collector))
	if err != nil {
		return err
	}

	reader, err := eventio.Open(cfg.Dataset.Input, eventio.ReaderOptions{
		ChunkSize: cfg.Dataset.ChunkSize,
		IsMC:      cfg.Dataset.IsMC,
		ProcessID: cfg.Dataset.ProcessID,
		Logger:    logger.Named("eventio"),
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	sink, err := eventio.CreateSink(cfg.Output.Sink, cfg.RecordsPath())
	if err != nil {
		return err
	}

	r := runner.New(reducer,
		runner.WithWorkers(cfg.Runner.Workers),
		runner.WithBufferSize(cfg.Runner.BufferSize),
		runner.WithLogger(logger.Named("runner")),
		runner.WithObserver(collector))

	summary, err := r.Run(ctx, reader, sink)
	if closeErr := sink.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close sink: %w", closeErr)
	}
	if err != nil {
		return err
	}

	if err := summary.Stats.Save(cfg.StatsPath()); err != nil {
		return err
	}
	collector.SetProcessWeights(summary.Stats.ProcessWeights())
	if cfg.Output.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return err
		}
	}

	logger.Info("reduction written",
		zap.String("records", cfg.RecordsPath()),
		zap.String("stats", cfg.StatsPath()))
	fmt.Fprintf(cmd.OutOrStdout(), "%d chunks, %d events, %d probes -> %s\n",
		summary.Chunks, summary.Stats.Counter(stats.KeyEvents), summary.Probes, cfg.RecordsPath())
	return nil
}
