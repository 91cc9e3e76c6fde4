package main

import (
	"fmt"

	"github.com/ib-77/l1tnp/internal/effplot"
	"github.com/ib-77/l1tnp/internal/eventio"
	"github.com/ib-77/l1tnp/internal/histo"
	"github.com/ib-77/l1tnp/pkg/event"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recordsPath string

var histCmd = &cobra.Command{
	Use:   "hist",
	Short: "Fill probe histograms and compute trigger efficiencies",
	Args:  cobra.NoArgs,
	RunE:  runHist,
}

func runHist(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	reg, err := cfg.TriggerRegistry()
	if err != nil {
		return err
	}

	filler, err := histo.NewFiller(cfg.Histograms.Variables, reg.Categories(cfg.Reduction.MaxDR))
	if err != nil {
		return err
	}

	path := recordsPath
	if path == "" {
		path = cfg.RecordsPath()
	}
	err = eventio.ReadRecords(cmd.Context(), path, func(rec *event.ProbeRecord) error {
		filler.Fill(rec)
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("records histogrammed", zap.String("records", path), zap.Int("probes", filler.Filled()))

	if err := filler.SaveYODA(cfg.HistogramPath()); err != nil {
		return err
	}
	tables, err := filler.Efficiencies(reg)
	if err != nil {
		return err
	}
	if err := histo.SaveTables(cfg.EfficiencyPath(), tables); err != nil {
		return err
	}

	if cfg.Histograms.PlotFormat != "" {
		plots, err := effplot.RenderAll(cfg.PlotDir(), cfg.Histograms.PlotFormat, tables)
		if err != nil {
			return err
		}
		logger.Info("efficiency plots written", zap.Strings("plots", plots))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d probes, %d efficiency tables -> %s\n",
		filler.Filled(), len(tables), cfg.EfficiencyPath())
	return nil
}
