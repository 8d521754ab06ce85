package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "zoneshare",
	Short: "Parcel zoning overlay reports",
	Long: `zoneshare finds a rural parcel by its registry code and measures how much
of it falls in each zone of the configured reference layers (economic-ecological
zoning, ecosystem services). Areas are reported in hectares and as a percentage
of the parcel.

Layers and the parcel source are read from config.yaml or ZONESHARE_* variables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("parcels", sourceLabel(cfg.Parcels.Source)),
			zap.Strings("layers", layerNames(cfg.Layers)),
			zap.Int("fallback_srid", cfg.Projection.FallbackSRID),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func layerNames(layers []config.LayerConfig) []string {
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.Name
	}
	return names
}

// sourceLabel names where a source is read from: its path, or its table.
func sourceLabel(s config.SourceConfig) string {
	if s.Path != "" {
		return s.Path
	}
	return s.Table
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
