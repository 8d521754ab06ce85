package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/config"
	"github.com/pleiade/zoneshare/internal/crs"
	"github.com/pleiade/zoneshare/internal/importer"
	"github.com/pleiade/zoneshare/internal/source"
)

var (
	importTable   string
	importReplace bool
	importSRID    int
)

var importCmd = &cobra.Command{
	Use:   "import <source>",
	Short: "Copy a configured source into a PostGIS table",
	Long:  "Loads the named source (\"parcels\" or a layer name) and writes it to --table, creating the table and a GiST index when missing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Database.URL == "" {
			return eris.New("database url is required (ZONESHARE_DATABASE_URL)")
		}
		spec, err := sourceSpec(cfg, args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		col, err := env.Loader.Load(ctx, spec)
		if err != nil {
			return eris.Wrapf(err, "import %s", spec.Name)
		}

		normalizer, err := crs.NewNormalizer(
			crs.WithFallback(cfg.Projection.FallbackSRID),
			crs.WithDefinitions(cfg.Projection.Definitions),
			crs.WithCacheSize(cfg.Projection.CacheSize),
		)
		if err != nil {
			return eris.Wrap(err, "import: normalizer")
		}

		table := importTable
		if table == "" {
			table = spec.Name
		}
		n, err := importer.New(env.Pool, normalizer).Import(ctx, col, importer.Options{
			Table:   table,
			Replace: importReplace,
			SRID:    importSRID,
		})
		if err != nil {
			return eris.Wrapf(err, "import %s", spec.Name)
		}

		zap.L().Info("import complete",
			zap.String("source", spec.Name),
			zap.String("table", table),
			zap.Int64("rows", n),
		)
		return nil
	},
}

// sourceSpec resolves "parcels" or a layer name to its source spec.
func sourceSpec(c *config.Config, name string) (source.Spec, error) {
	if name == "parcels" {
		return source.SpecFromConfig(name, c.Parcels.Source), nil
	}
	if l, ok := c.Layer(name); ok {
		return source.SpecFromConfig(l.Name, l.Source), nil
	}
	return source.Spec{}, eris.Errorf("unknown source %q", name)
}

func init() {
	importCmd.Flags().StringVar(&importTable, "table", "", "target table, schema.table (default: source name in public)")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "drop the target table first")
	importCmd.Flags().IntVar(&importSRID, "srid", 0, "reproject to this EPSG code before writing")
	rootCmd.AddCommand(importCmd)
}
