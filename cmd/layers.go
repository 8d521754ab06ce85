package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/source"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Inspect the configured parcel and reference layer sources",
	Long:  "Loads every configured source and prints its format, CRS, feature count and fields, and whether the configured lookup or classification field is present.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		out := cmd.OutOrStdout()
		type check struct {
			spec  source.Spec
			field string
		}
		checks := []check{{source.SpecFromConfig("parcels", cfg.Parcels.Source), cfg.Parcels.IDField}}
		for _, l := range cfg.Layers {
			checks = append(checks, check{source.SpecFromConfig(l.Name, l.Source), l.ClassField})
		}

		failed := 0
		for _, c := range checks {
			col, err := env.Loader.Load(ctx, c.spec)
			if err != nil {
				failed++
				fmt.Fprintf(out, "%-10s unavailable: %v\n", c.spec.Name, err)
				continue
			}
			status := "ok"
			if err := col.RequireFields(c.field); err != nil {
				failed++
				status = fmt.Sprintf("missing field %q", c.field)
			}
			fmt.Fprintf(out, "%-10s %-9s %-10s %6d features  %s\n",
				col.Name, col.Format, col.CRS, len(col.Features), status)
			fmt.Fprintf(out, "%-10s fields: %s\n", "", strings.Join(col.Fields, ", "))
		}

		zap.L().Info("layers checked", zap.Int("sources", len(checks)), zap.Int("failed", failed))
		if failed > 0 {
			return fmt.Errorf("%d source(s) failed the check", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(layersCmd)
}
