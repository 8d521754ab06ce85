package main

import (
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/config"
	"github.com/pleiade/zoneshare/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [source...]",
	Short: "Download the remote archives of configured sources",
	Long:  "Downloads every source with a url (HTTP, HTTPS or FTP) into the data directory and unpacks zip archives. Restrict to some sources by naming them (\"parcels\" or a layer name).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := fetcher.New(fetcher.Options{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})

		targets := remoteSources(cfg, args)
		if len(targets) == 0 {
			zap.L().Info("no remote sources to fetch")
			return nil
		}

		for name, src := range targets {
			dest := filepath.Join(cfg.Fetch.DataDir, name)
			if src.Path != "" {
				dest = filepath.Dir(src.Path)
			}
			path, err := client.Fetch(ctx, src.URL, dest)
			if err != nil {
				return eris.Wrapf(err, "fetch %s", name)
			}
			log := zap.L().With(zap.String("source", name), zap.String("path", path))
			if src.Path != "" && filepath.Clean(src.Path) != filepath.Clean(path) {
				log.Warn("downloaded dataset differs from configured path", zap.String("configured", src.Path))
				continue
			}
			log.Info("source fetched")
		}
		return nil
	},
}

// remoteSources returns the sources with a url, optionally limited to names.
func remoteSources(c *config.Config, names []string) map[string]config.SourceConfig {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	all := map[string]config.SourceConfig{"parcels": c.Parcels.Source}
	for _, l := range c.Layers {
		all[l.Name] = l.Source
	}

	out := make(map[string]config.SourceConfig)
	for name, src := range all {
		if src.URL == "" || (len(want) > 0 && !want[name]) {
			continue
		}
		out[name] = src
	}
	return out
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
