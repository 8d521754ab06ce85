package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/analysis"
	"github.com/pleiade/zoneshare/internal/export"
)

var (
	analyzeJSON bool
	analyzeXLSX string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <parcel-id>",
	Short: "Report the zone shares of one parcel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, qerr := env.Analyzer.Analyze(ctx, args[0])
		out := cmd.OutOrStdout()

		if analyzeJSON {
			if err := writeAnalysisJSON(out, res, qerr); err != nil {
				return err
			}
		} else {
			printAnalysis(out, res, qerr)
		}

		if analyzeXLSX != "" {
			if xres := resultOrPartial(res, qerr); xres != nil {
				if err := export.Save(analyzeXLSX, xres); err != nil {
					return eris.Wrap(err, "analyze: export")
				}
				zap.L().Info("wrote spreadsheet", zap.String("path", analyzeXLSX))
			}
		}
		return qerr
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the result as JSON")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "also write the result to this .xlsx file")
	rootCmd.AddCommand(analyzeCmd)
}

func resultOrPartial(res *analysis.Result, err error) *analysis.Result {
	if res != nil {
		return res
	}
	if qe, ok := analysis.AsQueryError(err); ok {
		return qe.Partial
	}
	return nil
}

func writeAnalysisJSON(w io.Writer, res *analysis.Result, err error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err == nil {
		return eris.Wrap(enc.Encode(res), "analyze: encode json")
	}

	qe, ok := analysis.AsQueryError(err)
	if !ok {
		qe = &analysis.QueryError{Message: err.Error()}
	}
	body := struct {
		Error  *analysis.QueryError `json:"error"`
		Result *analysis.Result     `json:"result,omitempty"`
	}{qe, qe.Partial}
	return eris.Wrap(enc.Encode(body), "analyze: encode json")
}

// printAnalysis renders a result, or the error report and any partial result,
// as plain text.
func printAnalysis(w io.Writer, res *analysis.Result, err error) {
	if err != nil {
		if qe, ok := analysis.AsQueryError(err); ok {
			fmt.Fprintf(w, "error: %s\n", qe.Message)
			res = qe.Partial
		} else {
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}
	if res == nil {
		return
	}

	fmt.Fprintf(w, "Parcel:    %s\n", res.ParcelID)
	if res.ParcelName != "" {
		fmt.Fprintf(w, "Name:      %s\n", res.ParcelName)
	}
	fmt.Fprintf(w, "Area (ha): %.4f\n", res.ParcelAreaHa)

	for _, l := range res.Layers {
		fmt.Fprintf(w, "\n[%s]\n", l.Name)
		switch {
		case l.Error != nil:
			fmt.Fprintf(w, "  %s: %s\n", l.Error.Kind, l.Error.Message)
			continue
		case l.Empty:
			fmt.Fprintf(w, "  %s\n", l.Message)
			continue
		}
		for _, s := range l.Shares {
			fmt.Fprintf(w, "  %-12s %8s %%  %10.4f ha\n", s.Class, s.PercentText, s.AreaHa)
		}
		fmt.Fprintf(w, "  zones: %s\n", strings.Join(l.Classes, ", "))
		for _, class := range l.Classes {
			d, ok := l.Descriptions[class]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s (%s): %s\n", class, d.Category, d.Description)
		}
	}
}
