package main

import (
	"encoding/csv"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/model"
	"github.com/sells-group/contractor-insights/internal/store"
)

var (
	exportCSVPath  string
	exportJSONPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full dataset to CSV and JSON files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		contractors, err := st.List(ctx, store.ContractorFilter{})
		if err != nil {
			return eris.Wrap(err, "export query")
		}

		if err := writeCSVFile(exportCSVPath, contractors); err != nil {
			return err
		}
		if err := writeJSONFile(exportJSONPath, contractors); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("records", len(contractors)),
			zap.String("csv", exportCSVPath),
			zap.String("json", exportJSONPath),
		)
		return nil
	},
}

func writeCSVFile(path string, contractors []model.Contractor) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(model.Columns); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for i := range contractors {
		if err := w.Write(contractors[i].CSVRecord()); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "flush csv")
	}
	return f.Close()
}

func writeJSONFile(path string, contractors []model.Contractor) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(contractors); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return f.Close()
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "contractors_export.csv", "CSV output path")
	exportCmd.Flags().StringVar(&exportJSONPath, "json", "contractors_export.json", "JSON output path")
	rootCmd.AddCommand(exportCmd)
}
