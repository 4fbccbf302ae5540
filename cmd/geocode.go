package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/contractor-insights/internal/geo"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve coordinates for records missing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return geo.NewSweeper(st, newGeocoder()).Sweep(ctx)
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
