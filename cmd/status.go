package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, err := st.Status(ctx)
		if err != nil {
			return eris.Wrap(err, "status query")
		}

		if statusJSON {
			out, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return eris.Wrap(err, "encode status")
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("Total records:        %d\n", status.Total)
		fmt.Printf("Pending insight:      %d\n", status.PendingInsight)
		fmt.Printf("Pending evaluation:   %d\n", status.PendingEvaluation)
		fmt.Printf("Low-score insights:   %d\n", status.LowScore)
		fmt.Printf("Pending narratives:   %d\n", status.PendingNarratives)
		fmt.Printf("Pending geocode:      %d\n", status.PendingGeocode)
		fmt.Printf("Geocoded:             %d\n", status.Geocoded)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
