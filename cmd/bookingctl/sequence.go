package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zatekoja/clinicbooking/internal/adapters/database"
)

func newSequenceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect and draw from numbering sequences",
	}

	var code string
	next := &cobra.Command{
		Use:   "next",
		Short: "Draw the next value of a sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pgClient, err := connect()
			if err != nil {
				return err
			}
			defer pgClient.Close()

			if code == "" {
				code = cfg.Booking.SequenceCode
			}
			value, err := database.NewSequenceAdapter(pgClient).Next(cmd.Context(), code)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
	next.Flags().StringVar(&code, "code", "", "sequence code (defaults to SEQUENCE_CODE)")
	cmd.AddCommand(next)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sequences and their next numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pgClient, err := connect()
			if err != nil {
				return err
			}
			defer pgClient.Close()

			sequences, err := database.NewSequenceAdapter(pgClient).List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tPREFIX\tPADDING\tNEXT\tINCREMENT")
			for _, s := range sequences {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", s.Code, s.Prefix, s.Padding, s.NumberNext, s.NumberIncrement)
			}
			return w.Flush()
		},
	})

	return cmd
}
