package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List history sessions and latest-document templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			cat := engine.Service.Catalog()
			out := os.Stdout

			if !latest {
				color.New(color.FgYellow, color.Bold).Fprintln(out, "History")
				for _, s := range cat.History {
					color.New(color.FgCyan).Fprintf(out, "  %6d  ", s.Id)
					color.New(color.Reset).Fprintf(out, "%s  %s\n", s.CreatedAt.Format("2006-01-02 15:04"), s.Title)
				}
				if len(cat.History) == 0 {
					color.New(color.Faint).Fprintln(out, "  (none)")
				}
			}

			color.New(color.FgYellow, color.Bold).Fprintln(out, "Latest documents")
			for _, t := range cat.Latest {
				color.New(color.FgGreen).Fprintf(out, "  %6d  ", t.Id)
				color.New(color.Reset).Fprintf(out, "%s  %s\n", t.CreatedAt.Format("2006-01-02 15:04"), t.Title)
			}
			if len(cat.Latest) == 0 {
				color.New(color.Faint).Fprintln(out, "  (none)")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "Only show latest-document templates")
	return cmd
}
