package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newCmd() *cobra.Command {
	var template int64

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a session, fresh or from a latest-document template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newTranscriptPrinter(os.Stdout)
			engine, err := openEngine(cmd.Context(), printer)
			if err != nil {
				return err
			}
			defer engine.Close()

			if template > 0 {
				err = engine.Service.CreateFromTemplate(cmd.Context(), template)
			} else {
				err = engine.Service.CreateFresh(cmd.Context())
			}
			if err != nil {
				return err
			}

			if s := engine.Service.Snapshot().Session; s != nil {
				printer.note("session id: %d", s.Id)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&template, "template", 0, "Latest-document template id to seed from")
	return cmd
}
