package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/aryannaik/holocron/internal/swapi"
)

func showCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <type> <id>",
		Short: "Fetch one entity and print it as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := swapi.ParseResourceType(args[0])
			if err != nil {
				return err
			}
			_, sess, _, err := openSession(flags, nil, false)
			if err != nil {
				return err
			}
			defer sess.Close()

			e, err := sess.Detail(context.Background(), rt, args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(e)
		},
	}
}
