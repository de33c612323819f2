package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aryannaik/holocron/internal/search"
)

func searchCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search every resource type and print a preview per type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sess, _, err := openSession(flags, nil, false)
			if err != nil {
				return err
			}
			defer sess.Close()
			if limit <= 0 {
				limit = cfg.Search.PreviewLimit
			}

			snap, err := sess.Search().Search(context.Background(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printSearch(cmd.OutOrStdout(), snap, limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Matches shown per type (default from config)")
	return cmd
}

func printSearch(w io.Writer, snap search.Snapshot, limit int) {
	groups := search.Preview(snap.Results, limit)
	if len(groups) == 0 {
		fmt.Fprintf(w, "No results for %q.\n", snap.Term)
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s\n", g.Resource)
		for _, e := range g.Items {
			fmt.Fprintf(w, "  %-4s %s\n", e.Common().ID(), emphasize(search.Highlight(e.Label(), snap.Term)))
		}
		if g.More > 0 {
			fmt.Fprintf(w, "  ... %d more\n", g.More)
		}
	}
	for rt, msg := range snap.Errors {
		fmt.Fprintf(w, "WARNING: %s: %s\n", rt, msg)
	}
}

func emphasize(segments []search.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Match {
			b.WriteString("[" + s.Text + "]")
		} else {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}
