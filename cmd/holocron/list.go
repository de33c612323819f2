package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aryannaik/holocron/internal/collection"
	"github.com/aryannaik/holocron/internal/swapi"
)

// hidden from the default table; still sortable
var metaColumns = map[string]bool{"url": true, "created": true, "edited": true}

func listCmd(flags *globalFlags) *cobra.Command {
	var (
		page    int
		sortCol string
		desc    bool
		columns []string
	)
	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "Print one page of a resource collection",
		Args:  cobra.ExactArgs(1),
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

			v, err := sess.View(rt)
			if err != nil {
				return err
			}
			if sortCol != "" {
				dir := collection.Ascending
				if desc {
					dir = collection.Descending
				}
				if err := v.SetSort(sortCol, dir); err != nil {
					return err
				}
			}
			if err := v.GoToPage(context.Background(), page); err != nil {
				return err
			}
			if len(columns) == 0 {
				columns = defaultColumns(rt)
			}
			return printState(cmd.OutOrStdout(), v.State(), columns)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().StringVarP(&sortCol, "sort", "s", "", "Sort the page by this column")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().StringSliceVarP(&columns, "columns", "c", nil, "Columns to print")
	return cmd
}

func defaultColumns(rt swapi.ResourceType) []string {
	var cols []string
	for _, c := range swapi.Columns(rt) {
		if !metaColumns[c] {
			cols = append(cols, c)
		}
		if len(cols) == 5 {
			break
		}
	}
	return cols
}

func printState(w io.Writer, s collection.State, columns []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := append([]string{"ID"}, columns...)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(header, "\t")))
	for _, row := range s.Rows {
		cells := []string{row.Common().ID()}
		for _, c := range columns {
			v, _ := swapi.FieldValue(row, c)
			cells = append(cells, v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pages := make([]string, len(s.Pages))
	for i, p := range s.Pages {
		if p == s.CurrentPage {
			pages[i] = fmt.Sprintf("[%d]", p)
		} else {
			pages[i] = fmt.Sprint(p)
		}
	}
	_, err := fmt.Fprintf(w, "\npage %d of %d (%d %s)  %s\n", s.CurrentPage, s.TotalPages, s.Count, s.Resource, strings.Join(pages, " "))
	return err
}
