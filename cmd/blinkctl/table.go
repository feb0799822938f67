package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// listing is one command's tabular output. Numeric holds the 1-based
// column numbers that are right-aligned in the table view.
type listing struct {
	headers []string
	rows    [][]string
	numeric []int
}

// write renders a rounded table on a terminal and tab-separated lines
// otherwise, so output piped into other tools stays parseable.
func (l listing) write(w io.Writer) {
	if !isTerminal(w) {
		for _, row := range l.rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(cells(l.headers, len(l.headers)))
	for _, row := range l.rows {
		tw.AppendRow(cells(row, len(l.headers)))
	}

	configs := make([]table.ColumnConfig, 0, len(l.numeric))
	for _, n := range l.numeric {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	tw.Render()
}

// cells pads or truncates values to width columns.
func cells(values []string, width int) table.Row {
	r := make(table.Row, width)
	for i := range r {
		if i < len(values) {
			r[i] = values[i]
		} else {
			r[i] = ""
		}
	}
	return r
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
