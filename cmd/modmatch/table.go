package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/addityasingh/modmatch/pkg/registry"
	"github.com/addityasingh/modmatch/pkg/scanner"
)

// stdoutIsTerminal gates color output the same way for every command.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderModsTable renders the blocked mod set as a status table.
func renderModsTable(w io.Writer, mods []registry.BlockedMod) {
	color := stdoutIsTerminal()

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Mod", "Status", "Local Path", "URL"})

	for _, mod := range mods {
		status := "missing"
		if mod.Matched {
			status = "found"
		}
		if color {
			if mod.Matched {
				status = text.FgGreen.Sprint(status)
			} else {
				status = text.FgRed.Sprint(status)
			}
		}
		tw.AppendRow(table.Row{mod.Name, status, mod.LocalPath, mod.URL})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft, WidthMax: 60},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignLeft, WidthMax: 60},
	})
	tw.Render()
}

// renderSummary prints a one-line account of what a scan did.
func renderSummary(w io.Writer, mods []registry.BlockedMod, stats scanner.Stats) {
	matched := 0
	for _, mod := range mods {
		if mod.Matched {
			matched++
		}
	}

	fmt.Fprintf(w, "%d/%d blocked mods found; hashed %d of %d files seen (%s)\n",
		matched, len(mods),
		stats.FilesHashed, stats.FilesSeen,
		humanize.Bytes(uint64(stats.BytesHashed)))
}
