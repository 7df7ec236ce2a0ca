package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/cache"
	"github.com/lintingbin2009/Erl-AutoCompletion/pkg/types"
)

const (
	formatJSON = "json"
	formatText = "text"
)

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatText:
		return nil
	default:
		return fmt.Errorf("invalid format %q, must be json or text", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// plainLabel drops the editor kind suffix ("\tMethod", "\tModule").
func plainLabel(label string) string {
	name, _, _ := strings.Cut(label, "\t")
	return name
}

// formatCompletionsText prints one exported function per line with its
// snippet template.
func formatCompletionsText(w io.Writer, items []types.CompletionItem) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\n", plainLabel(item.Label), item.Completion)
	}
	tw.Flush()
}

func formatModulesText(w io.Writer, items []types.ModuleItem) {
	for _, item := range items {
		fmt.Fprintln(w, item.Value)
	}
}

// formatPositionsText prints "file:line" locations, grep style.
func formatPositionsText(w io.Writer, items []types.PositionItem) {
	for _, item := range items {
		fmt.Fprintf(w, "%s:%d: %s\n", item.FilePath, item.Line, item.Label)
	}
}

func formatStatusText(w io.Writer, status *cache.Status) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "State:\t%s\n", status.State)
	fmt.Fprintf(tw, "Cache:\t%s\n", status.Path)
	fmt.Fprintf(tw, "Size:\t%s\n", humanize.Bytes(uint64(status.SizeBytes)))
	fmt.Fprintf(tw, "Index version:\t%s\n", status.Version)
	fmt.Fprintf(tw, "Schema version:\t%s\n", status.SchemaVersion)
	fmt.Fprintf(tw, "Modules:\t%s\n", humanize.Comma(int64(status.ModulesCount)))
	fmt.Fprintf(tw, "Functions:\t%s\n", humanize.Comma(int64(status.SymbolsCount)))
	fmt.Fprintf(tw, "Files:\t%s\n", humanize.Comma(int64(status.FilesCount)))
	if status.LastBuildAt.IsZero() {
		fmt.Fprintf(tw, "Last build:\tnever\n")
	} else {
		fmt.Fprintf(tw, "Last build:\t%s (%s)\n",
			humanize.Time(status.LastBuildAt), status.LastBuildAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}
