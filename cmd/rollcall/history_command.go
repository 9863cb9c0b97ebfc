package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rollcall/internal/api"
	"rollcall/internal/daemonctl"
)

const payloadColumnWidth = 24

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scan submissions from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			cfg := ctx.configValue()
			entries, err := daemonctl.ReadHistory(cmd.Context(), ctx.socketPath(), cfg, limit)
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []api.ScanEntry{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				if cfg != nil && !cfg.Journal.Enabled {
					fmt.Fprintln(out, "Scan journal is disabled (set journal.enabled = true)")
					return nil
				}
				fmt.Fprintln(out, "No scans recorded")
				return nil
			}
			renderHistory(out, entries, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func renderHistory(out io.Writer, entries []api.ScanEntry, now time.Time) {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			relativeTime(entry.ObservedAt, now),
			outcomeLabel(entry.Outcome),
			entry.Student,
			truncate(entry.Payload, payloadColumnWidth),
			entry.Message,
		})
	}
	fmt.Fprint(out, renderTable([]tableColumn{
		{Header: "When"},
		{Header: "Outcome"},
		{Header: "Student"},
		{Header: "Payload"},
		{Header: "Message"},
	}, rows))
}

func relativeTime(value string, now time.Time) string {
	ts := api.ParseTime(value)
	if ts.IsZero() {
		return "-"
	}
	return humanize.RelTime(ts, now, "ago", "from now")
}

func truncate(value string, width int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
