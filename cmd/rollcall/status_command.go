package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"rollcall/internal/api"
	"rollcall/internal/daemonctl"
	"rollcall/internal/ipc"
	"rollcall/internal/session"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session and journal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snapshot)
			}
			renderStatus(cmd.OutOrStdout(), snapshot, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status snapshot as JSON")
	return cmd
}

func renderStatus(out io.Writer, st *ipc.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Scanner", colorize) {
		fmt.Fprintln(out, line)
	}
	if st.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", st.PID), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Session", sessionKind(st.Session.State), st.Session.State, colorize))
	camera := st.Session.Device
	if st.Running {
		camera = fmt.Sprintf("%s (hotplug monitor: %s)", camera, yesNo(st.CameraMonitor))
	}
	fmt.Fprintln(out, renderStatusLine("Camera", statusInfo, camera, colorize))
	if st.Session.SessionID != "" {
		fmt.Fprintln(out, renderStatusLine("Session ID", statusInfo, st.Session.SessionID, colorize))
		if started := api.ParseTime(st.Session.StartedAt); !started.IsZero() {
			fmt.Fprintln(out, renderStatusLine("Started", statusInfo, humanize.Time(started), colorize))
		}
		fmt.Fprintln(out, renderStatusLine("Accepted scans", statusInfo, strconv.Itoa(st.Session.Accepted), colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Status Line", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, statusIndent+renderDisplayLine(st.Display, colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range dependencyLines(st.Dependencies, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Journal", colorize) {
		fmt.Fprintln(out, line)
	}
	if st.JournalPath == "" {
		fmt.Fprintln(out, "Journal not available")
		return
	}
	rows := outcomeRows(st.OutcomeCounts)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No scans recorded")
		return
	}
	fmt.Fprint(out, renderTable([]tableColumn{
		{Header: "Outcome"},
		{Header: "Count", Align: text.AlignRight},
	}, rows))
}

func sessionKind(state string) statusKind {
	switch state {
	case session.Live.String():
		return statusOK
	case session.Starting.String(), session.Stopping.String():
		return statusWarn
	default:
		return statusInfo
	}
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	var missing []string
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		} else {
			missing = append(missing, dep.Name)
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusError, strings.Join(missing, ", ")+" (run `rollcall preflight`)", colorize))
	}
	return lines
}

func outcomeRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{outcomeLabel(kind), strconv.Itoa(counts[kind])})
	}
	return rows
}

func outcomeLabel(kind string) string {
	return strings.ReplaceAll(kind, "_", " ")
}

