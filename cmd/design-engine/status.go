// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pdiddy/design-engine/internal/engine"
	"github.com/pdiddy/design-engine/pkg/types"
)

var (
	stateStyleApproved = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	stateStylePending  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	stateStyleRejected = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	stateStyleDefault  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	panelStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func stateStyle(s types.WorkflowState) lipgloss.Style {
	switch s {
	case types.StateApproved:
		return stateStyleApproved
	case types.StatePendingReview:
		return stateStylePending
	case types.StateRejected:
		return stateStyleRejected
	default:
		return stateStyleDefault
	}
}

var statusCmd = &cobra.Command{
	Use:   "status [spec...]",
	Short: "Show the review state of every module of a spec",
	Long: `Status lists each tracked module with its workflow state, whether its
document exists, and who approved it. With no arguments every spec is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		specs := args
		if len(specs) == 0 {
			if specs, err = e.Specs(); err != nil {
				return err
			}
		}
		var reports []engine.StatusReport
		for _, spec := range specs {
			r, err := e.Status(spec)
			if err != nil {
				return err
			}
			reports = append(reports, r)
		}
		if format != "text" {
			return writeStructured(os.Stdout, format, reports)
		}
		for _, r := range reports {
			fmt.Println(renderStatus(r))
		}
		return nil
	},
}

// renderStatus draws one spec's modules as an aligned, bordered table.
func renderStatus(r engine.StatusReport) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(r.Spec))
	b.WriteString("\n")
	if len(r.Modules) == 0 {
		b.WriteString(mutedStyle.Render("no modules generated yet"))
	}

	kindWidth, stateWidth := len("module"), len("state")
	for _, m := range r.Modules {
		kindWidth = max(kindWidth, len(m.Kind))
		stateWidth = max(stateWidth, len(m.State))
	}
	if len(r.Modules) > 0 {
		fmt.Fprintf(&b, "%-*s  %-*s  %s\n", kindWidth, "module", stateWidth, "state", "file")
	}
	for _, m := range r.Modules {
		state := stateStyle(m.State).Render(fmt.Sprintf("%-*s", stateWidth, m.State))
		file := m.File
		if !m.FileExists {
			file += mutedStyle.Render(" (missing)")
		}
		fmt.Fprintf(&b, "%-*s  %s  %s", kindWidth, m.Kind, state, file)
		if m.ApprovedBy != "" && m.ApprovedAt != nil {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  by %s %s", m.ApprovedBy, m.ApprovedAt.Local().Format(time.DateTime))))
		}
		b.WriteString("\n")
	}

	switch {
	case r.LegacyPending:
		b.WriteString(stateStylePending.Render("legacy design.md not migrated"))
	case r.CanProgressToNextPhase:
		b.WriteString(stateStyleApproved.Render("ready for the next phase"))
	case len(r.Modules) > 0:
		b.WriteString(mutedStyle.Render("waiting for approvals"))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the registered module kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		mods := e.Modules()
		if format != "text" {
			return writeStructured(os.Stdout, format, mods)
		}
		printModules(os.Stdout, e, mods)
		return nil
	},
}

func printModules(w io.Writer, e *engine.Engine, mods []types.ModuleDescriptor) {
	for _, m := range mods {
		origin := "standard"
		if m.Custom {
			origin = "custom"
		}
		file, _ := e.FileName(m.Kind)
		fmt.Fprintf(w, "%3d  %-16s %-24s %-26s %s\n", m.Priority, m.Kind, m.Name, file, mutedStyle.Render(origin))
	}
}

func init() {
	statusCmd.Flags().String("format", "text", "output format: text, json, or yaml")
	modulesCmd.Flags().String("format", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(modulesCmd)
}
