// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <spec>",
	Short: "Show the recorded workflow transitions or runs of a spec",
	Long: `History reads the transition ledger (ledger.enabled) and prints the
newest state changes of a spec first. With --runs it lists generation and
migration runs instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		runs, _ := cmd.Flags().GetBool("runs")
		format, _ := cmd.Flags().GetString("format")
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		spec := args[0]
		if runs {
			list, err := e.Runs(cmd.Context(), spec, limit)
			if err != nil {
				return err
			}
			if format != "text" {
				return writeStructured(os.Stdout, format, list)
			}
			for _, r := range list {
				status := mutedStyle.Render("running")
				if r.EndedAt != nil {
					status = fmt.Sprintf("%d ok, %d failed, %d skipped", r.Succeeded, r.Failed, r.Skipped)
				}
				mods := make([]string, len(r.Modules))
				for i, k := range r.Modules {
					mods[i] = string(k)
				}
				fmt.Printf("%s  %-9s %s  [%s]  %s\n", r.StartedAt.Local().Format(time.DateTime), r.Operation, r.ID[:8], strings.Join(mods, ","), status)
			}
			return nil
		}

		entries, err := e.History(cmd.Context(), spec, limit)
		if err != nil {
			return err
		}
		if format != "text" {
			return writeStructured(os.Stdout, format, entries)
		}
		for _, h := range entries {
			line := fmt.Sprintf("%s  %-16s %s -> %s", h.At.Local().Format(time.DateTime), h.Module, h.From, stateStyle(h.To).Render(string(h.To)))
			if h.Actor != "" {
				line += mutedStyle.Render("  by " + h.Actor)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "maximum number of entries")
	historyCmd.Flags().Bool("runs", false, "list runs instead of transitions")
	historyCmd.Flags().String("format", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(historyCmd)
}
