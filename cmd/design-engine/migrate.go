// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/design-engine/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <spec>",
	Short: "Split a legacy design.md into module documents",
	Long: `Migrate splits a spec's single design.md at its headings, maps each
section to a module kind by its heading, and writes one module document per
kind. Every migrated module starts pending review. The legacy file is kept
as design.md.backup.

Use --dry-run to see the mapping without writing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		secondary, _ := cmd.Flags().GetBool("include-secondary")
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		spec := args[0]
		need, err := e.CheckLegacy(spec)
		if err != nil {
			return err
		}
		if !need {
			fmt.Printf("%s has no legacy design.md to migrate\n", spec)
			return nil
		}
		if dryRun {
			a, err := e.AnalyzeLegacy(spec)
			if err != nil {
				return err
			}
			printMapping(os.Stdout, a)
			return nil
		}
		report, err := e.Migrate(cmd.Context(), spec, migrate.Options{IncludeSecondary: secondary})
		if err != nil {
			return err
		}
		printMigration(os.Stdout, report)
		return nil
	},
}

func printMapping(w io.Writer, a migrate.Analysis) {
	if len(a.Mappings) == 0 {
		fmt.Fprintln(w, "no sections found")
		return
	}
	for _, m := range a.Mappings {
		if len(m.Candidates) == 0 {
			fmt.Fprintf(w, "  %-40s -> %s\n", m.Section.Heading, mutedStyle.Render("(unmapped)"))
			continue
		}
		kinds := make([]string, len(m.Candidates))
		for i, c := range m.Candidates {
			kinds[i] = string(c.Kind)
		}
		fmt.Fprintf(w, "  %-40s -> %s\n", m.Section.Heading, strings.Join(kinds, ", "))
	}
}

func printMigration(w io.Writer, r migrate.Report) {
	if len(r.Migrated) == 0 {
		fmt.Fprintf(w, "%s: nothing migrated\n", r.Spec)
	}
	for i, kind := range r.Migrated {
		fmt.Fprintf(w, "migrated %s -> %s\n", kind, r.Files[i])
	}
	for _, c := range r.Conflicts {
		fmt.Fprintf(w, "skipped  %s: %s already exists\n", c.Kind, c.Path)
	}
	for _, h := range r.Unmapped {
		fmt.Fprintf(w, "unmapped section %q\n", h)
	}
	if r.BackupPath != "" {
		fmt.Fprintf(w, "legacy document kept as %s\n", r.BackupPath)
	}
}

func init() {
	migrateCmd.Flags().Bool("dry-run", false, "print the section mapping without writing")
	migrateCmd.Flags().Bool("include-secondary", false, "copy sections into every matching module, not only the best one")

	rootCmd.AddCommand(migrateCmd)
}
