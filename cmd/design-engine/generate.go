// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/design-engine/internal/engine"
	"github.com/pdiddy/design-engine/internal/migrate"
	"github.com/pdiddy/design-engine/internal/xref"
	"github.com/pdiddy/design-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [spec...]",
	Short: "Generate the module documents of one or more specs",
	Long: `Generate reads each spec's requirements.md, picks the module kinds
(auto-detected or the configured defaults, unless --kinds is given), and asks
the provider to write every module. Modules run in parallel up to
modular.maxConcurrency. Each module that lands on disk moves to pending-review.

With no spec arguments every spec under specsDir is generated.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	kinds, _ := cmd.Flags().GetStringSlice("kinds")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	testingLast, _ := cmd.Flags().GetBool("testing-last")
	yes, _ := cmd.Flags().GetBool("yes")
	ignoreLegacy, _ := cmd.Flags().GetBool("ignore-legacy")

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
		if len(specs) == 0 {
			return fmt.Errorf("no specs found in %s", appConfig.SpecsDir)
		}
	}

	opts := engine.GenerateOptions{
		Kinds:              types.ParseKinds(kinds),
		TestingAfterOthers: testingLast,
		IgnoreLegacy:       ignoreLegacy,
	}
	ctx := cmd.Context()

	failed := 0
	for _, spec := range specs {
		if dryRun {
			if err := printPlan(e, spec, opts); err != nil {
				return err
			}
			continue
		}
		if err := offerMigration(ctx, e, spec, yes, os.Stdin, os.Stdout); err != nil {
			return err
		}
		fmt.Printf("== %s\n", spec)
		report, err := e.Generate(ctx, spec, opts)
		if err != nil {
			return fmt.Errorf("generating %s: %w", spec, err)
		}
		if report.Batch.HasFailures() {
			failed++
		}
		if report.Analysis != nil && appConfig.Modular.WarnOnInconsistencies {
			printInconsistencies(os.Stdout, *report.Analysis)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d spec(s) had modules that did not generate", failed)
	}
	return nil
}

func printPlan(e *engine.Engine, spec string, opts engine.GenerateOptions) error {
	order, err := e.Plan(spec, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%s: would generate %s\n", spec, strings.Join(order.Order, ", "))
	for _, edge := range order.BrokenEdges {
		fmt.Printf("  ignoring dependency %s\n", edge)
	}
	return nil
}

// offerMigration migrates a legacy spec before generation when the user
// agrees. Automatic migration is left to the engine.
func offerMigration(ctx context.Context, e *engine.Engine, spec string, yes bool, in io.Reader, out io.Writer) error {
	if appConfig.Modular.AutoMigrateLegacy {
		return nil
	}
	need, err := e.CheckLegacy(spec)
	if err != nil || !need {
		return err
	}
	if !yes {
		if !appConfig.Modular.ShowMigrationPrompt {
			return nil
		}
		fmt.Fprintf(out, "%s has a legacy design.md. Migrate it to modules first? [y/N] ", spec)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			return nil
		}
	}
	report, err := e.Migrate(ctx, spec, migrate.Options{})
	if err != nil {
		return err
	}
	printMigration(out, report)
	return nil
}

func printInconsistencies(w io.Writer, r xref.Report) {
	if len(r.Inconsistencies) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCross-reference check: %d error(s), %d warning(s)\n", r.Errors(), r.Warnings())
	for _, inc := range r.Inconsistencies {
		fmt.Fprintf(w, "  %-7s %s\n", inc.Severity, inc.Description)
		fmt.Fprintf(w, "          %s\n", inc.Suggestion)
	}
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <spec> <kind>",
	Short: "Generate one module again, typically after rejecting it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.Regenerate(cmd.Context(), args[0], types.ModuleKind(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("regenerated %s (%d attempt(s)) -> %s\n", res.Kind, res.Attempts, res.Path)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringSlice("kinds", nil, "module kinds to generate (default: detected or modular.defaultModules)")
	generateCmd.Flags().Bool("dry-run", false, "print the generation order without calling the provider")
	generateCmd.Flags().Bool("testing-last", false, "generate the testing module after the others, with their contents")
	generateCmd.Flags().Bool("yes", false, "migrate a legacy design.md without asking")
	generateCmd.Flags().Bool("ignore-legacy", false, "generate even when a legacy design.md has not been migrated")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(regenerateCmd)
}
