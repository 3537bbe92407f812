// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/design-engine/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <spec>",
	Short: "Check the cross-module references of a spec",
	Long: `Analyze reads every module document of a spec, extracts the API
endpoints, data models, and services one module expects another to define,
and reports references that have no matching definition. Missing endpoints
are errors; missing data models and services are warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		strict, _ := cmd.Flags().GetBool("strict")
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.Analyze(args[0])
		if err != nil {
			return err
		}
		if format != "text" {
			if err := writeStructured(os.Stdout, format, report); err != nil {
				return err
			}
		} else {
			printReferences(os.Stdout, report.References)
			if len(report.Inconsistencies) == 0 {
				fmt.Println("no inconsistencies found")
			}
			printInconsistencies(os.Stdout, report)
		}
		if report.Errors() > 0 || (strict && report.Warnings() > 0) {
			return fmt.Errorf("%s: %d error(s), %d warning(s)", args[0], report.Errors(), report.Warnings())
		}
		return nil
	},
}

func printReferences(w io.Writer, refs types.ReferenceMap) {
	fmt.Fprintf(w, "%d reference(s)\n", refs.Count())
	for _, src := range sortedKinds(refs) {
		targets := refs[src]
		for _, dst := range sortedKinds(targets) {
			fmt.Fprintf(w, "  %s -> %s\n", src, dst)
			for _, r := range targets[dst] {
				fmt.Fprintf(w, "    %-12s %s\n", r.ReferenceKind, r.Text)
			}
		}
	}
}

func sortedKinds[V any](m map[types.ModuleKind]V) []types.ModuleKind {
	kinds := make([]types.ModuleKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

var linksCmd = &cobra.Command{
	Use:   "links <spec> <kind>",
	Short: "Print the related-modules section for a module",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		links, md, err := e.CrossLinks(args[0], types.ModuleKind(args[1]))
		if err != nil {
			return err
		}
		if format != "text" {
			return writeStructured(os.Stdout, format, links)
		}
		fmt.Print(md)
		return nil
	},
}

// writeStructured encodes v as json or yaml.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json, or yaml)", format)
	}
}

func init() {
	analyzeCmd.Flags().String("format", "text", "output format: text, json, or yaml")
	analyzeCmd.Flags().Bool("strict", false, "exit non-zero on warnings as well as errors")
	linksCmd.Flags().String("format", "text", "output format: text, json, or yaml")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(linksCmd)
}
