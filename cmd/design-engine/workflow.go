// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/design-engine/pkg/types"
)

var approveCmd = &cobra.Command{
	Use:   "approve <spec> <kind>",
	Short: "Approve a module that is pending review",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		entry, err := e.Approve(cmd.Context(), args[0], types.ModuleKind(args[1]), by)
		if err != nil {
			return err
		}
		fmt.Printf("%s/%s approved by %s\n", args[0], args[1], entry.ApprovedBy)
		return printProgress(args[0], e.CanProgress)
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <spec> <kind>",
	Short: "Reject a module so it can be regenerated",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		if _, err := e.Reject(cmd.Context(), args[0], types.ModuleKind(args[1]), by); err != nil {
			return err
		}
		fmt.Printf("%s/%s rejected; run `design-engine regenerate %s %s` to try again\n", args[0], args[1], args[0], args[1])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <spec> <kind>",
	Short: "Delete a module document and stop tracking it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(os.Stdout)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Delete(cmd.Context(), args[0], types.ModuleKind(args[1])); err != nil {
			return err
		}
		fmt.Printf("deleted %s/%s\n", args[0], args[1])
		return printProgress(args[0], e.CanProgress)
	},
}

func printProgress(spec string, canProgress func(string) (bool, error)) error {
	ok, err := canProgress(spec)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("every module of %s is approved; the spec can move to the next phase\n", spec)
	}
	return nil
}

func init() {
	approveCmd.Flags().String("by", "", "approver name (default: $USER)")
	rejectCmd.Flags().String("by", "", "reviewer name")

	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(deleteCmd)
}
