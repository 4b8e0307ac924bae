package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tickbook/domain/symbol"
)

func init() {
	rootCmd.AddCommand(symbolsCmd)
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Print the tradable symbol roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range symbol.All() {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}
