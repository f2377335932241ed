package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/oocmeans/internal/shard"
)

var (
	convertInput  string
	convertOutput string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a shard file between storage formats",
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertInput, "input", "", "source shard file (required)")
	convertCmd.Flags().StringVar(&convertOutput, "output", "", "destination shard file (required)")
	convertCmd.MarkFlagRequired("input")
	convertCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if err := shard.Convert(convertInput, convertOutput); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	return nil
}
