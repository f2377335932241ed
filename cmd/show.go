package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/oocmeans/internal/config"
)

var showCmd = &cobra.Command{
	Use:   "show <result-path>",
	Short: "Print a saved ClusterResult",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	path := args[0]
	dir := filepath.Dir(path)
	name := strings.TrimSuffix(filepath.Base(path), ".json")

	store, err := config.NewFSStore(dir)
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}
	result, err := store.Load(name)
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}

	fmt.Printf("run=%s k=%d seeder=%s distance=%s cost=%g timestamp=%s\n",
		result.RunID, result.Config.K, result.Config.Seeder, result.Config.Distance, result.Cost, result.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	for i, row := range result.Centroids {
		fmt.Printf("centroid[%d] = %v\n", i, row)
	}
	return nil
}
