package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"

	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/gpu"
	"github.com/cwbudde/oocmeans/internal/lloyd"
	"github.com/cwbudde/oocmeans/internal/seed"
	"github.com/cwbudde/oocmeans/internal/shard"
)

var (
	clusterInput         string
	clusterK             int
	clusterColumns       []string
	clusterSeeder        string
	clusterDistance      string
	clusterNoAccelerator bool
	clusterChainLength   int
	clusterNHat          int64
	clusterRandomSeed    int64
	clusterHistory       bool
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster a shard file with k-means",
	RunE:  runCluster,
}

func init() {
	clusterCmd.Flags().StringVar(&clusterInput, "input", "", "input shard file (required)")
	clusterCmd.Flags().IntVar(&clusterK, "k", 0, "number of clusters, >= 2 (required)")
	clusterCmd.Flags().StringArrayVar(&clusterColumns, "columns", nil, "feature column (repeatable; default: all non-reserved columns)")
	clusterCmd.Flags().StringVar(&clusterSeeder, "seeder", config.DefaultSeeder, `seeding method: naive, "k-means++", "k-means||", k-mc2, or afk-mc2`)
	clusterCmd.Flags().StringVar(&clusterDistance, "distance", config.DefaultDistance, "distance key")
	clusterCmd.Flags().BoolVar(&clusterNoAccelerator, "no-accelerator", false, "disable the OpenCL accelerator even if available")
	clusterCmd.Flags().IntVar(&clusterChainLength, "m", 0, "Markov chain length for k-mc2/afk-mc2 (0 = compute default)")
	clusterCmd.Flags().Int64Var(&clusterNHat, "nhat", 0, "dataset size estimate n-hat (0 = unset)")
	clusterCmd.Flags().Int64Var(&clusterRandomSeed, "seed", 1, "random seed")
	clusterCmd.Flags().BoolVar(&clusterHistory, "history", false, "write a per-iteration cost log to history.name.<fmt>")
	clusterCmd.MarkFlagRequired("input")
	clusterCmd.MarkFlagRequired("k")
	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
	opts := []config.Option{
		config.WithSeeder(clusterSeeder),
		config.WithDistance(clusterDistance),
		config.WithRandomSeed(clusterRandomSeed),
	}
	if len(clusterColumns) > 0 {
		opts = append(opts, config.WithColumns(clusterColumns))
	}
	if clusterChainLength > 0 {
		opts = append(opts, config.WithChainLength(clusterChainLength))
	}
	if clusterNHat > 0 {
		opts = append(opts, config.WithNHat(clusterNHat))
	}
	if clusterNoAccelerator {
		opts = append(opts, config.WithAccelerator(false))
	}

	cfg, err := config.New(clusterInput, clusterK, opts...)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	fn, err := distance.Get(cfg.Distance)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	columns, err := lloyd.ResolveColumns(cfg.Path, cfg.Columns)
	if err != nil {
		return fmt.Errorf("cluster: %w", err)
	}

	var rt *gpu.Runtime
	var gctx *gpu.Context
	if cfg.UseAccelerator {
		rt, gctx = tryAcquireAccelerator(fn, len(columns), cfg.K)
	}
	defer func() {
		if gctx != nil {
			gctx.Close()
		}
		if rt != nil {
			rt.Close()
		}
	}()

	eng := distance.NewEngine(fn, gctx)

	seeder, err := selectSeeder(cfg.Seeder)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	progress := mpb.New(mpb.WithOutput(os.Stdout))
	var bar *mpb.Bar
	onProgress := func(done, total int) {
		if bar == nil && total > 0 {
			bar = progress.AddBar(int64(total),
				mpb.PrependDecorators(decor.Name("clustering")),
				mpb.AppendDecorators(decor.Percentage()),
			)
		}
		if bar != nil {
			bar.SetCurrent(int64(done))
		}
	}

	base := strings.TrimSuffix(filepath.Base(cfg.Path), filepath.Ext(cfg.Path))
	dir := filepath.Dir(cfg.Path)

	driver := lloyd.NewDriver(cfg, eng, seeder, onProgress)

	var history *config.HistoryWriter
	if clusterHistory {
		historyPath := filepath.Join(dir, fmt.Sprintf("history.%s.%s", base, cfg.Format))
		history, err = config.NewHistoryWriter(historyPath)
		if err != nil {
			return fmt.Errorf("cluster: %w", err)
		}
		driver.SetHistory(history)
	}

	result, err := driver.FromPath(cfg.Path)
	progress.Wait()
	if history != nil {
		if cerr := history.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("cluster: %w", err)
	}

	slog.Info("clustering finished", "state", result.State, "cost", result.Cost, "k", cfg.K)

	centroidsPath := filepath.Join(dir, fmt.Sprintf("centroids.%s.%s", base, cfg.Format))
	if err := writeCentroids(centroidsPath, result.Columns, result.Centroids.Rows()); err != nil {
		return fmt.Errorf("cluster: write centroids: %w", err)
	}

	assignmentsPath := filepath.Join(dir, fmt.Sprintf("assignments.%s.%s", base, cfg.Format))
	if err := driver.WriteAssignments(cfg.Path, assignmentsPath, result.Columns, result.Centroids); err != nil {
		return fmt.Errorf("cluster: write assignments: %w", err)
	}

	store, err := config.NewFSStore(dir)
	if err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	cr := config.NewClusterResult(result.Centroids.Rows(), result.Cost, *cfg)
	if err := store.Save(base, cr); err != nil {
		return fmt.Errorf("cluster: save result: %w", err)
	}

	slog.Info("wrote outputs", "centroids", centroidsPath, "assignments", assignmentsPath)
	return nil
}

func tryAcquireAccelerator(fn distance.Func, dims, k int) (*gpu.Runtime, *gpu.Context) {
	if fn.Kernel == "" {
		return nil, nil
	}
	rt, err := gpu.InitOpenCL()
	if err != nil {
		slog.Warn("no accelerator available, falling back to scalar distance", "err", err)
		return nil, nil
	}
	gctx, err := gpu.NewContext(rt, fn.Kernel, dims, k)
	if err != nil {
		slog.Warn("accelerator kernel build failed, falling back to scalar distance", "err", err)
		rt.Close()
		return nil, nil
	}
	return rt, gctx
}

func selectSeeder(key string) (seed.Seeder, error) {
	switch key {
	case "naive":
		return seed.NewNaive(), nil
	case "k-means++":
		return seed.NewKMeansPlusPlus(), nil
	case "k-means||":
		return seed.NewKMeansParallel(), nil
	case "k-mc2":
		return seed.NewKMC2(), nil
	case "afk-mc2":
		return seed.NewAFKMC2(), nil
	default:
		return nil, fmt.Errorf("unknown seeder key: %s", key)
	}
}

func writeCentroids(path string, columns []string, rows [][]float32) error {
	d := len(columns)
	cols := make([][]float32, d)
	for c := range cols {
		cols[c] = make([]float32, len(rows))
	}
	for i, row := range rows {
		for c := 0; c < d; c++ {
			cols[c][i] = row[c]
		}
	}
	sh := shard.Shard{Columns: columns, Data: cols}
	return shard.Write(path, shard.NewMemStream([]shard.Shard{sh}))
}
