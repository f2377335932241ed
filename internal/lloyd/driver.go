// Package lloyd implements the Lloyd driver (spec.md §4.E): the state
// machine that seeds a centroid table, repeatedly assigns-and-recomputes it
// until stabilization or an iteration cap, and reports the final objective.
// The driver never imports mpb — progress is reported through an injected
// callback so the CLI owns the progress-bar collaborator (spec.md §1).
package lloyd

import (
	"os"
	"path/filepath"

	"github.com/cwbudde/oocmeans/internal/centroid"
	"github.com/cwbudde/oocmeans/internal/config"
	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/seed"
	"github.com/cwbudde/oocmeans/internal/shard"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// State names mirror spec.md §4.E's transition diagram exactly.
const (
	StateSeeding      = "seeding"
	StateIterating    = "iterating"
	StateStabilized   = "stabilized"
	StateIterationCap = "iteration-cap"
)

// stabilizationTolerance is the τ coefficient from spec.md §9: stabilize
// when max row-wise L2 change across centroids is below τ = 1e-6·max(|C|).
const stabilizationTolerance = 1e-6

// Driver runs one clustering job. State is exposed for logging/progress, the
// same state-as-a-field idiom the teacher uses for its convergence tracker's
// staleCount.
type Driver struct {
	cfg        *config.Config
	eng        *distance.Engine
	seeder     seed.Seeder
	onProgress func(done, total int)
	history    *config.HistoryWriter
	state      string
}

// NewDriver builds a driver for one run. onProgress may be nil.
func NewDriver(cfg *config.Config, eng *distance.Engine, seeder seed.Seeder, onProgress func(done, total int)) *Driver {
	if onProgress == nil {
		onProgress = func(int, int) {}
	}
	return &Driver{cfg: cfg, eng: eng, seeder: seeder, onProgress: onProgress}
}

// State reports the driver's current state.
func (d *Driver) State() string { return d.state }

// SetHistory attaches an optional per-iteration cost log (spec.md §6
// "history.name.<fmt>", §9 "not required by the core" — opt-in only). When
// set, run recomputes the objective once per pass instead of once at
// termination, the overhead a caller accepts by asking for history.
func (d *Driver) SetHistory(w *config.HistoryWriter) { d.history = w }

// Result is what a completed run produces, before persistence: the final
// centroid table, its objective, the resolved feature columns, and the
// state the run terminated in (stabilized or iteration-cap).
type Result struct {
	Centroids centroid.Table
	Cost      float64
	Columns   []string
	State     string
}

// FromPath runs the driver against an on-disk shard stream (spec.md §9
// "from_path").
func (d *Driver) FromPath(path string) (Result, error) {
	columns, err := ResolveColumns(path, d.cfg.Columns)
	if err != nil {
		return Result{}, err
	}
	shards := func() (shard.Stream, error) {
		s, err := shard.Open(path)
		if err != nil {
			return nil, err
		}
		return shard.SelectStream(s, columns), nil
	}
	return d.run(d.cfg, shards, columns)
}

// FromRows runs the driver against an in-memory row sequence (spec.md §9
// "from_rows"): rows are materialized to a temporary file in the configured
// storage format first. When that format is csv the temporary file is csv;
// neither FromRows nor FromPath converts CSV input to another format.
func (d *Driver) FromRows(rows [][]float32, columns []string) (Result, error) {
	if len(rows) == 0 {
		return Result{}, xerrors.New(xerrors.ShapeError, "no rows to cluster")
	}
	d1 := len(columns)
	for _, r := range rows {
		if len(r) != d1 {
			return Result{}, xerrors.New(xerrors.ShapeError, "row length does not match column count")
		}
	}

	// A private directory, not a shared temp-dir filename: afk-mc² derives
	// qx.<fmt>'s path from the seeding Config's directory, and that name
	// carries no per-run uniqueness of its own (spec.md §6 pins it to
	// exactly "qx.<format>", co-located with the input).
	tmpDir, err := os.MkdirTemp("", "oocmeans-rows-")
	if err != nil {
		return Result{}, xerrors.Wrap(xerrors.IoError, "create temp directory for in-memory rows", err)
	}
	defer os.RemoveAll(tmpDir)
	tmpPath := filepath.Join(tmpDir, "points."+d.cfg.Format)

	cols := make([][]float32, d1)
	for c := range cols {
		cols[c] = make([]float32, len(rows))
	}
	for i, r := range rows {
		for c := 0; c < d1; c++ {
			cols[c][i] = r[c]
		}
	}
	sh := shard.Shard{Columns: columns, Data: cols}
	if err := shard.Write(tmpPath, shard.NewMemStream([]shard.Shard{sh})); err != nil {
		return Result{}, err
	}

	shards := func() (shard.Stream, error) {
		return shard.Open(tmpPath)
	}

	// Seeding derives auxiliary artifacts (afk-mc²'s qx.<fmt>) from the
	// config's Path; point it at the materialized temp file rather than
	// whatever placeholder Path the caller built the Config with.
	seedCfg := *d.cfg
	seedCfg.Path = tmpPath
	return d.run(&seedCfg, shards, columns)
}

func (d *Driver) run(seedCfg *config.Config, shards func() (shard.Stream, error), columns []string) (Result, error) {
	d.state = StateSeeding
	table, err := d.seeder.Seed(seedCfg, d.eng, shards)
	if err != nil {
		return Result{}, err
	}

	totalShards, err := countShards(shards)
	if err != nil {
		return Result{}, err
	}

	d.state = StateIterating
	finalState := StateIterationCap
	for iter := 0; iter < d.cfg.IterationCap; iter++ {
		newTable, err := d.pass(shards, table, totalShards)
		if err != nil {
			return Result{}, err
		}
		stable := stabilized(table, newTable)
		table = newTable
		if stable {
			finalState = StateStabilized
		}
		if d.history != nil {
			state := StateIterating
			if stable {
				state = StateStabilized
			}
			cost, err := d.objective(shards, table, totalShards)
			if err != nil {
				return Result{}, err
			}
			if err := d.history.Write(config.HistoryEntry{Iteration: iter + 1, Cost: cost, State: state}); err != nil {
				return Result{}, err
			}
		}
		if stable {
			break
		}
	}
	d.state = finalState

	cost, err := d.objective(shards, table, totalShards)
	if err != nil {
		return Result{}, err
	}

	return Result{Centroids: table, Cost: cost, Columns: columns, State: d.state}, nil
}

// pass runs one assign-then-recompute iteration (spec.md §4.E per-pass
// protocol): scoped acquire, per-shard nearest_index, group-by-mean
// aggregation, scoped release.
func (d *Driver) pass(shards func() (shard.Stream, error), table centroid.Table, totalShards int) (centroid.Table, error) {
	k, dim := table.K(), table.D()

	handle, release, err := d.eng.AcquireForPass(table)
	if err != nil {
		return centroid.Table{}, err
	}
	defer release()

	s, err := shards()
	if err != nil {
		return centroid.Table{}, err
	}
	defer s.Close()

	sums := make([][]float64, k)
	counts := make([]int64, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	shardIdx := 0
	for {
		sh, ok, err := s.Next()
		if err != nil {
			return centroid.Table{}, err
		}
		if !ok {
			break
		}
		idx, err := d.eng.NearestIndexUsing(handle, sh, table)
		if err != nil {
			return centroid.Table{}, err
		}
		for i := 0; i < sh.Rows(); i++ {
			c := idx.At(i)
			counts[c]++
			row := sh.Row(i)
			for j := 0; j < dim; j++ {
				sums[c][j] += float64(row[j])
			}
		}
		shardIdx++
		d.onProgress(shardIdx, totalShards)
	}

	newRows := make([][]float32, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			// Empty-cluster policy (spec.md §9 Open Question, resolved in
			// DESIGN.md): carry the previous centroid forward unchanged.
			newRows[c] = append([]float32(nil), table.Row(c)...)
			continue
		}
		row := make([]float32, dim)
		for j := 0; j < dim; j++ {
			row[j] = float32(sums[c][j] / float64(counts[c]))
		}
		newRows[c] = row
	}

	return centroid.New(newRows, dim)
}

func stabilized(old, next centroid.Table) bool {
	if old.Equal(next) {
		return true
	}
	tau := stabilizationTolerance * float64(next.MaxAbs())
	return float64(old.MaxRowL2Change(next)) < tau
}

// objective streams every shard once through minimum_distance and sums the
// result. run calls it once at termination, and additionally once per pass
// only when a history writer is attached.
func (d *Driver) objective(shards func() (shard.Stream, error), table centroid.Table, totalShards int) (float64, error) {
	s, err := shards()
	if err != nil {
		return 0, err
	}
	defer s.Close()

	var cost float64
	shardIdx := 0
	for {
		sh, ok, err := s.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		dists, err := d.eng.MinimumDistance(sh, table)
		if err != nil {
			return 0, err
		}
		for _, v := range dists {
			cost += float64(v)
		}
		shardIdx++
		d.onProgress(shardIdx, totalShards)
	}
	return cost, nil
}

// WriteAssignments re-streams path and writes a row-aligned assignments
// shard stream to dstPath: one uint32-as-float32 column per row, the index
// of its nearest centroid (spec.md §6 "assignments.name.<fmt>").
func (d *Driver) WriteAssignments(path, dstPath string, columns []string, table centroid.Table) error {
	s, err := shard.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	projected := shard.SelectStream(s, columns)

	handle, release, err := d.eng.AcquireForPass(table)
	if err != nil {
		return err
	}
	defer release()

	src := &assignmentStream{inner: projected, eng: d.eng, handle: handle, table: table}
	return shard.Write(dstPath, src)
}

type assignmentStream struct {
	inner  shard.Stream
	eng    *distance.Engine
	handle *centroid.DeviceHandle
	table  centroid.Table
}

func (a *assignmentStream) Next() (shard.Shard, bool, error) {
	sh, ok, err := a.inner.Next()
	if err != nil || !ok {
		return shard.Shard{}, ok, err
	}
	idx, err := a.eng.NearestIndexUsing(a.handle, sh, a.table)
	if err != nil {
		return shard.Shard{}, false, err
	}
	// The persisted shard model is uniformly float32 across every column
	// (features, assignments, q(x) alike); the width-encoding invariant from
	// spec.md §3 governs idx's in-memory/device representation above, not
	// this on-disk column (see DESIGN.md).
	vals := make([]float32, idx.Len())
	for i := range vals {
		vals[i] = float32(idx.At(i))
	}
	return shard.Shard{Columns: []string{shard.ReservedAssignments}, Data: [][]float32{vals}}, true, nil
}

func (a *assignmentStream) Close() error { return a.inner.Close() }

func countShards(shards func() (shard.Stream, error)) (int, error) {
	s, err := shards()
	if err != nil {
		return 0, err
	}
	defer s.Close()
	n := 0
	for {
		_, ok, err := s.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// ResolveColumns returns configured if non-empty, otherwise the first
// shard's non-reserved columns (spec.md §6 "--columns ... defaults to all
// non-reserved columns of the first shard").
func ResolveColumns(path string, configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	s, err := shard.Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	sh, ok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.New(xerrors.ShapeError, "empty shard stream: "+filepath.Base(path))
	}
	return shard.FeatureColumns(sh.Columns), nil
}
