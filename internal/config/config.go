// Package config implements the immutable run descriptor (spec.md §3, §4.F)
// and its persisted counterpart, ClusterResult. Config construction mirrors
// the teacher's JobConfig: a value built once, validated at construction,
// then read-only for the remainder of the run.
package config

import (
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/cwbudde/oocmeans/internal/distance"
	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// DefaultSeeder and DefaultDistance are the repository defaults from spec.md
// §4.F. The distance default is emd — spec.md §9 flags that k-means is not
// guaranteed to converge under a non-squared-Euclidean loss, but directs
// implementers to preserve the default rather than silently switch it; a
// warning is logged instead (see New).
const (
	DefaultSeeder       = "afk-mc2"
	DefaultDistance     = "emd"
	DefaultIterationCap = 100
	DefaultFormat       = "parquet"
)

// Config is an immutable run descriptor. Build one with New; there is no
// mutator — a changed setting means building a new Config.
type Config struct {
	Path           string
	Format         string
	K              int
	Columns        []string
	Seeder         string
	Distance       string
	ChainLength    int
	NHat           int64
	UseAccelerator bool
	IterationCap   int
	RandomSeed     int64

	acceleratorSet bool
}

// Option mutates a Config under construction; see the With* functions below.
type Option func(*Config)

// WithColumns restricts feature selection to the named columns, in order
// (spec.md §6 "--columns", repeatable).
func WithColumns(names []string) Option {
	return func(c *Config) { c.Columns = append([]string(nil), names...) }
}

// WithSeeder overrides the default seeding method key.
func WithSeeder(key string) Option {
	return func(c *Config) { c.Seeder = key }
}

// WithDistance overrides the default distance-function key.
func WithDistance(key string) Option {
	return func(c *Config) { c.Distance = key }
}

// WithChainLength overrides the Markov chain length m (k-mc², afk-mc²). 0
// means "compute the default" (spec.md §4.D "Chain-length defaulting").
func WithChainLength(m int) Option {
	return func(c *Config) { c.ChainLength = m }
}

// WithNHat sets the dataset size estimate n̂ used by afk-mc²'s α term and the
// chain-length default.
func WithNHat(n int64) Option {
	return func(c *Config) { c.NHat = n }
}

// WithAccelerator overrides the computed use-accelerator default.
func WithAccelerator(enabled bool) Option {
	return func(c *Config) { c.UseAccelerator = enabled; c.acceleratorSet = true }
}

// WithIterationCap overrides the default Lloyd iteration cap (spec.md §4.E).
func WithIterationCap(n int) Option {
	return func(c *Config) { c.IterationCap = n }
}

// WithRandomSeed fixes the seed driving every sampler (spec.md §5
// "deterministic given the random seed").
func WithRandomSeed(seed int64) Option {
	return func(c *Config) { c.RandomSeed = seed }
}

// New validates and builds a Config for clustering path into k clusters.
func New(path string, k int, opts ...Option) (*Config, error) {
	if k < 2 {
		return nil, xerrors.New(xerrors.ConfigError, "k must be >= 2")
	}

	c := &Config{
		Path:         path,
		Format:       formatFromExt(path),
		K:            k,
		Seeder:       DefaultSeeder,
		Distance:     DefaultDistance,
		IterationCap: DefaultIterationCap,
	}
	for _, opt := range opts {
		opt(c)
	}

	fn, err := distance.Get(c.Distance)
	if err != nil {
		return nil, err
	}
	if err := validateSeederKey(c.Seeder); err != nil {
		return nil, err
	}

	if c.Distance == DefaultDistance {
		slog.Warn("emd is not guaranteed to converge under Lloyd's algorithm; preserving the repository default", "distance", c.Distance)
	}

	if c.ChainLength == 0 && c.NHat > 1 {
		c.ChainLength = DefaultChainLength(c.K, c.NHat)
		if c.ChainLength >= int(c.NHat) {
			slog.Warn("chain length >= n_hat; Markov-chain sampling degenerates, consider k-means++ directly", "m", c.ChainLength, "nHat", c.NHat)
		}
	}

	if !c.acceleratorSet {
		c.UseAccelerator = fn.Kernel != ""
	}

	return c, nil
}

func validateSeederKey(key string) error {
	switch key {
	case "naive", "k-means++", "k-means||", "k-mc2", "afk-mc2":
		return nil
	default:
		return xerrors.New(xerrors.ConfigError, "unknown seeder key: "+key)
	}
}

// DefaultChainLength computes the Markov chain length m used by k-mc² and
// afk-mc² when not overridden (spec.md §4.D "Chain-length defaulting"):
// m = ceil(k * log2(n̂) * ln(k)), clamped to [1, n̂-1].
func DefaultChainLength(k int, nHat int64) int {
	m := math.Ceil(float64(k) * (math.Log(float64(nHat)) / math.Log(2)) * math.Log(float64(k)))
	if m > float64(nHat-1) {
		m = float64(nHat - 1)
	}
	if m < 1 {
		m = 1
	}
	return int(m)
}

func formatFromExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return DefaultFormat
	}
	return ext
}
