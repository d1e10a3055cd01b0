package voxel

import "github.com/pkg/errors"

// Resolution selects the block storage layout (spec.md §3): a single dense
// grid per block, or a multi-scale pyramid supporting adaptive integration.
type Resolution uint8

const (
	// SingleRes stores one B^3 voxel grid per block.
	SingleRes Resolution = iota
	// MultiRes stores a pyramid of B^3, (B/2)^3, ..., 1 voxels per block.
	MultiRes
)

// Config is the map's configuration, matching spec.md §6's enumerated
// option list exactly, plus the two geometry parameters (BlockEdge, MapSide)
// needed to size the octree.
type Config struct {
	// Kind selects TSDF or Occupancy fusion.
	Kind Kind
	// Resolution selects single- or multi-resolution block storage.
	Resolution Resolution

	// Res is the voxel edge length in metres.
	Res float64
	// BlockEdge (B) is the block edge length in voxels; must be a power of two.
	BlockEdge int
	// MapSide (S) is the octree's cube edge length in voxels; must be a
	// power of two and at least 2*BlockEdge.
	MapSide int

	// LogOddMin/LogOddMax bound occupancy log-odds accumulation.
	LogOddMin, LogOddMax float64
	// MaxWeight caps the fused observation weight.
	MaxWeight uint16
	// TruncationBoundaryFactor scales Res to get the TSDF truncation band tau.
	TruncationBoundaryFactor float64
	// TauMin/TauMax bound the occupancy truncation band as a function of range.
	TauMin, TauMax float64
	// SigmaMin/SigmaMax bound the occupancy measurement noise sigma.
	SigmaMin, SigmaMax float64
	// FsIntegrScale is the integration scale forced for confidently-free,
	// low-variance blocks (spec.md §4.4).
	FsIntegrScale int
	// MinOccupancyThreshold is the log-odds surface boundary used by the
	// occupancy ray-caster and pruning.
	MinOccupancyThreshold float64
	// MaxOctants bounds the total number of nodes and blocks the tree's
	// arenas may grow to hold (spec.md §7: allocation failure is the one
	// fatal error condition). Zero means unbounded.
	MaxOctants int
}

// DefaultConfig returns reasonable occupancy-map defaults, matching the
// magnitudes used throughout spec.md §8's scenarios.
func DefaultConfig() Config {
	return Config{
		Kind:                     Occupancy,
		Resolution:               MultiRes,
		Res:                      0.02,
		BlockEdge:                8,
		MapSide:                  256,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
		TauMin:                   0.06,
		TauMax:                   0.16,
		SigmaMin:                 0.02,
		SigmaMax:                 0.05,
		FsIntegrScale:            3,
		MinOccupancyThreshold:    -0.2,
	}
}

// Validate checks the configuration against spec.md §3's structural
// invariants (I1: power-of-two sizing; S >= 2*B).
func (c Config) Validate() error {
	if c.Res <= 0 {
		return errors.New("voxel resolution must be positive")
	}
	if !isPowerOfTwo(c.BlockEdge) || c.BlockEdge < 2 {
		return errors.Errorf("block edge %d must be a power of two >= 2", c.BlockEdge)
	}
	if !isPowerOfTwo(c.MapSide) {
		return errors.Errorf("map side %d must be a power of two", c.MapSide)
	}
	if c.MapSide < 2*c.BlockEdge {
		return errors.Errorf("map side %d must be >= 2*block edge (%d)", c.MapSide, 2*c.BlockEdge)
	}
	if c.LogOddMin >= c.LogOddMax {
		return errors.New("log_odd_min must be less than log_odd_max")
	}
	if c.MaxWeight == 0 {
		return errors.New("max weight must be positive")
	}
	if c.MaxOctants < 0 {
		return errors.New("max octants must not be negative")
	}
	return nil
}

// MaxScale is log2(BlockEdge), the coarsest scale a block's pyramid reaches.
func (c Config) MaxScale() int {
	scale := 0
	for edge := c.BlockEdge; edge > 1; edge >>= 1 {
		scale++
	}
	return scale
}

// Tau returns the TSDF truncation band for this configuration.
func (c Config) Tau() float64 {
	return c.TruncationBoundaryFactor * c.Res
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
