package octree

import "go.viam.com/volumap/voxel"

// Thresholds gating a pending scale switch's promotion to current (spec.md
// §4.3/§4.4): at least 20 integrations, and the buffer's observed-voxel
// volume at least 90% of the current scale's.
const (
	scaleSwitchMinIntegrations  = 20
	scaleSwitchObservedFraction = 0.90
)

// level is one scale of a MultiResBlock's pyramid. For occupancy maps, mean,
// min and max alias the same backing slice while this is the finest
// allocated level of its block (invariant I4); Unalias breaks that sharing
// once a finer level is grown beneath it.
type level struct {
	edge int32
	mean []voxel.Record
	min  []voxel.Record
	max  []voxel.Record
}

func newLevel(edge int32, occupancy bool, seed voxel.Record) level {
	n := int(edge)
	mean := make([]voxel.Record, n*n*n)
	for i := range mean {
		mean[i] = seed
	}
	lvl := level{edge: edge, mean: mean}
	if occupancy {
		lvl.min = mean
		lvl.max = mean
	}
	return lvl
}

func (l level) index(x, y, z int) int {
	e := int(l.edge)
	return x + y*e + z*e*e
}

func (l level) aliased() bool {
	return len(l.min) > 0 && &l.mean[0] == &l.min[0]
}

// unalias gives min/max their own backing storage, called when a level
// stops being the finest allocated one (invariant I4's "do not double-free":
// a copy, never a second free of the same array).
func (l *level) unalias() {
	if !l.aliased() {
		return
	}
	min := make([]voxel.Record, len(l.mean))
	max := make([]voxel.Record, len(l.mean))
	copy(min, l.mean)
	copy(max, l.mean)
	l.min, l.max = min, max
}

// pendingSwitch is the PendingSwitch(s, s', counters) state from Design
// Notes §9's buffer-scale-switch state machine.
type pendingSwitch struct {
	candidate     int
	buf           level
	integrCount   int
	observedCount int
}

// ScaleState is a snapshot of a MultiResBlock's position in the
// Stable(s) -> PendingSwitch(s, s', counters) -> Stable(s') protocol.
type ScaleState struct {
	Current       int
	Pending       bool
	Candidate     int
	IntegrCount   int
	ObservedCount int
}

// MultiResBlock is a leaf octant holding a per-scale pyramid plus a shadow
// buffer grid for atomic scale switches (spec.md §3 "Multi-res block").
// Grounded on go.viam.com/rdk/octree/basic.go's leaf-node seeding pattern and
// voxel/voxelgrid.go's VoxelCoords indexing convention, generalized from a
// single-resolution point store to a scale pyramid.
type MultiResBlock struct {
	octantHeader

	occupancy bool
	maxScale  int // log2(B): coarsest scale index
	levels    []level

	currentScale int
	firstVisit   bool

	// past holds whatever SetPastSnapshot last stored. CommitSwitch does
	// not take a snapshot, and nothing in the module sets or reads it.
	past []voxel.Record

	pending *pendingSwitch

	currIntegrCount   int
	currObservedCount int
}

func newMultiResBlock(minCorner [3]int32, edge int32, cfg voxel.Config, seed voxel.Record, initialScale int) *MultiResBlock {
	maxScale := cfg.MaxScale()
	if initialScale < 0 {
		initialScale = 0
	}
	if initialScale > maxScale {
		initialScale = maxScale
	}
	b := &MultiResBlock{
		octantHeader: octantHeader{minCorner: minCorner, edge: edge},
		occupancy:    cfg.Kind == voxel.Occupancy,
		maxScale:     maxScale,
		levels:       make([]level, maxScale+1),
		currentScale: initialScale,
		firstVisit:   true,
	}
	for s := initialScale; s <= maxScale; s++ {
		b.levels[s] = newLevel(edgeAtScale(edge, s), b.occupancy, seed)
	}
	return b
}

func edgeAtScale(blockEdge int32, scale int) int32 {
	return blockEdge >> uint(scale)
}

// IsBlock always returns true for a MultiResBlock.
func (b *MultiResBlock) IsBlock() bool { return true }

// Occupancy reports whether this block carries the min/max occupancy
// aggregates (true) or is a plain TSDF pyramid with only a mean array
// (false), letting the propagator decide whether to aggregate min/max at
// all (spec.md §4.5: "for occupancy three aggregates are produced in
// lockstep").
func (b *MultiResBlock) Occupancy() bool { return b.occupancy }

// CurrentScale returns the scale currently receiving fused measurements.
func (b *MultiResBlock) CurrentScale() int { return b.currentScale }

// MaxScale returns the coarsest scale this block's pyramid can reach.
func (b *MultiResBlock) MaxScale() int { return b.maxScale }

// FirstVisit reports whether this block has never been visited by the
// updater before (spec.md §4.3: the recommended scale is used raw, with no
// +-1 clamp, only on a block's first visit).
func (b *MultiResBlock) FirstVisit() bool { return b.firstVisit }

// MarkVisited clears FirstVisit after the updater's first pass.
func (b *MultiResBlock) MarkVisited() { b.firstVisit = false }

// At returns the voxel record at block-local coordinate (x,y,z) at the
// current scale, downsampling the coordinate by the current scale factor.
func (b *MultiResBlock) At(x, y, z int) voxel.Record {
	lvl := b.levels[b.currentScale]
	s := uint(b.currentScale)
	return lvl.mean[lvl.index(x>>s, y>>s, z>>s)]
}

// Set stores the voxel record at block-local coordinate (x,y,z) at the
// current scale.
func (b *MultiResBlock) Set(x, y, z int, rec voxel.Record) {
	lvl := &b.levels[b.currentScale]
	s := uint(b.currentScale)
	lvl.mean[lvl.index(x>>s, y>>s, z>>s)] = rec
}

// ScaleAllocated reports whether the pyramid has a level allocated at the
// given scale (finer levels are only present after AllocateDownTo).
func (b *MultiResBlock) ScaleAllocated(scale int) bool {
	return scale >= 0 && scale <= b.maxScale && b.levels[scale].mean != nil
}

// ScaleEdge returns the edge length, in voxels, of the pyramid level at the
// given scale.
func (b *MultiResBlock) ScaleEdge(scale int) int32 {
	return b.levels[scale].edge
}

// AtScale returns the mean voxel record at block-local coordinate (x,y,z),
// each in [0, ScaleEdge(scale)), at the given pyramid scale. Used by the
// propagator to read every scale of the pyramid, not just the current one.
func (b *MultiResBlock) AtScale(scale, x, y, z int) voxel.Record {
	lvl := &b.levels[scale]
	return lvl.mean[lvl.index(x, y, z)]
}

// SetAtScale stores the mean voxel record at block-local coordinate (x,y,z)
// at the given pyramid scale.
func (b *MultiResBlock) SetAtScale(scale, x, y, z int, rec voxel.Record) {
	lvl := &b.levels[scale]
	lvl.mean[lvl.index(x, y, z)] = rec
}

// MinAtScale and MaxAtScale return the occupancy min/max aggregates at
// block-local coordinate (x,y,z) at the given scale. For a level still
// aliased to mean (invariant I4, its finest allocated scale) these equal
// AtScale.
func (b *MultiResBlock) MinAtScale(scale, x, y, z int) voxel.Record {
	lvl := &b.levels[scale]
	return lvl.min[lvl.index(x, y, z)]
}

func (b *MultiResBlock) MaxAtScale(scale, x, y, z int) voxel.Record {
	lvl := &b.levels[scale]
	return lvl.max[lvl.index(x, y, z)]
}

// SetMinAtScale and SetMaxAtScale store the occupancy min/max aggregates at
// the given scale, unaliasing the level first if it was still sharing mean's
// backing array (invariant I4).
func (b *MultiResBlock) SetMinAtScale(scale, x, y, z int, rec voxel.Record) {
	lvl := &b.levels[scale]
	lvl.unalias()
	lvl.min[lvl.index(x, y, z)] = rec
}

func (b *MultiResBlock) SetMaxAtScale(scale, x, y, z int, rec voxel.Record) {
	lvl := &b.levels[scale]
	lvl.unalias()
	lvl.max[lvl.index(x, y, z)] = rec
}

// ScaleObservedVolume returns how many voxels at the given scale have
// Observed set, passed by fuse.MaybeCommitSwitch as ReadyToSwitch's
// denominator. The propagator's pruning check does not use it; it reads the
// node's own summaries.
func (b *MultiResBlock) ScaleObservedVolume(scale int) int {
	return b.levels[scale].ObservedVolume()
}

// AllocateDownTo grows the pyramid with finer levels down to scale s,
// down-copying the current level's values into each new finer level
// (spec.md §3 lifecycle: "Blocks' multi-resolution pyramids are grown on
// demand (allocateDownTo)"). Newly created voxels are marked unobserved so
// a subsequent buffer accumulation counts only its own observations.
func (b *MultiResBlock) AllocateDownTo(s int) {
	if s >= b.currentScale {
		return
	}
	b.levels[b.currentScale].unalias()
	for scale := b.currentScale - 1; scale >= s; scale-- {
		edge := edgeAtScale(b.edge, scale)
		lvl := level{edge: edge}
		n := int(edge)
		lvl.mean = make([]voxel.Record, n*n*n)
		parent := b.levels[scale+1]
		ratio := int(parent.edge)
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				for z := 0; z < n; z++ {
					px, py, pz := x*ratio/n, y*ratio/n, z*ratio/n
					rec := parent.mean[parent.index(px, py, pz)]
					rec.Observed = false
					lvl.mean[lvl.index(x, y, z)] = rec
				}
			}
		}
		if b.occupancy {
			lvl.min = lvl.mean
			lvl.max = lvl.mean
		}
		b.levels[scale] = lvl
	}
}

// DeleteUpTo collapses levels finer than s back out of the pyramid, freeing
// their backing arrays (spec.md §3 lifecycle: "...and may be collapsed back
// (deleteUpTo) when a scale switch promotes a coarser representation").
func (b *MultiResBlock) DeleteUpTo(s int) {
	for scale := 0; scale < s; scale++ {
		b.levels[scale] = level{}
	}
}

// ScaleSeedFunc builds a buffer pyramid level's backing records from the
// current level's when starting a scale switch (spec.md §4.3: "seed it from
// the current scale via down-copy if finer, or up-aggregate if coarser").
// fromEdge/from are the current level's edge and flat mean array, indexed
// x + y*fromEdge + z*fromEdge^2; toScale is the candidate scale. The
// returned toEdge/to describe the buffer's own flat mean array in the same
// indexing convention. Exported types only, so callers outside this package
// can implement the down-copy/up-aggregate math without needing the
// unexported level type.
type ScaleSeedFunc func(fromEdge int32, from []voxel.Record, toScale int) (toEdge int32, to []voxel.Record)

// BeginScaleSwitch starts a PendingSwitch at candidate scale s*, seeding the
// buffer via seed, per spec.md §4.3/§4.4.
func (b *MultiResBlock) BeginScaleSwitch(candidate int, seed ScaleSeedFunc) {
	if b.pending != nil && b.pending.candidate == candidate {
		return
	}
	cur := b.levels[b.currentScale]
	toEdge, to := seed(cur.edge, cur.mean, candidate)
	buf := level{edge: toEdge, mean: to}
	if b.occupancy {
		buf.min = to
		buf.max = to
	}
	b.pending = &pendingSwitch{candidate: candidate, buf: buf}
}

// ResetPendingSwitch discards the current PendingSwitch (spec.md §4.3: "If
// s* == last_scale, reset any pending buffer").
func (b *MultiResBlock) ResetPendingSwitch() { b.pending = nil }

// PendingScale returns the pending switch's candidate scale, if any.
func (b *MultiResBlock) PendingScale() (int, bool) {
	if b.pending == nil {
		return 0, false
	}
	return b.pending.candidate, true
}

// BufferEdge returns the pending buffer's edge length in voxels.
func (b *MultiResBlock) BufferEdge() int32 {
	if b.pending == nil {
		return 0
	}
	return b.pending.buf.edge
}

// BufferAt returns the mean voxel record at block-local coordinate (x,y,z)
// in the pending buffer.
func (b *MultiResBlock) BufferAt(x, y, z int) voxel.Record {
	lvl := &b.pending.buf
	return lvl.mean[lvl.index(x, y, z)]
}

// SetBufferAt stores the mean voxel record at block-local coordinate
// (x,y,z) in the pending buffer.
func (b *MultiResBlock) SetBufferAt(x, y, z int, rec voxel.Record) {
	lvl := &b.pending.buf
	lvl.mean[lvl.index(x, y, z)] = rec
}

// BufferMinAt and BufferMaxAt return the pending buffer's occupancy min/max
// aggregates at block-local coordinate (x,y,z).
func (b *MultiResBlock) BufferMinAt(x, y, z int) voxel.Record {
	lvl := &b.pending.buf
	return lvl.min[lvl.index(x, y, z)]
}

func (b *MultiResBlock) BufferMaxAt(x, y, z int) voxel.Record {
	lvl := &b.pending.buf
	return lvl.max[lvl.index(x, y, z)]
}

// SetBufferMinAt and SetBufferMaxAt store the pending buffer's occupancy
// min/max aggregates at block-local coordinate (x,y,z).
func (b *MultiResBlock) SetBufferMinAt(x, y, z int, rec voxel.Record) {
	lvl := &b.pending.buf
	lvl.unalias()
	lvl.min[lvl.index(x, y, z)] = rec
}

func (b *MultiResBlock) SetBufferMaxAt(x, y, z int, rec voxel.Record) {
	lvl := &b.pending.buf
	lvl.unalias()
	lvl.max[lvl.index(x, y, z)] = rec
}

// BufferObservedVolume returns how many voxels in the pending buffer have
// Observed set. ReadyToSwitch does not use it: its numerator is the
// observed counter kept by RecordBufferIntegration.
func (b *MultiResBlock) BufferObservedVolume() int {
	if b.pending == nil {
		return 0
	}
	return b.pending.buf.ObservedVolume()
}

// RecordBufferIntegration increments the buffer's integration/observed
// counters (spec.md §4.3's 20-integration / 90%-observed thresholds).
func (b *MultiResBlock) RecordBufferIntegration(newlyObserved bool) {
	if b.pending == nil {
		return
	}
	b.pending.integrCount++
	if newlyObserved {
		b.pending.observedCount++
	}
}

// ReadyToSwitch reports whether the pending buffer has accumulated enough
// observations to claim majority (spec.md §4.3).
func (b *MultiResBlock) ReadyToSwitch(currentObservedVolume int) bool {
	if b.pending == nil {
		return false
	}
	if b.pending.integrCount < scaleSwitchMinIntegrations {
		return false
	}
	if currentObservedVolume == 0 {
		return true
	}
	frac := float64(b.pending.observedCount) / float64(currentObservedVolume)
	return frac >= scaleSwitchObservedFraction
}

// CommitSwitch promotes the pending buffer to current, releasing (or
// adopting as a coarser cache) the old current level, and resets counters
// (invariant I7: "after switchData, buffer is released ... and counters
// reset").
func (b *MultiResBlock) CommitSwitch() {
	if b.pending == nil {
		return
	}
	oldScale := b.currentScale
	newScale := b.pending.candidate
	b.levels[newScale] = b.pending.buf
	b.currentScale = newScale
	if newScale > oldScale {
		// Coarser switch: drop the now-stale finer levels.
		for s := 0; s < newScale; s++ {
			b.levels[s] = level{}
		}
	}
	b.pending = nil
	b.currIntegrCount = 0
	b.currObservedCount = 0
}

// State reports this block's position in the scale-switch state machine.
func (b *MultiResBlock) State() ScaleState {
	st := ScaleState{Current: b.currentScale}
	if b.pending != nil {
		st.Pending = true
		st.Candidate = b.pending.candidate
		st.IntegrCount = b.pending.integrCount
		st.ObservedCount = b.pending.observedCount
	}
	return st
}

// CurrentCounts returns the current level's accumulated integration and
// observed-voxel counts.
func (b *MultiResBlock) CurrentCounts() (integr, observed int) {
	return b.currIntegrCount, b.currObservedCount
}

// RecordCurrentIntegration increments the current level's counters.
func (b *MultiResBlock) RecordCurrentIntegration(newlyObserved bool) {
	b.currIntegrCount++
	if newlyObserved {
		b.currObservedCount++
	}
}

// ObservedVolume returns how many voxels at the given scale have Observed
// set, used as the denominator for ReadyToSwitch's 90% threshold.
func (lvl level) ObservedVolume() int {
	n := 0
	for _, r := range lvl.mean {
		if r.Observed {
			n++
		}
	}
	return n
}

// PastSnapshot returns the snapshot last stored by SetPastSnapshot, or nil.
// No propagator reads it.
func (b *MultiResBlock) PastSnapshot() []voxel.Record { return b.past }

// SetPastSnapshot stores snap as the block's "past" snapshot. CommitSwitch
// does not call it, so a scale switch leaves the snapshot unchanged.
func (b *MultiResBlock) SetPastSnapshot(snap []voxel.Record) { b.past = snap }
