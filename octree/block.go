package octree

import "go.viam.com/volumap/voxel"

// Block is the leaf octant interface, satisfied by SingleResBlock and
// MultiResBlock (spec.md §3). Which implementation a Tree uses is selected
// once, at construction, by voxel.Config.Resolution.
type Block interface {
	Octant
	// At returns the voxel record at block-local coordinate (x,y,z), each
	// in [0, edge), at the block's current scale (a SingleResBlock has
	// only one).
	At(x, y, z int) voxel.Record
	// Set stores the voxel record at block-local coordinate (x,y,z) at the
	// block's current scale.
	Set(x, y, z int, rec voxel.Record)
	// Touch stamps this block with the current frame id.
	Touch(ts uint64)
}

// SingleResBlock is a leaf octant holding one flat B^3 array of voxel
// records, indexed x + y*B + z*B^2 (spec.md §3 "Single-res block").
// Grounded on go.viam.com/rdk/octree/basic.go's basicOctreeNode leaf case,
// generalized from "one point" to "a dense B^3 grid."
type SingleResBlock struct {
	octantHeader
	voxels []voxel.Record
}

func newSingleResBlock(minCorner [3]int32, edge int32, seed voxel.Record) *SingleResBlock {
	b := &SingleResBlock{
		octantHeader: octantHeader{minCorner: minCorner, edge: edge},
	}
	n := int(edge)
	b.voxels = make([]voxel.Record, n*n*n)
	for i := range b.voxels {
		b.voxels[i] = seed
	}
	return b
}

// IsBlock always returns true for a SingleResBlock.
func (b *SingleResBlock) IsBlock() bool { return true }

func (b *SingleResBlock) index(x, y, z int) int {
	edge := int(b.edge)
	return x + y*edge + z*edge*edge
}

// At returns the voxel record at block-local coordinate (x,y,z).
func (b *SingleResBlock) At(x, y, z int) voxel.Record {
	return b.voxels[b.index(x, y, z)]
}

// Set stores the voxel record at block-local coordinate (x,y,z).
func (b *SingleResBlock) Set(x, y, z int, rec voxel.Record) {
	b.voxels[b.index(x, y, z)] = rec
}

// Voxels returns the block's flat B^3 backing array for bulk iteration
// (e.g. by the mesher).
func (b *SingleResBlock) Voxels() []voxel.Record { return b.voxels }
