package mesh

import (
	"go.viam.com/volumap/octree"
)

// MarchingCubes extracts a triangle mesh from a single-resolution block's
// B^3 voxel lattice (spec.md §4.7), marching over every unit cube formed by
// two adjacent lattice points along each axis and triangulating it via
// marching tetrahedra (tetra.go).
func MarchingCubes(block *octree.SingleResBlock, res float64) []Triangle {
	edge := int(block.Edge())
	mc := block.MinCorner()

	var tris []Triangle
	for x := 0; x < edge-1; x++ {
		for y := 0; y < edge-1; y++ {
			for z := 0; z < edge-1; z++ {
				var corners [8]cubeCorner
				for i, off := range cubeOffsets {
					cx, cy, cz := x+off[0], y+off[1], z+off[2]
					corners[i] = cubeCorner{
						pos: voxelWorld(mc, cx, cy, cz, res),
						rec: block.At(cx, cy, cz),
					}
				}
				tris = append(tris, marchCube(corners, 0)...)
			}
		}
	}
	return tris
}
