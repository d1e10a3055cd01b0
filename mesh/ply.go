package mesh

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WritePLY writes tris as a binary-little-endian PLY mesh, one vertex per
// triangle corner (no shared-vertex indexing) plus a per-face int scale
// property, so a viewer can colour faces by the pyramid level they were
// extracted from.
//
// Grounded on pointcloud_file.go's ToPCD/writePCDData: a text header written
// with fmt.Fprintf followed by a raw binary body written with
// binary.LittleEndian, generalized from points to triangles.
func WritePLY(out io.Writer, tris []Triangle) error {
	nVerts := len(tris) * 3
	nFaces := len(tris)

	if _, err := fmt.Fprintf(out,
		"ply\n"+
			"format binary_little_endian 1.0\n"+
			"element vertex %d\n"+
			"property float x\n"+
			"property float y\n"+
			"property float z\n"+
			"element face %d\n"+
			"property list uchar int vertex_indices\n"+
			"property int scale\n"+
			"end_header\n",
		nVerts, nFaces); err != nil {
		return err
	}

	vertBuf := make([]byte, 12)
	for _, tri := range tris {
		for _, v := range tri.V {
			binary.LittleEndian.PutUint32(vertBuf[0:4], math.Float32bits(float32(v.X)))
			binary.LittleEndian.PutUint32(vertBuf[4:8], math.Float32bits(float32(v.Y)))
			binary.LittleEndian.PutUint32(vertBuf[8:12], math.Float32bits(float32(v.Z)))
			if _, err := out.Write(vertBuf); err != nil {
				return err
			}
		}
	}

	faceBuf := make([]byte, 1+4*3+4)
	for i, tri := range tris {
		base := uint32(i * 3)
		faceBuf[0] = 3
		binary.LittleEndian.PutUint32(faceBuf[1:5], base)
		binary.LittleEndian.PutUint32(faceBuf[5:9], base+1)
		binary.LittleEndian.PutUint32(faceBuf[9:13], base+2)
		binary.LittleEndian.PutUint32(faceBuf[13:17], uint32(tri.Scale))
		if _, err := out.Write(faceBuf); err != nil {
			return err
		}
	}
	return nil
}
