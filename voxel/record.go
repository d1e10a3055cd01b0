// Package voxel defines the per-voxel data records the octree stores: a
// truncated-signed-distance record for TSDF maps and a log-odds record for
// occupancy maps, plus the optional colour/ID payload both kinds may carry.
//
// Grounded on go.viam.com/rdk/pointcloud's Data interface (point.go): that
// interface's four-method color/value shape (HasColor/RGB255/HasValue/Value)
// is kept here, generalized from "one point's user payload" to "one voxel's
// TSDF-or-occupancy fields plus the same optional payload."
package voxel

import "image/color"

// Kind distinguishes the two field types a Tree can be configured to store.
type Kind uint8

const (
	// TSDF voxels hold a truncated signed distance in [-1, 1].
	TSDF Kind = iota
	// Occupancy voxels hold a log-odds value.
	Occupancy
)

func (k Kind) String() string {
	switch k {
	case TSDF:
		return "tsdf"
	case Occupancy:
		return "occupancy"
	default:
		return "unknown"
	}
}

// Record is a single voxel's data. Only the field matching Kind is
// meaningful; the struct is small enough (kept to one float32 field, a
// uint16 weight, an observed flag, optional color/id) that a tagged union costs nothing
// over an interface and avoids a heap allocation per voxel.
type Record struct {
	// Field holds sdf (TSDF) or log-odds (Occupancy), depending on the
	// owning block's Kind.
	Field float32
	// Weight is the fused observation count, saturating at MaxWeight.
	Weight uint16
	// Observed is true once at least one valid measurement has landed here.
	Observed bool

	hasColor bool
	c        color.NRGBA
	hasID    bool
	id       int32
}

// HasColor reports whether this voxel carries colour data.
func (r Record) HasColor() bool { return r.hasColor }

// RGB255 returns the voxel's colour components, valid only if HasColor.
func (r Record) RGB255() (uint8, uint8, uint8) { return r.c.R, r.c.G, r.c.B }

// Color returns the voxel's native colour.
func (r Record) Color() color.Color { return r.c }

// SetColor sets the voxel's colour and returns the updated record.
func (r Record) SetColor(c color.NRGBA) Record {
	r.c = c
	r.hasColor = true
	return r
}

// HasID reports whether this voxel carries an integer semantic/instance ID.
func (r Record) HasID() bool { return r.hasID }

// ID returns the voxel's integer ID, valid only if HasID.
func (r Record) ID() int32 { return r.id }

// SetID sets the voxel's integer ID and returns the updated record.
func (r Record) SetID(id int32) Record {
	r.id = id
	r.hasID = true
	return r
}

// Zero is the empty record for a never-observed voxel.
var Zero = Record{}
