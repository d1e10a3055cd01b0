package raycast

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/volumap/octree"
)

// CastTSDF implements spec.md §4.6's TSDF ray-cast: march the ray in
// step_large = B*res strides while the field is unobserved or outside the
// truncation band, switch to finer trilinear-interpolated steps once the
// field enters [-0.5, 0.1] approaching the surface from the positive side,
// and report the first sign change through zero.
//
// A sample with no observed data never counts toward a crossing: the
// previous-sample state is dropped instead of substituted with a
// synthetic zero, so a gap in coverage yields "no hit" rather than a
// spurious crossing (spec.md §8's REDESIGN FLAGS calls out the opposite
// behavior as a bug to avoid).
func CastTSDF(tree *octree.Tree, origin, dir r3.Vector) (Hit, bool) {
	cfg := tree.Config()
	box := tree.AABB()
	tMin, tMax, hit := box.ClipRay(origin, dir, 0, 1e9)
	if !hit {
		return Hit{}, false
	}

	stepLarge := float64(cfg.BlockEdge) * cfg.Res
	tau := cfg.Tau()
	step := stepLarge

	t := tMin
	var prevT float64
	var prevVal float32
	havePrev := false

	for t <= tMax {
		val, observed, scale, ok := Sample(tree, origin.Add(dir.Mul(t)))
		if !ok || !observed {
			havePrev = false
			step = stepLarge
			t += step
			continue
		}
		f := float64(val)

		if havePrev && prevVal > 0 && f <= 0 {
			crossT := interpolateZero(prevT, float64(prevVal), t, f)
			pW := origin.Add(dir.Mul(crossT))
			n, nok := Normal(tree, pW, cfg.Res)
			return Hit{Point: pW, Scale: scale, Normal: n, NormalOK: nok}, true
		}

		if f >= -0.5 && f <= 0.1 {
			step = math.Max(f*tau, cfg.Res)
			if step <= 0 {
				step = cfg.Res
			}
		} else {
			step = stepLarge
		}
		prevT, prevVal, havePrev = t, val, true
		t += step
	}
	return Hit{}, false
}

func interpolateZero(t0, v0, t1, v1 float64) float64 {
	if v1 == v0 {
		return t0
	}
	frac := -v0 / (v1 - v0)
	return t0 + frac*(t1-t0)
}
