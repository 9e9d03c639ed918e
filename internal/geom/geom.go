// Package geom holds the small amount of 2D math the scanner needs on the
// ground plane: vectors and convex quads with an overlap test.
package geom

import "math"

// Vec2 is a point or direction on the ground plane (world X and Z).
type Vec2 struct {
	X, Z float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Z + o.Z} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Z - o.Z} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Z * s} }
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Z*o.Z }
func (v Vec2) Perp() Vec2 { return Vec2{v.Z, -v.X} }
func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Z - v.Z*o.X }

// Basis returns the two axes used by blocks and buildings at angle a:
// v1 = (cos a, sin a) * scale and v2 = (v1.Z, -v1.X).
func Basis(angle float64, scale float64) (v1, v2 Vec2) {
	v1 = Vec2{math.Cos(angle), math.Sin(angle)}.Scale(scale)
	return v1, v1.Perp()
}

// Quad2 is a convex quadrilateral with corners in winding order.
type Quad2 struct {
	A, B, C, D Vec2
}

// RectAround builds the quad c-h1-h2, c+h1-h2, c+h1+h2, c-h1+h2.
func RectAround(center, h1, h2 Vec2) Quad2 {
	return Quad2{
		A: center.Sub(h1).Sub(h2),
		B: center.Add(h1).Sub(h2),
		C: center.Add(h1).Add(h2),
		D: center.Sub(h1).Add(h2),
	}
}

func (q Quad2) corners() [4]Vec2 {
	return [4]Vec2{q.A, q.B, q.C, q.D}
}

// Intersect reports whether q and o overlap. Touching edges count.
func (q Quad2) Intersect(o Quad2) bool {
	qc, oc := q.corners(), o.corners()
	return !separated(qc, oc) && !separated(oc, qc)
}

// separated tests the edge normals of a as candidate separating axes.
func separated(a, b [4]Vec2) bool {
	for i := 0; i < 4; i++ {
		axis := a[(i+1)%4].Sub(a[i]).Perp()
		if axis.X == 0 && axis.Z == 0 {
			continue
		}
		minA, maxA := project(a, axis)
		minB, maxB := project(b, axis)
		if maxA < minB || maxB < minA {
			return true
		}
	}
	return false
}

func project(pts [4]Vec2, axis Vec2) (lo, hi float64) {
	lo = pts[0].Dot(axis)
	hi = lo
	for _, p := range pts[1:] {
		d := p.Dot(axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// Contains reports whether p lies inside q or on its boundary.
func (q Quad2) Contains(p Vec2) bool {
	c := q.corners()
	var pos, neg bool
	for i := 0; i < 4; i++ {
		cr := c[(i+1)%4].Sub(c[i]).Cross(p.Sub(c[i]))
		if cr > 0 {
			pos = true
		} else if cr < 0 {
			neg = true
		}
	}
	return !(pos && neg)
}
