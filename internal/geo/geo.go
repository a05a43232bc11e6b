package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/featurex/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Positions are planar. Replays recorded in lon/lat (EPSG:4326) are projected
// to web mercator metres (EPSG:3857) before any distance is measured.

// SRIDs understood by Project.
const (
	SRIDPlanar = 0
	SRID4326   = 4326
	SRID3857   = 3857
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParsePosition parses a string in the format "x,y" or "x,y,elev". The
// elevation is nil when the string carries only two components.
func ParsePosition(coords string) (core.Position2D, *float64, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Position2D{}, nil, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Position2D{}, nil, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Position2D{}, nil, ErrInvalidCoordinates
	}
	if len(parts) == 2 {
		return core.Position2D{X: x, Y: y}, nil, nil
	}
	elev, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return core.Position2D{}, nil, ErrInvalidCoordinates
	}
	return core.Position2D{X: x, Y: y}, &elev, nil
}

// Project converts a position recorded in srid to planar metres.
// Planar and EPSG:3857 positions are returned unchanged.
func Project(srid int, p core.Position2D) (core.Position2D, error) {
	switch srid {
	case SRIDPlanar, SRID3857:
		return p, nil
	case SRID4326:
		f := wgs84.EPSG().Transform(SRID4326, SRID3857)
		x, y, _ := f(p.X, p.Y, 0)
		return core.Position2D{X: x, Y: y}, nil
	default:
		return core.Position2D{}, ErrInvalidCoordinates
	}
}

// XY converts a position to a simplefeatures vector.
func XY(p core.Position2D) geom.XY {
	return geom.XY{X: p.X, Y: p.Y}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b geom.XY) float64 {
	return a.Sub(b).Length()
}

// Centroid returns the mean of the given points. ok is false for no points.
func Centroid(points []geom.XY) (c geom.XY, ok bool) {
	if len(points) == 0 {
		return geom.XY{}, false
	}
	for _, p := range points {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(points))), true
}

// Angle returns the unsigned angle in [0, pi] between vectors u and v.
// It is NaN when either vector has zero length.
func Angle(u, v geom.XY) float64 {
	if u.Length() == 0 || v.Length() == 0 {
		return math.NaN()
	}
	return math.Abs(math.Atan2(u.Cross(v), u.Dot(v)))
}

// MinDistance returns the smallest distance between any point of a and any
// point of b. ok is false when either set is empty.
func MinDistance(a, b []geom.XY) (float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return math.NaN(), false
	}
	minDist := math.Inf(1)
	for _, p := range a {
		for _, q := range b {
			if d := Distance(p, q); d < minDist {
				minDist = d
			}
		}
	}
	return minDist, true
}

// MeanPairwiseDistance returns the average distance over all unordered pairs
// of points. ok is false for fewer than two points.
func MeanPairwiseDistance(points []geom.XY) (float64, bool) {
	n := len(points)
	if n < 2 {
		return math.NaN(), false
	}
	var sum float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += Distance(points[i], points[j])
		}
	}
	return sum / float64(n*(n-1)/2), true
}

// IsBetween reports whether p lies within maxAngle radians of the direction
// from a to b and projects strictly inside the segment a-b.
func IsBetween(p, a, b geom.XY, maxAngle float64) bool {
	ab := b.Sub(a)
	ap := p.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return false
	}
	t := ap.Dot(ab) / lenSq
	if t <= 0 || t >= 1 {
		return false
	}
	angle := Angle(ap, ab)
	return !math.IsNaN(angle) && angle < maxAngle
}

// Clip01 restricts v to [0, 1]. NaN is returned unchanged.
func Clip01(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(0, math.Min(1, v))
}
