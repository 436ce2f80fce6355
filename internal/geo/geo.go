package geo

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle math
	EarthRadiusKm = 6371.0

	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Coordinate is a geographic position in decimal degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is a lat/lon rectangle (lamin/lomin/lamax/lomax ordering)
type BoundingBox struct {
	LatMin float64
	LonMin float64
	LatMax float64
	LonMax float64
}

// HaversineKm returns the great-circle distance between two coordinates in km
func HaversineKm(a, b Coordinate) float64 {
	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceToSegmentKm returns the minimum distance in km from point p to the
// segment from a to b. The projection parameter is clamped to [0,1] so the
// closest point always lies on the segment. A degenerate segment (a == b)
// falls back to point-to-point distance.
//
// The projection uses a local equirectangular approximation around the
// segment, which is accurate enough at the distances involved here
// (observation correlation within a few hundred km).
func DistanceToSegmentKm(p, a, b Coordinate) float64 {
	// Scale longitude by cos(lat) so degrees are locally comparable
	cosLat := math.Cos(a.Lat * degToRad)

	ax, ay := a.Lon*cosLat, a.Lat
	bx, by := b.Lon*cosLat, b.Lat
	px, py := p.Lon*cosLat, p.Lat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return HaversineKm(p, a)
	}

	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Coordinate{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return HaversineKm(p, closest)
}

// Interpolate returns the point at fraction t along the straight line (in
// lat/lon space) from a to b. t=0 yields a, t=1 yields b.
func Interpolate(a, b Coordinate, t float64) Coordinate {
	return Coordinate{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
}

// InitialBearing returns the initial great-circle bearing from a to b in
// degrees true, normalized to [0, 360)
func InitialBearing(a, b Coordinate) float64 {
	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad
	dLon := (b.Lon - a.Lon) * degToRad

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	bearing := math.Atan2(y, x) * radToDeg
	if bearing < 0 {
		bearing += 360
	}
	return bearing
}

// Bounds returns the bounding box containing all points, padded outward by
// padKm on every side.
func Bounds(points []Coordinate, padKm float64) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}

	box := BoundingBox{
		LatMin: points[0].Lat, LatMax: points[0].Lat,
		LonMin: points[0].Lon, LonMax: points[0].Lon,
	}
	for _, p := range points[1:] {
		box.LatMin = math.Min(box.LatMin, p.Lat)
		box.LatMax = math.Max(box.LatMax, p.Lat)
		box.LonMin = math.Min(box.LonMin, p.Lon)
		box.LonMax = math.Max(box.LonMax, p.Lon)
	}

	latPad := padKm / 111.0 // ~111 km per degree of latitude
	midLat := (box.LatMin + box.LatMax) / 2
	cosLat := math.Cos(midLat * degToRad)
	if math.Abs(cosLat) < 0.01 {
		cosLat = 0.01
	}
	lonPad := padKm / (111.0 * cosLat)

	box.LatMin = math.Max(box.LatMin-latPad, -90)
	box.LatMax = math.Min(box.LatMax+latPad, 90)
	box.LonMin = math.Max(box.LonMin-lonPad, -180)
	box.LonMax = math.Min(box.LonMax+lonPad, 180)
	return box
}

// MagneticVariation returns the magnetic declination in degrees (+East,
// -West) for a position, altitude and date. Returns 0 if the model
// calculation fails.
func MagneticVariation(c Coordinate, altFt float64, date time.Time) float64 {
	altM := altFt * 0.3048
	loc := egm96.NewLocationGeodetic(c.Lat, c.Lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}
	return mag.D()
}

// MagneticCourse returns the initial magnetic course from a to b at the
// given altitude and date, normalized to [0, 360)
func MagneticCourse(a, b Coordinate, altFt float64, date time.Time) float64 {
	course := InitialBearing(a, b) - MagneticVariation(a, altFt, date)
	for course < 0 {
		course += 360
	}
	for course >= 360 {
		course -= 360
	}
	return course
}
