package geo

import "math"

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two lat/lon pairs.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BBox is a geographic bounding box in degrees.
type BBox struct {
	South float64
	North float64
	West  float64
	East  float64
}

// Pad grows the box by the given distance in kilometres on every side.
func (b BBox) Pad(km float64) BBox {
	latPad := km / 110.574
	midLat := (b.South + b.North) / 2 * math.Pi / 180
	lonPad := km / (111.320 * math.Cos(midLat))
	return BBox{
		South: b.South - latPad,
		North: b.North + latPad,
		West:  b.West - lonPad,
		East:  b.East + lonPad,
	}
}

// FromPoints computes the bounding box of a set of lat/lon points.
func FromPoints(lats, lons []float64) BBox {
	box := BBox{South: math.Inf(1), North: math.Inf(-1), West: math.Inf(1), East: math.Inf(-1)}
	for i := range lats {
		box.South = math.Min(box.South, lats[i])
		box.North = math.Max(box.North, lats[i])
		box.West = math.Min(box.West, lons[i])
		box.East = math.Max(box.East, lons[i])
	}
	return box
}
