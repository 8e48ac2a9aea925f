package domain

import (
	"math"
	"net/url"
	"strconv"
)

const earthRadiusKm = 6371.0

// Rectangle is a latitude/longitude box in degrees.
type Rectangle struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// Circle is an epicentral ring in degrees around a center point.
type Circle struct {
	Latitude  float64
	Longitude float64
	MinRadius float64
	MaxRadius float64
}

// Region is the geographic selection of stations. Either shape may be nil;
// with neither the selection is global.
type Region struct {
	Rectangle *Rectangle
	Circle    *Circle
}

// QueryParams adds the region to an FDSN station query. Only one shape can
// be sent, so the rectangle wins and the circle is applied by Contains.
func (r Region) QueryParams(v url.Values) {
	switch {
	case r.Rectangle != nil:
		v.Set("minlatitude", formatDeg(r.Rectangle.MinLatitude))
		v.Set("maxlatitude", formatDeg(r.Rectangle.MaxLatitude))
		v.Set("minlongitude", formatDeg(r.Rectangle.MinLongitude))
		v.Set("maxlongitude", formatDeg(r.Rectangle.MaxLongitude))
	case r.Circle != nil:
		v.Set("latitude", formatDeg(r.Circle.Latitude))
		v.Set("longitude", formatDeg(r.Circle.Longitude))
		v.Set("minradius", formatDeg(r.Circle.MinRadius))
		v.Set("maxradius", formatDeg(r.Circle.MaxRadius))
	}
}

// Contains refines a service result when both shapes are set.
func (r Region) Contains(lat, lon float64) bool {
	if r.Rectangle == nil || r.Circle == nil {
		return true
	}
	d := Distance(r.Circle.Latitude, r.Circle.Longitude, lat, lon)
	return r.Circle.MinRadius <= d && d <= r.Circle.MaxRadius
}

// WithRing returns a copy of r whose circle is narrowed to [minRadius, maxRadius].
func (r Region) WithRing(minRadius, maxRadius float64) Region {
	if r.Circle == nil {
		return r
	}
	c := *r.Circle
	c.MinRadius, c.MaxRadius = minRadius, maxRadius
	r.Circle = &c
	return r
}

// Distance returns the great-circle distance in degrees between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	φ1, φ2 := radians(lat1), radians(lat2)
	dφ := φ2 - φ1
	dλ := radians(lon2 - lon1)
	h := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h))) * 180 / math.Pi
}

// DistanceMeters returns the great-circle distance in meters on a spherical earth.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return radians(Distance(lat1, lon1, lat2, lon2)) * earthRadiusKm * 1000
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func formatDeg(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
