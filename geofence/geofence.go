// Package geofence produces the coordinates reported with a clock request.
package geofence

import (
	"math"
	"math/rand"
	"strconv"
)

// Digits is the number of fractional digits kept in every coordinate.
const Digits = 6

// Box is a latitude/longitude bounding box.
type Box struct {
	MinLatitude  float64 `yaml:"min_latitude"`
	MaxLatitude  float64 `yaml:"max_latitude"`
	MinLongitude float64 `yaml:"min_longitude"`
	MaxLongitude float64 `yaml:"max_longitude"`
}

// OrOffice returns the box or the Office box when the box is the zero value.
func (b Box) OrOffice() Box {
	if b == (Box{}) {
		return Office
	}
	return b
}

// Office is the box the portal distance check accepts.
var Office = Box{
	MinLatitude:  25.080149,
	MaxLatitude:  25.081812,
	MinLongitude: 121.564843,
	MaxLongitude: 121.565335,
}

// Coordinate is a point truncated to Digits fractional digits.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Lat formats the latitude with exactly Digits fractional digits.
func (c Coordinate) Lat() string {
	return strconv.FormatFloat(c.Latitude, 'f', Digits, 64)
}

// Lng formats the longitude with exactly Digits fractional digits.
func (c Coordinate) Lng() string {
	return strconv.FormatFloat(c.Longitude, 'f', Digits, 64)
}

// Fields returns the latitude and longitude form values.
func (c Coordinate) Fields() (lat, lng string) {
	return c.Lat(), c.Lng()
}

// Random samples a point uniformly inside the box. A nil rnd uses the global source.
func (b Box) Random(rnd *rand.Rand) Coordinate {
	next := rand.Float64
	if rnd != nil {
		next = rnd.Float64
	}
	return Coordinate{
		Latitude:  Truncate(b.MinLatitude+next()*(b.MaxLatitude-b.MinLatitude), Digits),
		Longitude: Truncate(b.MinLongitude+next()*(b.MaxLongitude-b.MinLongitude), Digits),
	}
}

// Contains reports whether c lies inside the box, bounds included.
func (b Box) Contains(c Coordinate) bool {
	return c.Latitude >= b.MinLatitude && c.Latitude <= b.MaxLatitude &&
		c.Longitude >= b.MinLongitude && c.Longitude <= b.MaxLongitude
}

// Truncate drops every fractional digit after digits, it never rounds.
// 25.0812345678 truncated to 6 digits is 25.081234.
// It works on the shortest decimal representation of v so 25.081234 stays 25.081234.
func Truncate(v float64, digits int) float64 {
	p := math.Pow10(digits)
	s := strconv.FormatFloat(v, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] != '.' {
			continue
		}
		if len(s)-i-1 > digits {
			s = s[:i+1+digits]
		}
		t, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.Trunc(v*p) / p
		}
		return t
	}
	return v
}
