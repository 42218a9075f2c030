package domain

import (
	"crypto/sha1" //nolint:gosec // content address, not a security boundary
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	cachePrecision  = 5
	outputPrecision = 6
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite and within range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// CacheComponents returns the 5-decimal rendering used for cache identity.
func (c Coordinate) CacheComponents() (string, string) {
	return FormatRounded(c.Lat, cachePrecision), FormatRounded(c.Lon, cachePrecision)
}

// LatLon returns the 6-decimal "lat,lon" output identity.
func (c Coordinate) LatLon() string {
	return FormatRounded(c.Lat, outputPrecision) + "," + FormatRounded(c.Lon, outputPrecision)
}

// FormatRounded rounds v to the given number of decimals (ties resolved on
// the exact binary value, half to even) and renders the result as the
// shortest round-tripping decimal. Integral results keep a ".0" suffix and
// magnitudes below 1e-4 use two-digit exponent form.
func FormatRounded(v float64, places int) string {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	return FormatDecimal(r)
}

// FormatDecimal renders v as the shortest round-tripping decimal in the same
// style as FormatRounded, without rounding.
func FormatDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	abs := math.Abs(v)
	if abs != 0 && abs < 1e-4 {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// CacheKey addresses one service's answer for one rounded coordinate.
type CacheKey struct {
	Service Service
	Coord   Coordinate
}

// NewCacheKey builds the cache key for a service and coordinate.
func NewCacheKey(service Service, coord Coordinate) CacheKey {
	return CacheKey{Service: service, Coord: coord}
}

// String returns the pre-digest form, e.g. "google:38.627,-90.1994".
func (k CacheKey) String() string {
	lat, lon := k.Coord.CacheComponents()
	return fmt.Sprintf("%s:%s,%s", k.Service, lat, lon)
}

// Digest returns the hex SHA-1 of the pre-digest form.
func (k CacheKey) Digest() string {
	sum := sha1.Sum([]byte(k.String())) //nolint:gosec // content address
	return hex.EncodeToString(sum[:])
}
