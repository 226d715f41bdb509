package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Station mirrors one row of the station relation.
type Station struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Elevation float64
}

// Observation mirrors one row of the measurement relation. Date stays an
// ISO-8601 string; the store compares it lexicographically.
type Observation struct {
	Station       string
	Date          string
	Precipitation *float64
	Temperature   float64
}

type Precipitation struct {
	Date string `json:"date"`
	Prcp *Float `json:"prcp"`
}

type TemperatureObservation struct {
	Date string `json:"date"`
	Tobs *Float `json:"tobs"`
}

// TemperatureStats holds the aggregate route result. All three fields are
// nil when no observation matched.
type TemperatureStats struct {
	Min *Float `json:"min_temperature"`
	Avg *Float `json:"avg_temperature"`
	Max *Float `json:"max_temperature"`
}

// Float is a float64 that encodes like the reference JSON encoder the API
// was first published with: integral values keep a ".0" suffix and
// exponents use at least two digits.
type Float float64

func NewFloat(v float64) *Float {
	f := Float(v)
	return &f
}

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("unsupported float value: %v", v)
	}
	return []byte(FormatFloat(v)), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// FormatFloat renders v with the shortest round-trip digits, switching to
// exponent form when the decimal exponent is below -4 or at least 16.
func FormatFloat(v float64) string {
	if v == 0 {
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.LastIndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
