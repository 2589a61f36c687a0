package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a measure typed by the wizard. Form inputs post their raw text,
// so a value may arrive as a JSON number, a numeric string ("850", "12,5"),
// an empty string or null. Anything that does not parse reads as 0.
type Number float64

func (n Number) Float() float64 { return float64(n) }

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number(parseLenient(b))
	return nil
}

// Count is the integer counterpart of Number. Fractions are rounded.
type Count int

func (c Count) Int() int { return int(c) }

func (c *Count) UnmarshalJSON(b []byte) error {
	*c = Count(math.Round(parseLenient(b)))
	return nil
}

func parseLenient(b []byte) float64 {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0
	}

	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return 0
		}
		raw = strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
		raw = strings.Replace(raw, ",", ".", 1)
	}
	if raw == "" {
		return 0
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
