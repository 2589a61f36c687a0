// Package geo locates an address and fetches the north-up map rasters of the
// plot from an OGC WMS 1.3.0 endpoint.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	httpclient "dossier-workers/internal/common/http"
)

var (
	ErrAddressNotFound = errors.New("GEOCODE_NOT_FOUND")
	ErrMapFetchFailed  = errors.New("MAP_FETCH_FAILED")
)

const maxGeocodeResponse = 1 << 20

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder queries a Nominatim-compatible search endpoint.
type Geocoder struct {
	http    *httpclient.Client
	baseURL string
}

func NewGeocoder(client *httpclient.Client, baseURL string) *Geocoder {
	return &Geocoder{http: client, baseURL: baseURL}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves "address, city, France" to the first match.
func (g *Geocoder) Geocode(ctx context.Context, address, city string) (Point, error) {
	if strings.TrimSpace(address) == "" || strings.TrimSpace(city) == "" {
		return Point{}, ErrAddressNotFound
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", fmt.Sprintf("%s, %s, France", address, city))

	body, _, err := g.http.Get(ctx, g.baseURL+"?"+q.Encode(), map[string]string{"Accept-Language": "fr"}, maxGeocodeResponse)
	if err != nil {
		return Point{}, fmt.Errorf("%w: geocode: %v", ErrMapFetchFailed, err)
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Point{}, fmt.Errorf("%w: geocode response: %v", ErrMapFetchFailed, err)
	}
	if len(results) == 0 {
		return Point{}, ErrAddressNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q", ErrMapFetchFailed, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q", ErrMapFetchFailed, results[0].Lon)
	}
	return Point{Lat: lat, Lon: lon}, nil
}
