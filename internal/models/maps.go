// internal/models/maps.go
package models

// MapPurpose keys the rasters returned by the map service.
type MapPurpose string

const (
	MapWide      MapPurpose = "wide"
	MapCadastral MapPurpose = "cadastral"
	MapClose     MapPurpose = "close"
	MapSite      MapPurpose = "site"
)

// AllMapPurposes lists purposes in quadrant order.
var AllMapPurposes = []MapPurpose{MapWide, MapCadastral, MapClose, MapSite}

// MapImage is one north-up raster.
type MapImage struct {
	Data        []byte `json:"data"`
	ContentType string `json:"contentType"`
	Layer       string `json:"layer,omitempty"`
}

// MapSet is the result of one map fetch. A nil or empty set means every map
// page falls back to its placeholder.
type MapSet struct {
	Images   map[MapPurpose]MapImage `json:"images,omitempty"`
	Address  string                  `json:"address,omitempty"`
	NotFound bool                    `json:"notFound,omitempty"`
}

// Get returns the image for a purpose, or false when absent or empty.
func (m *MapSet) Get(p MapPurpose) (MapImage, bool) {
	if m == nil || m.Images == nil {
		return MapImage{}, false
	}
	img, ok := m.Images[p]
	if !ok || len(img.Data) == 0 {
		return MapImage{}, false
	}
	return img, true
}

// Available counts purposes carrying image bytes.
func (m *MapSet) Available() int {
	n := 0
	for _, p := range AllMapPurposes {
		if _, ok := m.Get(p); ok {
			n++
		}
	}
	return n
}
