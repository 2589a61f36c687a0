package geo

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	httpclient "dossier-workers/internal/common/http"
	"dossier-workers/internal/models"
)

const (
	metersPerDegree = 111320.0
	maxMapResponse  = 16 << 20
)

// BBox is a WGS84 box in EPSG:4326 axis order (lat, lon).
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// BBoxAround returns the square of side sizeMeters centred on p.
func BBoxAround(p Point, sizeMeters float64) BBox {
	latDiff := (sizeMeters / 2) / metersPerDegree
	lonDiff := (sizeMeters / 2) / (metersPerDegree * math.Cos(p.Lat*math.Pi/180))
	return BBox{
		MinLat: p.Lat - latDiff,
		MinLon: p.Lon - lonDiff,
		MaxLat: p.Lat + latDiff,
		MaxLon: p.Lon + lonDiff,
	}
}

func (b BBox) String() string {
	parts := []float64{b.MinLat, b.MinLon, b.MaxLat, b.MaxLon}
	out := make([]string, len(parts))
	for i, v := range parts {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(out, ",")
}

// Layer names a WMS layer and the raster format requested for it.
type Layer struct {
	Name   string
	Format string
}

var (
	LayerPlan       = Layer{Name: "GEOGRAPHICALGRIDSYSTEMS.PLANIGNV2", Format: "image/jpeg"}
	LayerCadastre   = Layer{Name: "CADASTRALPARCELS.PARCELLAIRE_EXPRESS", Format: "image/png"}
	LayerOrthophoto = Layer{Name: "ORTHOIMAGERY.ORTHOPHOTOS", Format: "image/jpeg"}
)

// WMSClient issues GetMap requests.
type WMSClient struct {
	http    *httpclient.Client
	baseURL string
	width   int
	height  int
}

func NewWMSClient(client *httpclient.Client, baseURL string, width, height int) *WMSClient {
	return &WMSClient{http: client, baseURL: baseURL, width: width, height: height}
}

// MapURL builds the GetMap URL for a layer and box.
func (w *WMSClient) MapURL(layer Layer, box BBox) string {
	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.3.0")
	q.Set("REQUEST", "GetMap")
	q.Set("BBOX", box.String())
	q.Set("CRS", "EPSG:4326")
	q.Set("WIDTH", strconv.Itoa(w.width))
	q.Set("HEIGHT", strconv.Itoa(w.height))
	q.Set("LAYERS", layer.Name)
	q.Set("STYLES", "")
	q.Set("FORMAT", layer.Format)
	return w.baseURL + "?" + q.Encode()
}

// GetMap fetches one raster. A ServiceException document answered with a
// 200 status counts as a failure.
func (w *WMSClient) GetMap(ctx context.Context, layer Layer, box BBox) (models.MapImage, error) {
	body, contentType, err := w.http.Get(ctx, w.MapURL(layer, box), nil, maxMapResponse)
	if err != nil {
		return models.MapImage{}, fmt.Errorf("%w: %s: %v", ErrMapFetchFailed, layer.Name, err)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return models.MapImage{}, fmt.Errorf("%w: %s: unexpected content type %q", ErrMapFetchFailed, layer.Name, contentType)
	}
	if len(body) == 0 {
		return models.MapImage{}, fmt.Errorf("%w: %s: empty body", ErrMapFetchFailed, layer.Name)
	}
	return models.MapImage{Data: body, ContentType: contentType, Layer: layer.Name}, nil
}
