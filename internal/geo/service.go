package geo

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/common/metrics"
	"dossier-workers/internal/models"
)

// MapSpec describes how one purpose is rendered: which layer and how many
// metres the square box spans.
type MapSpec struct {
	Purpose    models.MapPurpose
	Layer      Layer
	SizeMeters float64
}

var DefaultSpecs = []MapSpec{
	{Purpose: models.MapWide, Layer: LayerPlan, SizeMeters: 2500},
	{Purpose: models.MapCadastral, Layer: LayerCadastre, SizeMeters: 150},
	{Purpose: models.MapClose, Layer: LayerOrthophoto, SizeMeters: 150},
	{Purpose: models.MapSite, Layer: LayerOrthophoto, SizeMeters: 100},
}

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

// MapService fetches the four plot maps for an address.
type MapService struct {
	geocoder *Geocoder
	wms      *WMSClient
	cache    redis.Cmdable
	config   Config
	log      logger.Logger
}

// NewMapService builds the service. cache may be nil.
func NewMapService(geocoder *Geocoder, wms *WMSClient, cache redis.Cmdable, config Config, log logger.Logger) *MapService {
	return &MapService{
		geocoder: geocoder,
		wms:      wms,
		cache:    cache,
		config:   config,
		log:      log.WithFields(map[string]interface{}{"component": "map-service"}),
	}
}

// Fetch geocodes the address and downloads every map in parallel under one
// timeout. It returns once all fetches finished. A purpose whose fetch failed
// is absent from the set; an unknown address yields an empty set with
// NotFound. The error is non-nil only when geocoding itself failed.
func (s *MapService) Fetch(ctx context.Context, address, city string) (*models.MapSet, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	set := &models.MapSet{Images: map[models.MapPurpose]models.MapImage{}, Address: address}

	point, err := s.locate(ctx, address, city)
	if errors.Is(err, ErrAddressNotFound) {
		s.log.Warn("Address not found", map[string]interface{}{"address": address, "city": city})
		set.NotFound = true
		return set, nil
	}
	if err != nil {
		return set, err
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	key := cacheKey(address, city)
	for _, spec := range DefaultSpecs {
		spec := spec
		g.Go(func() error {
			img, err := s.fetchOne(ctx, spec, point, key)
			if err != nil {
				s.log.Warn("Map fetch failed", map[string]interface{}{
					"purpose": string(spec.Purpose),
					"error":   err.Error(),
				})
				return nil
			}
			mu.Lock()
			set.Images[spec.Purpose] = img
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("Maps fetched", map[string]interface{}{
		"available": set.Available(),
		"requested": len(DefaultSpecs),
	})
	return set, nil
}

// PreviewURLs returns the GetMap URL of each purpose without downloading.
func (s *MapService) PreviewURLs(ctx context.Context, address, city string) (map[models.MapPurpose]string, error) {
	point, err := s.locate(ctx, address, city)
	if err != nil {
		return nil, err
	}
	urls := make(map[models.MapPurpose]string, len(DefaultSpecs))
	for _, spec := range DefaultSpecs {
		urls[spec.Purpose] = s.wms.MapURL(spec.Layer, BBoxAround(point, spec.SizeMeters))
	}
	return urls, nil
}

func (s *MapService) locate(ctx context.Context, address, city string) (Point, error) {
	key := "geo:point:" + cacheKey(address, city)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var p Point
			if json.Unmarshal(raw, &p) == nil {
				return p, nil
			}
		}
	}

	p, err := s.geocoder.Geocode(ctx, address, city)
	if err != nil {
		return Point{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.config.CacheTTL).Err(); err != nil {
				s.log.Debug("Point cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return p, nil
}

func (s *MapService) fetchOne(ctx context.Context, spec MapSpec, point Point, key string) (models.MapImage, error) {
	cacheKey := "geo:map:" + string(spec.Purpose) + ":" + key
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var img models.MapImage
			if json.Unmarshal(raw, &img) == nil && len(img.Data) > 0 {
				return img, nil
			}
		}
	}

	start := time.Now()
	img, err := s.wms.GetMap(ctx, spec.Layer, BBoxAround(point, spec.SizeMeters))
	metrics.MapFetchDuration.WithLabelValues(string(spec.Purpose)).Observe(time.Since(start).Seconds())
	if err != nil {
		return models.MapImage{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(img); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.config.CacheTTL).Err(); err != nil {
				s.log.Debug("Map cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return img, nil
}

func cacheKey(address, city string) string {
	norm := strings.ToLower(strings.TrimSpace(address)) + "|" + strings.ToLower(strings.TrimSpace(city))
	sum := sha1.Sum([]byte(norm))
	return hex.EncodeToString(sum[:])
}
