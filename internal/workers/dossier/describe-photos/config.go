// internal/workers/dossier/describe-photos/config.go
package describephotos

import "time"

type Config struct {
	Timeout time.Duration
	// MaxPhotos caps the images sent to the model per job.
	MaxPhotos int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   150 * time.Second,
		MaxPhotos: 8,
	}
}
