// internal/workers/dossier/generate-dossier-pdf/config.go
package generatedossierpdf

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
