// internal/workers/dossier/fill-cerfa-form/config.go
package fillcerfaform

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
