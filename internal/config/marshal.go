package config

import "gopkg.in/yaml.v3"

// Marshal renders cfg as ce.yaml. yaml.v3 writes durations as strings like
// "5s", which viper decodes back into the same value.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
