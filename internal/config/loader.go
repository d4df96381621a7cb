package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr             string `json:"addr" yaml:"addr" toml:"addr"`
	CacheDir         string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	OutputDir        string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	ModelName        string `json:"model_name" yaml:"model_name" toml:"model_name"`
	EngineBin        string `json:"engine_bin" yaml:"engine_bin" toml:"engine_bin"`
	DevicePreference string `json:"device_preference" yaml:"device_preference" toml:"device_preference"`
	LoadTimeoutSec   int    `json:"load_timeout_sec" yaml:"load_timeout_sec" toml:"load_timeout_sec"`
	MaxUploadMB      int    `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`
	TesseractLangs   string `json:"tesseract_langs" yaml:"tesseract_langs" toml:"tesseract_langs"`
	EdgeTTSBin       string `json:"edge_tts_bin" yaml:"edge_tts_bin" toml:"edge_tts_bin"`
	CoquiTTSBin      string `json:"coqui_tts_bin" yaml:"coqui_tts_bin" toml:"coqui_tts_bin"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
