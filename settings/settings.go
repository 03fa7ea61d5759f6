package settings

import (
	"os"
	"path/filepath"

	"github.com/LdDl/plate-passages/plates"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// File is the on-disk form of camera settings that survive restarts
type File struct {
	Rotation       string `yaml:"rotation,omitempty"`
	StreamDuration int    `yaml:"stream_duration,omitempty"`
}

// Load applies settings stored at path on top of base.
// A missing file is not an error: base is returned as is.
func Load(path string, base plates.Config, logger zerolog.Logger) (plates.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("path", path).Msg("settings file not found, using defaults")
		return base, nil
	}
	if err != nil {
		return base, errors.Wrapf(err, "can't read settings %q", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, errors.Wrapf(err, "can't parse settings %q", path)
	}
	cfg := base
	if f.Rotation != "" {
		if cfg, err = cfg.WithRotation(f.Rotation); err != nil {
			return base, errors.Wrapf(err, "settings %q", path)
		}
	}
	if f.StreamDuration != 0 {
		if cfg, err = cfg.WithStreamDuration(f.StreamDuration); err != nil {
			return base, errors.Wrapf(err, "settings %q", path)
		}
	}
	logger.Info().Str("path", path).Str("rotation", string(cfg.Rotation)).Int("stream_duration", cfg.StreamDuration).Msg("settings loaded")
	return cfg, nil
}

// Save writes persisted part of cfg to path. The file is replaced atomically
func Save(path string, cfg plates.Config) error {
	data, err := yaml.Marshal(File{
		Rotation:       string(cfg.Rotation),
		StreamDuration: cfg.StreamDuration,
	})
	if err != nil {
		return errors.Wrap(err, "can't encode settings")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "can't create %q", dir)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return errors.Wrap(err, "can't create temporary settings file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "can't write settings")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "can't write settings")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "can't save settings to %q", path)
}
