package service

import (
	"net/url"
	"strconv"

	"github.com/LdDl/plate-passages/plates"
	"github.com/LdDl/plate-passages/settings"
	"github.com/pkg/errors"
)

// Config returns current settings
func (s *Service) Config() plates.Config {
	return s.settings.Snapshot()
}

func (s *Service) Accuracy() int {
	return s.settings.Snapshot().Accuracy()
}

func (s *Service) UpdateAccuracy(percent int) (plates.Config, error) {
	cfg, err := s.settings.Update(func(cfg plates.Config) (plates.Config, error) {
		return cfg.WithAccuracy(percent)
	})
	if err == nil {
		s.logger.Info().Int("accuracy", percent).Float64("confidence", cfg.Confidence).Msg("accuracy updated")
	}
	return cfg, err
}

func (s *Service) FrameSkip() int {
	return s.settings.Snapshot().FrameSkip
}

func (s *Service) UpdateFrameSkip(n int) plates.Config {
	cfg, _ := s.settings.Update(func(cfg plates.Config) (plates.Config, error) {
		return cfg.WithFrameSkip(n), nil
	})
	s.logger.Info().Int("frame_skip", cfg.FrameSkip).Msg("frame skip updated")
	return cfg
}

func (s *Service) SessionTimeout() int {
	return s.settings.Snapshot().SessionTimeout
}

func (s *Service) UpdateSessionTimeout(n int) plates.Config {
	cfg, _ := s.settings.Update(func(cfg plates.Config) (plates.Config, error) {
		return cfg.WithSessionTimeout(n), nil
	})
	s.logger.Info().Int("session_timeout", cfg.SessionTimeout).Msg("session timeout updated")
	return cfg
}

func (s *Service) Rotation() plates.Rotation {
	return s.settings.Snapshot().Rotation
}

// UpdateRotation changes camera rotation and persists it
func (s *Service) UpdateRotation(value string) (plates.Config, error) {
	cfg, err := s.settings.Update(func(cfg plates.Config) (plates.Config, error) {
		return cfg.WithRotation(value)
	})
	if err != nil {
		return cfg, err
	}
	s.logger.Info().Str("rotation", string(cfg.Rotation)).Msg("rotation updated")
	s.persist(cfg)
	return cfg, nil
}

func (s *Service) StreamDuration() int {
	return s.settings.Snapshot().StreamDuration
}

// UpdateStreamDuration changes default stream run length and persists it
func (s *Service) UpdateStreamDuration(seconds int) (plates.Config, error) {
	cfg, err := s.settings.Update(func(cfg plates.Config) (plates.Config, error) {
		return cfg.WithStreamDuration(seconds)
	})
	if err != nil {
		return cfg, err
	}
	s.logger.Info().Int("stream_duration", cfg.StreamDuration).Msg("stream duration updated")
	s.persist(cfg)
	return cfg, nil
}

// persist saves settings. Failures are logged only: the new value is already in effect
func (s *Service) persist(cfg plates.Config) {
	if s.opts.SettingsPath == "" {
		return
	}
	if err := settings.Save(s.opts.SettingsPath, cfg); err != nil {
		s.logger.Error().Err(err).Str("path", s.opts.SettingsPath).Msg("can't save settings")
	}
}

// ParseCameraURL splits "rtsp://host/path?duration=30" into the bare url and the requested duration.
// Duration is zero when absent, unparsable or not positive.
func ParseCameraURL(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, errors.Wrap(ErrInvalidCameraURL, err.Error())
	}
	duration := 0
	if v := u.Query().Get("duration"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			duration = n
		}
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), duration, nil
}
