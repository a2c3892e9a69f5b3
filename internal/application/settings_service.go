package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// SettingsStore captures the persistence interactions for global settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (persistence.Setting, error)
	UpsertSetting(ctx context.Context, setting persistence.Setting) error
	ListSettings(ctx context.Context) ([]persistence.Setting, error)
}

// publicSettingKeys are the settings exposed without authentication.
var publicSettingKeys = []string{SettingKeyMinBookingNotice}

// SettingsService manages global key/value configuration.
type SettingsService struct {
	settings SettingsStore
	now      func() time.Time
	logger   *slog.Logger
}

// NewSettingsService wires dependencies for settings management.
func NewSettingsService(settings SettingsStore, now func() time.Time) *SettingsService {
	return NewSettingsServiceWithLogger(settings, now, nil)
}

// NewSettingsServiceWithLogger wires dependencies with an explicit base logger.
func NewSettingsServiceWithLogger(settings SettingsStore, now func() time.Time, logger *slog.Logger) *SettingsService {
	if now == nil {
		now = time.Now
	}
	return &SettingsService{
		settings: settings,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// ListSettings returns every stored setting.
func (s *SettingsService) ListSettings(ctx context.Context, principal Principal) ([]persistence.Setting, error) {
	if s == nil {
		return nil, fmt.Errorf("SettingsService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	settings, err := s.settings.ListSettings(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return settings, nil
}

// UpsertSetting stores or replaces a setting value.
func (s *SettingsService) UpsertSetting(ctx context.Context, principal Principal, key, value string) (persistence.Setting, error) {
	if s == nil {
		return persistence.Setting{}, fmt.Errorf("SettingsService is nil")
	}
	if !principal.IsAdmin {
		return persistence.Setting{}, ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "settings", "upsert", "key", key)

	vErr := &ValidationError{}
	if strings.TrimSpace(key) == "" {
		vErr.add("key", "key is required")
	}
	if vErr.HasErrors() {
		return persistence.Setting{}, vErr
	}

	setting := persistence.Setting{
		Key:       strings.TrimSpace(key),
		Value:     value,
		UpdatedAt: s.now(),
	}
	if err := s.settings.UpsertSetting(ctx, setting); err != nil {
		return persistence.Setting{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "setting stored")
	return setting, nil
}

// PublicSettings returns the subset of settings safe to serve without
// authentication. Missing keys are simply absent.
func (s *SettingsService) PublicSettings(ctx context.Context) (map[string]string, error) {
	if s == nil {
		return nil, fmt.Errorf("SettingsService is nil")
	}

	out := make(map[string]string, len(publicSettingKeys))
	for _, key := range publicSettingKeys {
		setting, err := s.settings.GetSetting(ctx, key)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, mapRepoError(err)
		}
		out[setting.Key] = setting.Value
	}
	return out, nil
}
