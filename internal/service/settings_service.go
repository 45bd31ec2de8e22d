package service

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"clearfocus/internal/repository"
)

const (
	KeyFocusCount = "daily_focus_count"
	KeyDirective  = "daily_directive"

	DefaultFocusCount = 3
	DefaultDirective  = "Focus on what matters. Ignore the noise."

	maxSettingKeyLen  = 64
	maxDirectiveRunes = 500
)

// FocusSettings are the two settings the decider consumes.
type FocusSettings struct {
	Count     int
	Directive string
}

// SettingsService provides validated access to per-user settings.
type SettingsService struct {
	repo *repository.SettingsRepository
}

func NewSettingsService(repo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// Resolve reads the focus settings, falling back to defaults for missing or
// unusable values. Counts outside 1-5 are clamped.
func (s *SettingsService) Resolve(ctx context.Context, userID uint) (FocusSettings, error) {
	out := FocusSettings{Count: DefaultFocusCount, Directive: DefaultDirective}

	raw, ok, err := s.repo.Get(ctx, userID, KeyFocusCount)
	if err != nil {
		return out, err
	}
	if ok {
		out.Count = ParseFocusCount(raw)
	}

	directive, ok, err := s.repo.Get(ctx, userID, KeyDirective)
	if err != nil {
		return out, err
	}
	if ok && strings.TrimSpace(directive) != "" {
		out.Directive = directive
	}
	return out, nil
}

// ParseFocusCount turns a stored count into a usable slot count.
func ParseFocusCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultFocusCount
	}
	return clampCount(n)
}

func clampCount(n int) int {
	switch {
	case n < 1:
		return 1
	case n > 5:
		return 5
	default:
		return n
	}
}

// List returns every stored setting with defaults filled in for the recognized keys.
func (s *SettingsService) List(ctx context.Context, userID uint) (map[string]string, error) {
	settings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := map[string]string{
		KeyFocusCount: strconv.Itoa(DefaultFocusCount),
		KeyDirective:  DefaultDirective,
	}
	for _, st := range settings {
		out[st.Key] = st.Value
	}
	return out, nil
}

// Set validates and stores one setting. An empty value for a recognized key
// removes it so the default applies again.
func (s *SettingsService) Set(ctx context.Context, userID uint, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalidf("key is required")
	}
	if len(key) > maxSettingKeyLen {
		return invalidf("key longer than %d characters", maxSettingKeyLen)
	}

	switch key {
	case KeyFocusCount:
		value = strings.TrimSpace(value)
		if value == "" {
			return s.repo.Delete(ctx, userID, key)
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 5 {
			return invalidf("%s must be an integer between 1 and 5", KeyFocusCount)
		}
		value = strconv.Itoa(n)
	case KeyDirective:
		if strings.TrimSpace(value) == "" {
			return s.repo.Delete(ctx, userID, key)
		}
		if utf8.RuneCountInString(value) > maxDirectiveRunes {
			return invalidf("%s longer than %d characters", KeyDirective, maxDirectiveRunes)
		}
	}

	return s.repo.Upsert(ctx, userID, key, value)
}
