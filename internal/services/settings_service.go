package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
)

// SettingsService serves the client-facing game_settings table.
type SettingsService struct {
	store store.Store
}

func NewSettingsService(st store.Store) *SettingsService {
	return &SettingsService{store: st}
}

// All returns every setting decoded by its declared type.
func (s *SettingsService) All(ctx context.Context) (map[string]any, error) {
	settings, err := s.store.ListGameSettings(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any, len(settings))
	for _, gs := range settings {
		v, err := decodeSetting(gs.Type, gs.Value)
		if err != nil {
			v = gs.Value
		}
		result[gs.Key] = v
	}
	return result, nil
}

func (s *SettingsService) Set(ctx context.Context, key, value, typ string) (*models.GameSetting, error) {
	if key == "" || len(key) > 100 {
		return nil, invalid("key must be 1-100 characters")
	}
	if _, err := decodeSetting(typ, value); err != nil {
		return nil, invalid("value is not a valid %s", typ)
	}
	gs := &models.GameSetting{Key: key, Value: value, Type: typ}
	if err := s.store.UpsertGameSetting(ctx, gs); err != nil {
		return nil, err
	}
	return gs, nil
}

func (s *SettingsService) Delete(ctx context.Context, key string) error {
	err := s.store.DeleteGameSetting(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSettingNotFound
	}
	return err
}

// Seed writes the economy constants clients display, leaving keys an admin
// already set untouched.
func (s *SettingsService) Seed(ctx context.Context, game config.Game) error {
	existing, err := s.store.ListGameSettings(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, gs := range existing {
		have[gs.Key] = true
	}

	defaults := []models.GameSetting{
		{Key: "max_level", Value: strconv.Itoa(game.MaxLevel), Type: "int"},
		{Key: "level_up_experience_base", Value: strconv.FormatInt(game.LevelUpExperienceBase, 10), Type: "int"},
		{Key: "premium_price", Value: game.PremiumPrice.String(), Type: "float"},
		{Key: "welcome_bonus", Value: game.WelcomeBonus.String(), Type: "float"},
	}
	for i := range defaults {
		if have[defaults[i].Key] {
			continue
		}
		if err := s.store.UpsertGameSetting(ctx, &defaults[i]); err != nil {
			return err
		}
	}
	return nil
}

func decodeSetting(typ, value string) (any, error) {
	switch typ {
	case "bool":
		return strconv.ParseBool(value)
	case "int":
		return strconv.Atoi(value)
	case "float":
		return strconv.ParseFloat(value, 64)
	case "json":
		var v any
		err := json.Unmarshal([]byte(value), &v)
		return v, err
	default:
		return value, nil
	}
}
