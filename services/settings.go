package services

import (
	"encoding/json"
	"fmt"

	"github.com/padelops/tournament-engine/brackets"
)

const fixtureConfigKey = "fixture_config"

// mergeSettings sets key to value inside a free-form jsonb settings document,
// preserving every other key. A nil or empty document starts from {}.
func mergeSettings(settings json.RawMessage, key string, value interface{}) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings value %q: %w", key, err)
	}
	doc[key] = raw

	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// appendToSettingsList appends value to the JSON array stored under key,
// creating the array on first use.
func appendToSettingsList(settings json.RawMessage, key string, value interface{}) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}

	var list []json.RawMessage
	if raw, ok := doc[key]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("failed to decode settings list %q: %w", key, err)
		}
	}

	item, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	list = append(list, item)

	return mergeSettings(settings, key, list)
}

// fixtureConfigFromSettings reads the fixture configuration persisted at
// generation time. Tournaments without one fall back to the defaults.
func fixtureConfigFromSettings(settings json.RawMessage) brackets.FixtureConfig {
	cfg := brackets.DefaultFixtureConfig()
	if len(settings) == 0 {
		return cfg
	}

	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(settings, &doc); err != nil {
		return cfg
	}
	raw, ok := doc[fixtureConfigKey]
	if !ok {
		return cfg
	}

	var stored brackets.FixtureConfig
	if err := json.Unmarshal(raw, &stored); err != nil {
		return cfg
	}
	stored.ApplyDefaults()
	return stored
}
