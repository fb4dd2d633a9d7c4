package config

import "reflect"

// ChangedSections names the top-level sections that differ between two
// configs. Values are never returned so secrets cannot leak into logs.
func ChangedSections(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var out []string
	check := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	check("logging", oldCfg.Logging, newCfg.Logging)
	check("telegram", oldCfg.Telegram, newCfg.Telegram)
	check("storage", oldCfg.Storage, newCfg.Storage)
	check("cache", oldCfg.Cache, newCfg.Cache)
	check("season", oldCfg.Season, newCfg.Season)
	check("provider", oldCfg.Provider, newCfg.Provider)
	check("delivery", oldCfg.Delivery, newCfg.Delivery)
	check("schedule", oldCfg.Schedule, newCfg.Schedule)
	return out
}

// RestartRequired reports changes that a running process cannot apply
// without reopening its store or cache backend.
func RestartRequired(oldCfg, newCfg *Config) bool {
	if oldCfg == nil || newCfg == nil {
		return false
	}
	return !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) || !reflect.DeepEqual(oldCfg.Cache, newCfg.Cache)
}
