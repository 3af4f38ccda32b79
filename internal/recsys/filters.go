// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package recsys

import "strings"

// matchesFilters reports whether a recipe's attribute snapshot satisfies
// every set filter field. A recipe with no snapshot fails any non-empty
// filter: its attributes cannot be verified.
func matchesFilters(attrs map[string]interface{}, f *Filters) bool {
	if f.IsZero() {
		return true
	}
	if attrs == nil {
		return false
	}

	if !matchesCategory(attrs, "dietary_type", f.DietaryType) {
		return false
	}
	if !matchesCategory(attrs, "cuisine", f.Cuisine) {
		return false
	}
	if !matchesCategory(attrs, "difficulty", f.Difficulty) {
		return false
	}
	if !matchesCategory(attrs, "cooking_method", f.CookingMethod) {
		return false
	}

	if f.MaxCookTime > 0 {
		if v, ok := toFloat(attrs["cook_time"]); !ok || v > float64(f.MaxCookTime) {
			return false
		}
	}
	if f.MinCookTime > 0 {
		if v, ok := toFloat(attrs["cook_time"]); !ok || v < float64(f.MinCookTime) {
			return false
		}
	}
	if f.MaxCalories > 0 {
		if v, ok := toFloat(attrs["calories_per_serving"]); !ok || v > float64(f.MaxCalories) {
			return false
		}
	}
	return true
}

// matchesPreferences reports whether a recipe satisfies declared cold-start
// preferences. List fields match when any entry matches.
func matchesPreferences(attrs map[string]interface{}, prefs *Preferences) bool {
	if prefs == nil {
		return true
	}
	if attrs == nil {
		return len(prefs.Dietary) == 0 && len(prefs.Cuisines) == 0 &&
			prefs.MaxCookTime == 0 && prefs.Difficulty == ""
	}

	if len(prefs.Dietary) > 0 && !matchesAny(attrs, "dietary_type", prefs.Dietary) {
		return false
	}
	if len(prefs.Cuisines) > 0 && !matchesAny(attrs, "cuisine", prefs.Cuisines) {
		return false
	}
	if prefs.MaxCookTime > 0 {
		if v, ok := toFloat(attrs["cook_time"]); !ok || v > float64(prefs.MaxCookTime) {
			return false
		}
	}
	if !matchesCategory(attrs, "difficulty", prefs.Difficulty) {
		return false
	}
	return true
}

func matchesCategory(attrs map[string]interface{}, attr, want string) bool {
	if want == "" {
		return true
	}
	have, ok := attrs[attr].(string)
	return ok && strings.EqualFold(have, want)
}

func matchesAny(attrs map[string]interface{}, attr string, wants []string) bool {
	have, ok := attrs[attr].(string)
	if !ok {
		return false
	}
	for _, want := range wants {
		if strings.EqualFold(have, want) {
			return true
		}
	}
	return false
}
