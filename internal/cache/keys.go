// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

package cache

import (
	"crypto/md5" //nolint:gosec // key fingerprinting, not a security boundary
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// KeyPrefix namespaces every recommendation cache entry.
const KeyPrefix = "recommendations"

// BuildKey constructs a deterministic cache key from a namespace prefix and
// parameter map: the prefix followed by sorted param:value pairs joined with
// ":". Slice and map values are content-hashed to a short fixed-width digest
// so keys stay bounded regardless of value size. Callers must sort slices
// before passing them if element order should not affect the key.
func BuildKey(prefix string, params map[string]interface{}) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, 1+2*len(names))
	parts = append(parts, prefix)
	for _, name := range names {
		parts = append(parts, name, formatValue(params[name]))
	}
	return strings.Join(parts, ":")
}

// UserKeyPattern returns the glob matching every cache entry for one user.
func UserKeyPattern(userID int) string {
	return fmt.Sprintf("%s:user:%d:*", KeyPrefix, userID)
}

// AllKeysPattern returns the glob matching every recommendation cache entry.
// Recipe invalidation uses this conservatively: a recipe change can ripple
// through any user's ranking, and an exact dependency index is out of scope.
func AllKeysPattern() string {
	return KeyPrefix + ":*"
}

// formatValue renders a parameter value for key construction. Scalars are
// formatted directly; composite values are hashed to the first 8 hex chars
// of an MD5 digest over their sorted-key JSON encoding.
func formatValue(v interface{}) string {
	if v == nil {
		return "none"
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Ptr:
		return digest(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func digest(v interface{}) string {
	// Map keys are marshaled in sorted order, keeping digests deterministic.
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", v))
	}
	sum := md5.Sum(data) //nolint:gosec // key fingerprinting, not a security boundary
	return hex.EncodeToString(sum[:])[:8]
}
