// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package feature converts raw entity attributes into fixed-length numeric
// vectors matching a pretrained model's input schema.
//
// The schema column names encode the encoding rules: a column matching a
// known categorical attribute prefix ("gender_Female") becomes a one-hot
// test, anything else is a numeric attribute read directly. The rules are
// compiled once into typed descriptors at load time and iterated without
// string matching per request.
package feature

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Kind discriminates feature descriptor behavior.
type Kind int

const (
	// KindNumeric reads the attribute directly and coerces it to float.
	KindNumeric Kind = iota

	// KindOneHot emits 1.0 when the entity's categorical attribute equals
	// the descriptor's category, else 0.0.
	KindOneHot
)

// Descriptor is one compiled schema column.
type Descriptor struct {
	// Column is the schema column name, e.g. "age" or "gender_Female".
	Column string

	Kind Kind

	// Attr is the raw attribute consulted, e.g. "age" or "gender".
	Attr string

	// Category is the one-hot match value, e.g. "Female".
	Category string

	// DefaultMatch marks the one-hot column emitted as 1.0 when the
	// categorical attribute is absent, e.g. "user_segment_General Users"
	// for users the upstream system knows nothing about.
	DefaultMatch bool

	// Default is emitted when a numeric attribute is absent or not coercible.
	Default float64
}

// Scaler applies a pre-fitted per-feature linear transform
// (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Builder produces feature vectors for one entity type.
type Builder struct {
	descriptors []Descriptor
	scaler      *Scaler
	logger      zerolog.Logger
}

// numericDefaults maps attribute names to their documented fallback values.
var numericDefaults = map[string]float64{
	"age": 30,
}

// CompileSchema turns schema column names into typed descriptors.
// categorical lists the attribute names whose one-hot columns appear in the
// schema as "<attr>_<Category>"; longer attribute names are matched first so
// "user_segment_General Users" resolves to attr "user_segment".
// categoricalDefaults names the category emitted when an attribute is
// absent entirely.
func CompileSchema(columns []string, categorical []string, categoricalDefaults map[string]string) []Descriptor {
	prefixes := make([]string, len(categorical))
	copy(prefixes, categorical)
	// Longest prefix first, so multi-word attrs win over shorter ones.
	for i := 1; i < len(prefixes); i++ {
		for j := i; j > 0 && len(prefixes[j]) > len(prefixes[j-1]); j-- {
			prefixes[j], prefixes[j-1] = prefixes[j-1], prefixes[j]
		}
	}

	descriptors := make([]Descriptor, 0, len(columns))
	for _, col := range columns {
		descriptors = append(descriptors, compileColumn(col, prefixes, categoricalDefaults))
	}
	return descriptors
}

func compileColumn(col string, prefixes []string, defaults map[string]string) Descriptor {
	for _, attr := range prefixes {
		if strings.HasPrefix(col, attr+"_") {
			category := col[len(attr)+1:]
			return Descriptor{
				Column:       col,
				Kind:         KindOneHot,
				Attr:         attr,
				Category:     category,
				DefaultMatch: defaults[attr] == category,
			}
		}
	}
	return Descriptor{
		Column:  col,
		Kind:    KindNumeric,
		Attr:    col,
		Default: numericDefaults[col],
	}
}

// NewBuilder creates a feature builder over compiled descriptors.
// scaler may be nil when the model was trained on unscaled features.
func NewBuilder(descriptors []Descriptor, scaler *Scaler, logger zerolog.Logger) *Builder {
	return &Builder{
		descriptors: descriptors,
		scaler:      scaler,
		logger:      logger,
	}
}

// Dim returns the vector length the builder produces.
func (b *Builder) Dim() int { return len(b.descriptors) }

// Build converts raw attributes into a schema-ordered feature vector.
// Missing attributes resolve to numeric defaults; no path errors. A nil
// attrs map yields the all-defaults vector.
func (b *Builder) Build(attrs map[string]interface{}) []float64 {
	vec := make([]float64, len(b.descriptors))
	for i, d := range b.descriptors {
		switch d.Kind {
		case KindOneHot:
			if s, ok := stringValue(attrs[d.Attr]); ok {
				if s == d.Category {
					vec[i] = 1.0
				}
			} else if d.DefaultMatch {
				vec[i] = 1.0
			}
		default:
			vec[i] = numericValue(attrs[d.Attr], d.Default)
		}
	}
	return b.applyScaler(vec)
}

// applyScaler applies the pre-fitted scaler when configured. A shape
// mismatch is non-fatal: the unscaled vector is returned with a warning.
func (b *Builder) applyScaler(vec []float64) []float64 {
	if b.scaler == nil {
		return vec
	}
	if len(b.scaler.Mean) != len(vec) || len(b.scaler.Scale) != len(vec) {
		b.logger.Warn().
			Int("vector_dim", len(vec)).
			Int("scaler_dim", len(b.scaler.Mean)).
			Msg("scaler shape mismatch, emitting unscaled features")
		return vec
	}
	for i := range vec {
		scale := b.scaler.Scale[i]
		if scale == 0 {
			scale = 1
		}
		vec[i] = (vec[i] - b.scaler.Mean[i]) / scale
	}
	return vec
}

// numericValue coerces an attribute to float64, falling back to def.
func numericValue(v interface{}, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

// stringValue coerces an attribute to its categorical string form.
func stringValue(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
