package detection

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultInputSize = 416
	MinThreshold     = 0.1
	MaxThreshold     = 0.9
)

// CustomModelConfig describes a user-supplied graph model.
type CustomModelConfig struct {
	ModelURL            string   `json:"modelUrl"`
	InputSize           int      `json:"inputSize"`
	ClassLabels         []string `json:"classLabels"`
	ConfidenceThreshold float64  `json:"confidenceThreshold"`
	Decoding            string   `json:"decoding,omitempty"`
}

// DefaultCustomConfig mirrors the settings form defaults.
func DefaultCustomConfig() CustomModelConfig {
	return CustomModelConfig{
		InputSize:           DefaultInputSize,
		ClassLabels:         []string{},
		ConfidenceThreshold: 0.5,
	}
}

// Validate checks the config for use with kind.
func (c CustomModelConfig) Validate(kind ModelKind) error {
	if kind != KindCustom {
		return nil
	}
	if strings.TrimSpace(c.ModelURL) == "" {
		return &ConfigValidationError{Field: "modelUrl", Reason: "required for custom model"}
	}
	if c.InputSize <= 0 {
		return &ConfigValidationError{Field: "inputSize", Reason: "must be a positive integer"}
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return &ConfigValidationError{Field: "confidenceThreshold", Reason: "must be within [0, 1]"}
	}
	if _, err := DecoderFor(c.Decoding); err != nil {
		return &ConfigValidationError{Field: "decoding", Reason: err.Error()}
	}
	return nil
}

// ParseClassLabels splits a comma separated list, trimming blanks and
// dropping empty entries. Order is kept.
func ParseClassLabels(s string) []string {
	labels := []string{}
	for _, part := range strings.Split(s, ",") {
		if label := strings.TrimSpace(part); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// ClampThreshold limits a slider value to [MinThreshold, MaxThreshold].
func ClampThreshold(v float64) float64 {
	if math.IsNaN(v) {
		return MinThreshold
	}
	return math.Min(MaxThreshold, math.Max(MinThreshold, v))
}

// ParseSettings turns the model settings form into a kind and a validated
// config. Fields missing from the form fall back to prevKind and prev.
func ParseSettings(form url.Values, prevKind ModelKind, prev CustomModelConfig) (ModelKind, CustomModelConfig, error) {
	kind := prevKind
	if v := strings.TrimSpace(form.Get("modelType")); v != "" {
		var ok bool
		if kind, ok = ParseModelKind(v); !ok {
			return prevKind, prev, &ConfigValidationError{Field: "modelType", Reason: "must be standard or custom"}
		}
	}

	cfg := prev
	cfg.ClassLabels = append([]string(nil), prev.ClassLabels...)

	if form.Has("modelUrl") {
		cfg.ModelURL = strings.TrimSpace(form.Get("modelUrl"))
	}
	if v := strings.TrimSpace(form.Get("inputSize")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return kind, prev, &ConfigValidationError{Field: "inputSize", Reason: "must be a positive integer"}
		}
		cfg.InputSize = size
	}
	if form.Has("classLabels") {
		cfg.ClassLabels = ParseClassLabels(form.Get("classLabels"))
	}
	if v := strings.TrimSpace(form.Get("confidenceThreshold")); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return kind, prev, &ConfigValidationError{Field: "confidenceThreshold", Reason: "must be a number"}
		}
		cfg.ConfidenceThreshold = ClampThreshold(threshold)
	}
	if form.Has("decoding") {
		cfg.Decoding = strings.TrimSpace(form.Get("decoding"))
	}

	if err := cfg.Validate(kind); err != nil {
		return kind, prev, err
	}
	return kind, cfg, nil
}
