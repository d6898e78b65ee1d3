// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"math"
	"strings"
	"testing"
)

func TestKeywordClassifierScoring(t *testing.T) {
	t.Parallel()

	c := NewKeywordClassifier(ClassifierConfig{})
	c.Register(DomainCropping, []string{"crop", "resize", "aspect ratio", "trim"})
	c.Register(DomainBackground, []string{"background", "remove"})

	tests := map[string]struct {
		input          string
		wantDomain     string
		wantConfidence float64
	}{
		"single match": {
			input:          "please crop my photo",
			wantDomain:     DomainCropping,
			wantConfidence: 0.2,
		},
		"two matches": {
			input:          "crop and resize this",
			wantDomain:     DomainCropping,
			wantConfidence: 0.4,
		},
		"confidence capped": {
			input:          "crop resize trim the aspect ratio and more crop",
			wantDomain:     DomainCropping,
			wantConfidence: 0.8,
		},
		"case insensitive": {
			input:          "REMOVE the BACKGROUND",
			wantDomain:     DomainBackground,
			wantConfidence: 0.4,
		},
		"fallback": {
			input:          "what is the weather",
			wantDomain:     DomainOrchestrator,
			wantConfidence: 0.3,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := c.ClassifyIntent(context.Background(), tt.input, nil)
			if err != nil {
				t.Fatalf("ClassifyIntent: %v", err)
			}
			if got.Domain != tt.wantDomain {
				t.Errorf("domain = %s, want %s", got.Domain, tt.wantDomain)
			}
			if math.Abs(got.Confidence-tt.wantConfidence) > 1e-9 {
				t.Errorf("confidence = %f, want %f", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestKeywordClassifierTieBreak(t *testing.T) {
	t.Parallel()

	c := NewKeywordClassifier(ClassifierConfig{})
	c.Register("first", []string{"shared"})
	c.Register("second", []string{"shared"})

	got, err := c.ClassifyIntent(context.Background(), "a shared keyword", nil)
	if err != nil {
		t.Fatalf("ClassifyIntent: %v", err)
	}
	if got.Domain != "first" {
		t.Errorf("tie should go to the first registered domain, got %s", got.Domain)
	}
}

func TestKeywordClassifierReRegister(t *testing.T) {
	t.Parallel()

	c := NewKeywordClassifier(ClassifierConfig{})
	c.Register("first", []string{"alpha"})
	c.Register("second", []string{"alpha"})

	// Replacing keywords keeps the tie-break position.
	c.Register("first", []string{"alpha", "ALPHA-VARIANT"})

	got, _ := c.ClassifyIntent(context.Background(), "alpha", nil)
	if got.Domain != "first" {
		t.Errorf("re-registered domain lost its position, got %s", got.Domain)
	}

	// Registered keywords are lower-cased.
	got, _ = c.ClassifyIntent(context.Background(), "alpha-variant only", nil)
	if got.Domain != "first" || math.Abs(got.Confidence-0.4) > 1e-9 {
		t.Errorf("got %s at %f, want first at 0.4", got.Domain, got.Confidence)
	}
}

func TestKeywordClassifierConfigOverride(t *testing.T) {
	t.Parallel()

	c := NewKeywordClassifier(ClassifierConfig{
		ConfidenceCap:       0.5,
		ConfidenceIncrement: 0.25,
		FallbackDomain:      "catch_all",
		FallbackConfidence:  0.1,
	})
	c.Register("d", []string{"one", "two", "three"})

	got, _ := c.ClassifyIntent(context.Background(), "one two three", nil)
	if math.Abs(got.Confidence-0.5) > 1e-9 {
		t.Errorf("capped confidence = %f, want 0.5", got.Confidence)
	}

	got, _ = c.ClassifyIntent(context.Background(), "nothing matches", nil)
	if got.Domain != "catch_all" || math.Abs(got.Confidence-0.1) > 1e-9 {
		t.Errorf("fallback = %s at %f", got.Domain, got.Confidence)
	}
}

func TestKeywordClassifierReasoning(t *testing.T) {
	t.Parallel()

	c := NewKeywordClassifier(ClassifierConfig{})
	c.Register(DomainCropping, []string{"crop"})

	got, _ := c.ClassifyIntent(context.Background(), "crop it", nil)
	if !strings.HasPrefix(got.Reasoning, "keyword-based classification:") {
		t.Errorf("reasoning = %q", got.Reasoning)
	}

	got, _ = c.ClassifyIntent(context.Background(), "nothing", nil)
	if got.Reasoning != "no keyword matches; using fallback domain" {
		t.Errorf("fallback reasoning = %q", got.Reasoning)
	}
}

func TestDefaultClassifierKeywordsIsolated(t *testing.T) {
	t.Parallel()

	first := DefaultClassifierKeywords()
	first[DomainCropping][0] = "mutated"

	second := DefaultClassifierKeywords()
	if second[DomainCropping][0] == "mutated" {
		t.Error("returned keyword lists must be copies")
	}
}
