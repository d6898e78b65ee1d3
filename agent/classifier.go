// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-a2a/orchestra"
)

// IntentClassifier determines which domain should handle a user message.
// The coordinator prefers an external classifier (typically model-backed)
// and falls back to keyword scoring when it fails.
type IntentClassifier interface {
	// ClassifyIntent returns the domain for the input, a confidence in
	// [0, 1] and the reasoning behind the choice.
	ClassifyIntent(ctx context.Context, userInput string, history []orchestra.HistoryEntry) (*orchestra.IntentClassification, error)
}

// ClassifierConfig holds the tunable constants of the keyword classifier.
// The values are configuration, not load-bearing business logic; the
// defaults reproduce the documented formula min(cap, matches*increment).
type ClassifierConfig struct {
	// ConfidenceCap bounds the confidence of a keyword match.
	ConfidenceCap float64

	// ConfidenceIncrement is the confidence contributed per matched keyword.
	ConfidenceIncrement float64

	// FallbackDomain is chosen when no keyword matches.
	FallbackDomain string

	// FallbackConfidence is the confidence reported for the fallback domain.
	FallbackConfidence float64
}

// DefaultClassifierConfig returns the documented defaults.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		ConfidenceCap:       0.8,
		ConfidenceIncrement: 0.2,
		FallbackDomain:      DomainOrchestrator,
		FallbackConfidence:  0.3,
	}
}

// DefaultClassifierKeywords returns the stock per-domain keyword lists used
// when registering the stock agents with the classifier.
func DefaultClassifierKeywords() map[string][]string {
	out := make(map[string][]string, len(defaultConfidenceKeywords))
	for domain, keywords := range defaultConfidenceKeywords {
		out[domain] = slices.Clone(keywords)
	}
	return out
}

// KeywordClassifier is a deterministic keyword-scoring classifier. Each
// registered domain has a fixed keyword list; the domain whose keywords
// appear most often in the lower-cased input wins, ties broken by
// registration order. Confidence grows with match count but is capped.
type KeywordClassifier struct {
	mu       sync.RWMutex
	config   ClassifierConfig
	order    []string
	keywords map[string][]string
}

var _ IntentClassifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier creates a keyword classifier. Zero-valued config
// fields are filled from DefaultClassifierConfig.
func NewKeywordClassifier(config ClassifierConfig) *KeywordClassifier {
	defaults := DefaultClassifierConfig()
	if config.ConfidenceCap <= 0 {
		config.ConfidenceCap = defaults.ConfidenceCap
	}
	if config.ConfidenceIncrement <= 0 {
		config.ConfidenceIncrement = defaults.ConfidenceIncrement
	}
	if config.FallbackDomain == "" {
		config.FallbackDomain = defaults.FallbackDomain
	}
	if config.FallbackConfidence <= 0 {
		config.FallbackConfidence = defaults.FallbackConfidence
	}

	return &KeywordClassifier{
		config:   config,
		keywords: make(map[string][]string),
	}
}

// Register adds a domain and its keyword list. Registering an existing
// domain replaces its keywords without changing its tie-break position.
func (c *KeywordClassifier) Register(domain string, keywords []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.keywords[domain]; !exists {
		c.order = append(c.order, domain)
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	c.keywords[domain] = lowered
}

// ClassifyIntent scores each registered domain by how many of its keywords
// appear in the input. Scoring never fails; with no matches the configured
// fallback domain is returned at low confidence.
func (c *KeywordClassifier) ClassifyIntent(ctx context.Context, userInput string, history []orchestra.HistoryEntry) (*orchestra.IntentClassification, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	input := strings.ToLower(userInput)

	scores := make(map[string]int)
	bestDomain := ""
	bestScore := 0
	for _, domain := range c.order {
		score := 0
		for _, kw := range c.keywords[domain] {
			if strings.Contains(input, kw) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		scores[domain] = score
		// Strict greater-than keeps the first-registered domain on ties.
		if score > bestScore {
			bestDomain = domain
			bestScore = score
		}
	}

	if bestDomain == "" {
		return &orchestra.IntentClassification{
			Domain:     c.config.FallbackDomain,
			Confidence: c.config.FallbackConfidence,
			Reasoning:  "no keyword matches; using fallback domain",
		}, nil
	}

	confidence := min(c.config.ConfidenceCap, float64(bestScore)*c.config.ConfidenceIncrement)

	return &orchestra.IntentClassification{
		Domain:     bestDomain,
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("keyword-based classification: %v", scores),
	}, nil
}
