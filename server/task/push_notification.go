// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// PushNotificationConfig configures where and how to deliver push
// notifications for one context.
type PushNotificationConfig struct {
	// URL is the endpoint notifications are POSTed to.
	URL string `json:"url"`

	// Token, if set, is sent as a bearer token instead of a signed JWT.
	Token string `json:"token,omitempty"`

	// SigningKey, if set, is used to sign a short-lived JWT attached to
	// each notification request.
	SigningKey []byte `json:"-"`
}

// Validate checks the config for required fields.
func (c *PushNotificationConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("push notification URL is required")
	}
	return nil
}

// PushNotificationConfigStore stores per-context push notification configs.
type PushNotificationConfigStore struct {
	mu      sync.Mutex
	configs map[string]*PushNotificationConfig
}

// NewPushNotificationConfigStore creates an empty config store.
func NewPushNotificationConfigStore() *PushNotificationConfigStore {
	return &PushNotificationConfigStore{
		configs: make(map[string]*PushNotificationConfig),
	}
}

// Get returns the config for a context, or nil if none is set.
func (s *PushNotificationConfigStore) Get(contextID string) *PushNotificationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs[contextID]
}

// Set stores the config for a context.
func (s *PushNotificationConfigStore) Set(contextID string, config *PushNotificationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[contextID] = config
	return nil
}

// Delete removes the config for a context, reporting whether one existed.
func (s *PushNotificationConfigStore) Delete(contextID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.configs[contextID]
	delete(s.configs, contextID)
	return ok
}

// PushNotificationSender delivers notifications about task progress to an
// external endpoint. Delivery is best effort: the request handler logs
// failures and never surfaces them to the user.
type PushNotificationSender interface {
	// SendNotification delivers a notification for a context. Returns false
	// without error when the context has no push config.
	SendNotification(ctx context.Context, contextID, title, message string, data map[string]any) (bool, error)
}

// HTTPPushNotificationSender implements PushNotificationSender over HTTP
// POST with an optional JWT bearer token.
type HTTPPushNotificationSender struct {
	client      *http.Client
	configStore *PushNotificationConfigStore
	tokenTTL    time.Duration
	logger      *slog.Logger
}

var _ PushNotificationSender = (*HTTPPushNotificationSender)(nil)

// HTTPPushNotificationSenderConfig holds configuration for
// HTTPPushNotificationSender.
type HTTPPushNotificationSenderConfig struct {
	Client      *http.Client
	ConfigStore *PushNotificationConfigStore
	TokenTTL    time.Duration
	Logger      *slog.Logger
}

// NewHTTPPushNotificationSender creates a new HTTP-based sender.
func NewHTTPPushNotificationSender(config HTTPPushNotificationSenderConfig) *HTTPPushNotificationSender {
	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	tokenTTL := config.TokenTTL
	if tokenTTL == 0 {
		tokenTTL = 5 * time.Minute
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	configStore := config.ConfigStore
	if configStore == nil {
		configStore = NewPushNotificationConfigStore()
	}

	return &HTTPPushNotificationSender{
		client:      client,
		configStore: configStore,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

// ConfigStore returns the sender's config store.
func (s *HTTPPushNotificationSender) ConfigStore() *PushNotificationConfigStore {
	return s.configStore
}

// SendNotification delivers a notification for a context. Returns false
// without error when the context has no push config.
func (s *HTTPPushNotificationSender) SendNotification(ctx context.Context, contextID, title, message string, data map[string]any) (bool, error) {
	config := s.configStore.Get(contextID)
	if config == nil {
		s.logger.Debug("no push config for context", slog.String("context_id", contextID))
		return false, nil
	}

	payload := map[string]any{
		"context_id": contextID,
		"title":      title,
		"message":    message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if data != nil {
		payload["data"] = data
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := s.authorize(req, contextID, config); err != nil {
		return false, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("notification endpoint returned %s", resp.Status)
	}

	s.logger.Info("push notification sent",
		slog.String("context_id", contextID),
		slog.String("title", title),
	)
	return true, nil
}

// authorize attaches a bearer credential to the request: the static token
// when configured, otherwise a short-lived JWT signed with the config's key.
func (s *HTTPPushNotificationSender) authorize(req *http.Request, contextID string, config *PushNotificationConfig) error {
	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
		return nil
	}
	if len(config.SigningKey) == 0 {
		return nil
	}

	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer("orchestra").
		Subject(contextID).
		IssuedAt(now).
		Expiration(now.Add(s.tokenTTL)).
		Build()
	if err != nil {
		return fmt.Errorf("build notification token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), config.SigningKey))
	if err != nil {
		return fmt.Errorf("sign notification token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+string(signed))
	return nil
}
