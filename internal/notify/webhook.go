// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/tombee/dispatchd/pkg/httpclient"
)

// webhookRateLimit bounds how often the sink posts, so a noisy project
// (many steps failing in a tight loop) cannot hammer a downstream chat
// webhook that itself rate-limits callers.
const webhookRateLimit = rate.Limit(1) // one notification per second

// webhookBurst allows a short burst (e.g. several steps finishing in the
// same tick) before the limiter starts delaying sends.
const webhookBurst = 5

// webhookPayload is the JSON body posted to the webhook URL.
type webhookPayload struct {
	Text string `json:"text"`
}

// WebhookSink posts each message as a JSON body to an HTTP endpoint,
// rate-limited to avoid overwhelming chat-ops style webhooks.
type WebhookSink struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookSink returns a Sink that POSTs to url through a client built by
// the shared httpclient factory. Its default config leaves
// AllowNonIdempotentRetry off, so a failed POST is not retried.
func NewWebhookSink(url string) (*WebhookSink, error) {
	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = "dispatchd-notify/1.0"

	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("notify: build webhook client: %w", err)
	}

	return &WebhookSink{
		url:     url,
		client:  client,
		limiter: rate.NewLimiter(webhookRateLimit, webhookBurst),
	}, nil
}

// Send waits for rate-limiter headroom, then POSTs message as JSON.
func (s *WebhookSink) Send(ctx context.Context, message string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: webhook rate limiter: %w", err)
	}

	body, err := json.Marshal(webhookPayload{Text: message})
	if err != nil {
		return fmt.Errorf("notify: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
