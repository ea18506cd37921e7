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
	"context"
	"errors"
	"fmt"

	"github.com/tombee/dispatchd/internal/dconfig"
)

// Sink delivers a single message to one destination.
type Sink interface {
	Send(ctx context.Context, message string) error
}

// Notifier fans a message out to every configured sink. A send failure on
// one sink does not stop delivery to the others; all failures are joined
// and returned so the dispatcher can log them without losing any of them.
type Notifier struct {
	sinks []Sink
}

// New builds a Notifier from the sinks configured in cfg. An empty
// cfg.Sinks list yields a Notifier that silently drops every message,
// matching a deployment that has opted out of notifications entirely.
func New(cfg dconfig.NotifyConfig) (*Notifier, error) {
	sinks := make([]Sink, 0, len(cfg.Sinks))
	for i, s := range cfg.Sinks {
		sink, err := buildSink(s)
		if err != nil {
			return nil, fmt.Errorf("notify: sinks[%d]: %w", i, err)
		}
		sinks = append(sinks, sink)
	}
	return &Notifier{sinks: sinks}, nil
}

func buildSink(cfg dconfig.NotifySinkConfig) (Sink, error) {
	switch cfg.Type {
	case "stdout":
		return NewStdoutSink(), nil
	case "webhook":
		return NewWebhookSink(cfg.URL)
	case "file":
		return NewFileSink(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}

// Notify delivers message to every sink, implementing dispatcher.Notifier.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
