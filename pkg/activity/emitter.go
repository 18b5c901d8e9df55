package activity

import (
	"context"
	"slices"
	"strings"
)

// DefaultChannel is stamped on events emitted without a channel.
const DefaultChannel = "stratabase"

// Config controls emission. Stores do not know who performed a write, so
// ActorID and TenantID attribute every event emitted without them.
type Config struct {
	Enabled  bool
	Channel  string
	ActorID  string
	TenantID string
	// Verbs restricts emission to the listed verbs when non-empty.
	Verbs []string
}

// Emitter applies Config defaults and forwards events to hooks.
type Emitter struct {
	hooks Hooks
	cfg   Config
}

func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	cfg.Channel = strings.TrimSpace(cfg.Channel)
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	cfg.ActorID = strings.TrimSpace(cfg.ActorID)
	cfg.TenantID = strings.TrimSpace(cfg.TenantID)
	cfg.Verbs = slices.Clone(cfg.Verbs)
	normalized := cloneHooks(hooks)
	cfg.Enabled = cfg.Enabled && len(normalized) > 0
	return &Emitter{hooks: normalized, cfg: cfg}
}

// Enabled reports whether Emit can reach any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.cfg.Enabled
}

// Accepts reports whether events with verb pass the verb filter.
func (e *Emitter) Accepts(verb string) bool {
	return len(e.cfg.Verbs) == 0 || slices.Contains(e.cfg.Verbs, strings.TrimSpace(verb))
}

// Emit fills in channel and attribution defaults and notifies the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() || !e.Accepts(event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.cfg.Channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.cfg.ActorID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.cfg.TenantID
	}
	return e.hooks.Notify(ctx, event)
}

func cloneHooks(hooks Hooks) Hooks {
	var out Hooks
	for _, hook := range hooks {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}
