package stratabase

import (
	"context"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-stratabase/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified after every mutation.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides the emitter defaults. Without it emission is
// enabled whenever hooks are present.
func WithActivityConfig(activityCfg activity.Config) Option {
	return func(cfg *config) {
		cfg.activityConfig = &activityCfg
	}
}

// ActivityHooks returns a cloned slice of the configured activity hooks.
func (s *Stratabase) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return cloneActivityHooks(s.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

func newActivityEmitter(cfg config) *activity.Emitter {
	activityCfg := activity.Config{Enabled: true, Channel: activity.DefaultChannel}
	if cfg.activityConfig != nil {
		activityCfg = *cfg.activityConfig
	}
	return activity.NewEmitter(cfg.activityHooks, activityCfg)
}

func (s *Stratabase) layerContext(layer int) activity.LayerContext {
	lc := activity.LayerContext{Index: layer, Name: s.LayerName(layer)}
	if scope, ok := s.LayerScope(layer); ok {
		lc.Label = scope.Label
		lc.Metadata = copyMetadata(scope.Metadata)
	}
	return lc
}

func (s *Stratabase) emitChange(change Change) {
	if !s.emitter.Enabled() {
		return
	}
	input := activity.PropertyEventInput{
		ObjectID: change.ID.String(),
		Property: change.Property,
		OldValue: activityValue(change.OldValue),
		NewValue: activityValue(change.NewValue),
		Layer:    s.layerContext(change.Layer),
	}
	event := activity.BuildPropertySetEvent(input)
	if change.IsRemoval {
		event = activity.BuildPropertyClearedEvent(input)
	}
	if err := s.emitter.Emit(context.Background(), event); err != nil {
		glog.Warningf("[stratabase] activity hook failed for %s/%s: %v\n", change.ID, change.Property, err)
	}
}

func (s *Stratabase) emitObjectCleared(id uuid.UUID, removed int) {
	if !s.emitter.Enabled() {
		return
	}
	event := activity.BuildObjectClearedEvent(activity.PropertyEventInput{
		ObjectID: id.String(),
		Count:    removed,
	})
	if err := s.emitter.Emit(context.Background(), event); err != nil {
		glog.Warningf("[stratabase] activity hook failed for %s: %v\n", id, err)
	}
}

// activityValue keeps list collections out of event metadata.
func activityValue(v any) any {
	if insertions, ok := v.(*ListInsertions); ok {
		return map[string]any{"insertions": insertions.Len()}
	}
	return v
}
