package privacy

import (
	"fmt"
	"sync/atomic"

	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Engine is the reversible masking engine: a pattern registry plus the
// detect, mask, restore and summarize operations over it.
type Engine struct {
	registry atomic.Pointer[Registry]
	enabled  atomic.Bool
	logger   *logger.Logger
}

// New creates an engine seeded with the built-in rules and configured from cfg.
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNop()
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure patterns: %w", err)
	}

	e := &Engine{logger: log}
	e.registry.Store(registry)
	e.enabled.Store(cfg.Enabled)

	log.Info("Masking engine initialized",
		zap.Int("total_rules", registry.Len()),
		zap.Int("enabled_rules", len(registry.active(nil))),
		zap.Bool("masking_enabled", cfg.Enabled),
	)

	return e, nil
}

// buildRegistry creates a fresh registry with custom patterns added and the
// enable list applied.
func buildRegistry(cfg config.PrivacyConfig) (*Registry, error) {
	registry := NewRegistry()

	for _, p := range cfg.CustomPatterns {
		if err := registry.AddOrReplace(p.Key, p.Matcher, p.Label, p.Description); err != nil {
			return nil, err
		}
	}

	if err := applyEnableList(registry, cfg.Patterns); err != nil {
		return nil, err
	}

	return registry, nil
}

// applyEnableList disables every rule and then enables the listed ones.
// "all" enables every rule.
func applyEnableList(registry *Registry, patterns []string) error {
	for _, rule := range registry.List() {
		if err := registry.SetEnabled(rule.Key, false); err != nil {
			return err
		}
	}

	for _, key := range patterns {
		if key == "all" {
			for _, rule := range registry.List() {
				if err := registry.SetEnabled(rule.Key, true); err != nil {
					return err
				}
			}
			continue
		}
		if err := registry.SetEnabled(key, true); err != nil {
			return err
		}
	}

	return nil
}

// ApplyConfig replaces the registry with one built from cfg. Runtime
// additions made through AddPattern are discarded. On error the current
// registry stays in place.
func (e *Engine) ApplyConfig(cfg config.PrivacyConfig) error {
	registry, err := buildRegistry(cfg)
	if err != nil {
		e.logger.Warn("Rejected pattern configuration", zap.Error(err))
		return fmt.Errorf("failed to configure patterns: %w", err)
	}

	e.registry.Store(registry)
	e.enabled.Store(cfg.Enabled)

	e.logger.Info("Pattern configuration applied",
		zap.Int("total_rules", registry.Len()),
		zap.Int("enabled_rules", len(registry.active(nil))),
		zap.Bool("masking_enabled", cfg.Enabled),
	)
	return nil
}

// Registry returns the live registry.
func (e *Engine) Registry() *Registry {
	return e.registry.Load()
}

// Enabled reports whether masking is switched on.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// AddPattern validates and registers a custom rule, replacing any rule with
// the same key.
func (e *Engine) AddPattern(key, source, label, description string) error {
	if err := e.Registry().AddOrReplace(key, source, label, description); err != nil {
		e.logger.Warn("Pattern rejected", zap.String("rule", key), zap.Error(err))
		return err
	}
	e.logger.Info("Pattern registered", zap.String("rule", key), zap.String("label", label))
	return nil
}

// RemovePattern deletes a rule if present.
func (e *Engine) RemovePattern(key string) {
	e.Registry().Remove(key)
	e.logger.Info("Pattern removed", zap.String("rule", key))
}

// SetEnabled toggles a rule.
func (e *Engine) SetEnabled(key string, enabled bool) error {
	if err := e.Registry().SetEnabled(key, enabled); err != nil {
		return err
	}
	e.logger.Info("Pattern toggled", zap.String("rule", key), zap.Bool("enabled", enabled))
	return nil
}

// ListPatterns returns every registered rule in registry order.
func (e *Engine) ListPatterns() []PatternInfo {
	rules := e.Registry().List()
	out := make([]PatternInfo, len(rules))
	for i, r := range rules {
		out[i] = PatternInfo{
			Key:         r.Key,
			Label:       r.Label,
			Description: r.Description,
			Source:      r.Source,
			Builtin:     r.Kind == KindBuiltin,
			Enabled:     r.Enabled,
		}
	}
	return out
}

// Detect reports the spans Mask would replace, without placeholders. With
// no keys the enabled rules are used.
func (e *Engine) Detect(text string, keys ...string) []Detection {
	return detect(text, e.Registry().active(keys))
}

// Mask replaces every detected span with a placeholder. With no keys the
// enabled rules are used; otherwise exactly the named rules. When masking
// is switched off the text is returned untouched.
func (e *Engine) Mask(text string, keys ...string) Result {
	if !e.Enabled() {
		return Result{MaskedText: text, Detections: []Detection{}, Mapping: NewMappingTable()}
	}

	result := mask(text, e.Registry().active(keys))

	if len(result.Detections) > 0 {
		e.logger.Debug("Sensitive spans masked",
			zap.Int("detections", len(result.Detections)),
			zap.Int("mapping_entries", result.Mapping.Len()),
		)
	}
	return result
}

// Restore substitutes placeholders in text with their original values.
func (e *Engine) Restore(text string, mapping *MappingTable) string {
	return restore(text, mapping)
}

// Summarize counts detections per rule.
func (e *Engine) Summarize(detections []Detection) Summary {
	return Summarize(detections)
}
