package privacy

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// MaxPatternLength bounds the size of a matching expression. Go's regexp
// runs in linear time, so bounding the expression bounds per-call cost.
const MaxPatternLength = 1024

// Registry is the ordered set of detection rules. It is safe for concurrent
// use: mutations are exclusive with detection passes.
type Registry struct {
	mu    sync.RWMutex
	rules []*Rule
	index map[string]int
}

// NewRegistry returns a registry seeded with the built-in rules, all enabled.
func NewRegistry() *Registry {
	r := &Registry{index: make(map[string]int)}
	for _, def := range builtinDefs {
		r.insert(&Rule{
			Key:         def.Key,
			Kind:        KindBuiltin,
			Label:       def.Label,
			Description: def.Description,
			Source:      def.Source,
			Enabled:     true,
			matcher:     regexp.MustCompile(def.Source),
		})
	}
	return r
}

// Validate checks that source is usable as a matcher. Callers should run it
// before AddOrReplace; AddOrReplace runs it again regardless.
func Validate(source string) error {
	_, err := compileMatcher(source)
	return err
}

func compileMatcher(source string) (*regexp.Regexp, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidMatcher)
	}
	if len(source) > MaxPatternLength {
		return nil, fmt.Errorf("%w: expression longer than %d bytes", ErrInvalidMatcher, MaxPatternLength)
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMatcher, err)
	}
	if re.MatchString("") {
		return nil, fmt.Errorf("%w: expression matches empty text", ErrInvalidMatcher)
	}
	return re, nil
}

func validateRule(key, label string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("%w: %q must be a letter followed by letters or digits", ErrInvalidLabel, label)
	}
	return nil
}

// AddOrReplace registers a custom rule, overwriting any rule with the same
// key in place. On error the registry is unchanged.
func (r *Registry) AddOrReplace(key, source, label, description string) error {
	if err := validateRule(key, label); err != nil {
		return &PatternError{Key: key, Err: err}
	}
	re, err := compileMatcher(source)
	if err != nil {
		return &PatternError{Key: key, Err: err}
	}

	rule := &Rule{
		Key:         key,
		Kind:        KindCustom,
		Label:       label,
		Description: description,
		Source:      source,
		Enabled:     true,
		matcher:     re,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[key]; ok {
		rule.Enabled = r.rules[i].Enabled
		r.rules[i] = rule
		return nil
	}
	r.insert(rule)
	return nil
}

// insert appends a rule. Callers must hold the write lock or own r exclusively.
func (r *Registry) insert(rule *Rule) {
	r.index[rule.Key] = len(r.rules)
	r.rules = append(r.rules, rule)
}

// Remove deletes a rule. Unknown keys are ignored.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[key]
	if !ok {
		return
	}
	r.rules = append(r.rules[:i], r.rules[i+1:]...)
	delete(r.index, key)
	for j := i; j < len(r.rules); j++ {
		r.index[r.rules[j].Key] = j
	}
}

// SetEnabled toggles a rule on or off.
func (r *Registry) SetEnabled(key string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRule, key)
	}
	// Rules are shared with in-flight snapshots, so replace rather than mutate.
	updated := *r.rules[i]
	updated.Enabled = enabled
	r.rules[i] = &updated
	return nil
}

// List returns all rules: built-ins in canonical order, then custom rules in
// insertion order.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = *rule
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// active snapshots the rules for one pass. With no keys it returns the
// enabled rules; otherwise exactly the named rules in registry order.
func (r *Registry) active(keys []string) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Rule, 0, len(r.rules))
	if len(keys) == 0 {
		for _, rule := range r.rules {
			if rule.Enabled {
				out = append(out, rule)
			}
		}
		return out
	}

	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}
	for _, rule := range r.rules {
		if wanted[rule.Key] {
			out = append(out, rule)
		}
	}
	return out
}
