package privacy

import (
	"strings"
)

// mask replaces every detection with a placeholder. The output is built in a
// single left-to-right pass: unmatched runs are copied and placeholders are
// written in their place, so detection offsets always refer to text.
func mask(text string, rules []*Rule) Result {
	if strings.TrimSpace(text) == "" {
		return Result{MaskedText: "", Detections: []Detection{}, Mapping: NewMappingTable()}
	}

	detections := detect(text, rules)
	mapping := NewMappingTable()
	if len(detections) == 0 {
		return Result{MaskedText: text, Detections: []Detection{}, Mapping: mapping}
	}

	labels := make(map[string]string, len(rules))
	for _, rule := range rules {
		labels[rule.Key] = rule.Label
	}

	// Tokens already in the text are reserved so a new placeholder never
	// collides with one from an earlier pass.
	used := make(map[string]bool)
	for _, loc := range FindPlaceholders(text) {
		used[text[loc[0]:loc[1]]] = true
	}
	counters := make(map[string]int, len(rules))

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for i := range detections {
		d := &detections[i]

		var placeholder string
		for {
			counters[d.RuleKey]++
			placeholder = formatPlaceholder(labels[d.RuleKey], counters[d.RuleKey])
			if !used[placeholder] {
				break
			}
		}
		used[placeholder] = true

		d.Placeholder = placeholder
		mapping.Set(placeholder, d.Original)

		b.WriteString(text[cursor:d.Start])
		b.WriteString(placeholder)
		cursor = d.End
	}
	b.WriteString(text[cursor:])

	return Result{MaskedText: b.String(), Detections: detections, Mapping: mapping}
}
