package privacy

import "regexp"

// RuleKind distinguishes shipped rules from user-defined ones.
type RuleKind int

const (
	// KindBuiltin rules are seeded when a registry is created.
	KindBuiltin RuleKind = iota
	// KindCustom rules are added at runtime.
	KindCustom
)

func (k RuleKind) String() string {
	if k == KindBuiltin {
		return "builtin"
	}
	return "custom"
}

// Rule is a named detection rule. The matcher is compiled once when the
// rule is registered.
type Rule struct {
	Key         string
	Kind        RuleKind
	Label       string
	Description string
	Source      string
	Enabled     bool

	matcher *regexp.Regexp
}

// PatternInfo is the public view of a registered rule.
type PatternInfo struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Source      string `json:"matcher"`
	Builtin     bool   `json:"builtin"`
	Enabled     bool   `json:"enabled"`
}

// Detection is one matched-and-replaced span. Offsets are byte offsets into
// the text passed to the masking pass that produced it.
type Detection struct {
	RuleKey     string `json:"rule_key"`
	Description string `json:"description"`
	Original    string `json:"original_text"`
	Placeholder string `json:"placeholder"`
	Start       int    `json:"start_offset"`
	End         int    `json:"end_offset"`
}

// Result is the output of one masking pass.
type Result struct {
	MaskedText string        `json:"masked_text"`
	Detections []Detection   `json:"detections"`
	Mapping    *MappingTable `json:"mapping_table"`
}

// RuleStats is the per-rule entry of a Summary.
type RuleStats struct {
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// Summary maps rule keys to detection counts. Rules without detections are
// absent.
type Summary map[string]RuleStats

// Counts flattens the summary to rule key -> count.
func (s Summary) Counts() map[string]int {
	counts := make(map[string]int, len(s))
	for key, st := range s {
		counts[key] = st.Count
	}
	return counts
}

// Total returns the number of detections across all rules.
func (s Summary) Total() int {
	total := 0
	for _, st := range s {
		total += st.Count
	}
	return total
}
