package privacy

import (
	"slices"
	"sort"
)

// candidate is a raw match before cross-rule overlap resolution.
type candidate struct {
	rule  *Rule
	order int // position of the rule in the pass
	start int
	end   int
}

// detect runs every rule against the original text and resolves overlaps
// between rules. The returned detections are sorted by start offset and have
// no placeholder assigned yet.
//
// Overlap policy: the longer span wins; on equal length the rule earlier in
// the registry wins; then the earlier start. Losing spans are dropped whole.
func detect(text string, rules []*Rule) []Detection {
	if len(rules) == 0 || text == "" {
		return nil
	}

	existing := FindPlaceholders(text)

	var candidates []candidate
	for order, rule := range rules {
		for _, loc := range rule.matcher.FindAllStringSubmatchIndex(text, -1) {
			start, end := matchSpan(loc)
			if start >= end {
				continue
			}
			if isBracketed(text[start:end]) || overlapsAny(start, end, existing) {
				continue
			}
			candidates = append(candidates, candidate{rule: rule, order: order, start: start, end: end})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		li := candidates[i].end - candidates[i].start
		lj := candidates[j].end - candidates[j].start
		if li != lj {
			return li > lj
		}
		if candidates[i].order != candidates[j].order {
			return candidates[i].order < candidates[j].order
		}
		return candidates[i].start < candidates[j].start
	})

	// accepted stays sorted by start and non-overlapping, so ends are sorted too.
	accepted := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		i := sort.Search(len(accepted), func(k int) bool { return accepted[k].start >= c.end })
		if i > 0 && accepted[i-1].end > c.start {
			continue
		}
		accepted = slices.Insert(accepted, i, c)
	}

	detections := make([]Detection, len(accepted))
	for i, c := range accepted {
		detections[i] = Detection{
			RuleKey:     c.rule.Key,
			Description: c.rule.Description,
			Original:    text[c.start:c.end],
			Start:       c.start,
			End:         c.end,
		}
	}
	return detections
}

// matchSpan picks the first participating capture group, or the whole match
// when the expression has no groups or none participated.
func matchSpan(loc []int) (int, int) {
	for g := 2; g+1 < len(loc); g += 2 {
		if loc[g] >= 0 && loc[g+1] > loc[g] {
			return loc[g], loc[g+1]
		}
	}
	return loc[0], loc[1]
}

// overlapsAny reports whether [start,end) intersects any of the sorted,
// non-overlapping ranges.
func overlapsAny(start, end int, ranges [][]int) bool {
	i := sort.Search(len(ranges), func(k int) bool { return ranges[k][1] > start })
	return i < len(ranges) && ranges[i][0] < end
}
