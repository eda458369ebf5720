package privacy

import (
	"sort"
	"strings"
)

// restore substitutes every occurrence of every placeholder in the mapping
// with its original text. Matching is literal. Substituted text is not
// rescanned, placeholders absent from text are ignored, and tokens absent
// from the mapping are left verbatim.
func restore(text string, mapping *MappingTable) string {
	if text == "" || mapping.Len() == 0 {
		return text
	}

	entries := mapping.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		if len(entries[i].Placeholder) != len(entries[j].Placeholder) {
			return len(entries[i].Placeholder) > len(entries[j].Placeholder)
		}
		return entries[i].Placeholder < entries[j].Placeholder
	})

	pairs := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		// An empty key would match between every byte
		if e.Placeholder == "" {
			continue
		}
		pairs = append(pairs, e.Placeholder, e.Original)
	}
	if len(pairs) == 0 {
		return text
	}

	return strings.NewReplacer(pairs...).Replace(text)
}
