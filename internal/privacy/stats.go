package privacy

// Summarize counts detections per rule key.
func Summarize(detections []Detection) Summary {
	summary := make(Summary)
	for _, d := range detections {
		st := summary[d.RuleKey]
		st.Description = d.Description
		st.Count++
		summary[d.RuleKey] = st
	}
	return summary
}
