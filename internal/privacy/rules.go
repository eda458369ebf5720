package privacy

// builtinDef describes a rule seeded into every new registry.
type builtinDef struct {
	Key         string
	Label       string
	Description string
	Source      string
}

// builtinDefs is the canonical order of the shipped rules. Where an
// expression has capture groups, the first participating group is the
// masked span (e.g. the name inside "田中太郎さん").
var builtinDefs = []builtinDef{
	{
		Key:         "name",
		Label:       "Person",
		Description: "Personal name",
		Source: `(\p{Han}{2,6})(?:さん|様|氏|くん|ちゃん|先生)` +
			`|\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`,
	},
	{
		Key:         "email",
		Label:       "Email",
		Description: "Email address",
		Source:      `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
	},
	{
		Key:         "phone",
		Label:       "Phone",
		Description: "Phone number",
		Source: `\+\d{1,3}[\s\-]?\(?\d{1,4}\)?(?:[\s\-]?\d{2,4}){2,3}` +
			`|\b0\d{1,4}-\d{1,4}-\d{3,4}\b` +
			`|\b0[5789]0\d{8}\b` +
			`|\(?\b\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`,
	},
	{
		Key:         "address",
		Label:       "Address",
		Description: "Postal address",
		Source: `〒\s?\d{3}-\d{4}` +
			`|(?:東京都|北海道|京都府|大阪府|\p{Han}{2,3}県)\p{Han}{1,6}?[市区町村郡](?:\p{Han}|\p{Katakana}|[0-9０-９\-－ー])*` +
			`|\b\d{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Way|Court|Ct)\b\.?`,
	},
	{
		Key:         "organization",
		Label:       "Organization",
		Description: "Organization name",
		Source: `(?:株式会社|有限会社|合同会社)[\p{Han}\p{Katakana}A-Za-z0-9ー]+` +
			`|[\p{Han}\p{Katakana}A-Za-z0-9ー]+(?:株式会社|有限会社|合同会社)` +
			`|\b[A-Z][A-Za-z0-9&\-]*(?:\s+[A-Z][A-Za-z0-9&\-]*)*,?\s+(?:Inc|Corp|Corporation|LLC|Ltd|Co|GmbH|Company)\b\.?`,
	},
}

// BuiltinKeys returns the keys of the shipped rules in canonical order.
func BuiltinKeys() []string {
	keys := make([]string, len(builtinDefs))
	for i, def := range builtinDefs {
		keys[i] = def.Key
	}
	return keys
}
