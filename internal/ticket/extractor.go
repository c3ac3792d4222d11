package ticket

// Match records which rule produced a field value.
type Match struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value string `json:"value"`
}

// Extractor applies a RuleSet to OCR text. It is safe for concurrent use.
type Extractor struct {
	rules *RuleSet
}

// NewExtractor uses the built-in rule table when rules is nil.
func NewExtractor(rules *RuleSet) *Extractor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// Extract never fails: fields without a matching rule stay "".
func (e *Extractor) Extract(text string) Fields {
	f, _ := e.ExtractWithMatches(text)
	return f
}

// ExtractWithMatches also reports the winning rule per field.
func (e *Extractor) ExtractWithMatches(text string) (Fields, []Match) {
	norm := NormalizeText(text)

	var (
		f       Fields
		matches []Match
	)
	for _, field := range FieldNames {
		if field == FieldCategory {
			continue
		}
		rules := e.rules.ForField(field)
		value, idx := firstMatch(rules, func(r *Rule) (string, bool) {
			return r.Match(norm)
		})
		if idx < 0 {
			continue
		}
		f = f.With(field, value)
		matches = append(matches, Match{Field: field, Rule: rules[idx].Name, Value: value})
	}

	f.Category = Categorize(f, norm)
	return f, matches
}
