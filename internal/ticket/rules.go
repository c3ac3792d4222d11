package ticket

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule is one row of the extraction table.
type Rule struct {
	Field   string   `yaml:"field"`
	Name    string   `yaml:"name"`
	Pattern string   `yaml:"pattern"`
	TrimAt  []string `yaml:"trim_at"`
	Strip   []string `yaml:"strip"`

	re     *regexp.Regexp
	trimAt map[string]struct{}
}

// Match returns the value this rule extracts from text.
func (r *Rule) Match(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	value := m[0]
	if len(m) > 1 {
		value = m[1]
	}
	value = r.cutAtLabel(strings.TrimSpace(value))
	for _, s := range r.Strip {
		value = strings.ReplaceAll(value, s, "")
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (r *Rule) cutAtLabel(value string) string {
	if len(r.trimAt) == 0 {
		return value
	}
	words := strings.Fields(value)
	for i, w := range words {
		if _, ok := r.trimAt[strings.ToUpper(w)]; ok {
			return strings.Join(words[:i], " ")
		}
	}
	return value
}

// RuleSet is an ordered extraction table grouped by field.
type RuleSet struct {
	Rules   []*Rule
	byField map[string][]*Rule
}

// ForField returns the rules for field in priority order.
func (rs *RuleSet) ForField(field string) []*Rule {
	return rs.byField[field]
}

type rulesDocument struct {
	Rules []*Rule `yaml:"rules"`
}

// ParseRules compiles a YAML rule table. Category is derived and cannot have
// rules; every pattern is compiled case-insensitive.
func ParseRules(data []byte) (*RuleSet, error) {
	var doc rulesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("parse rules: no rules defined")
	}

	rs := &RuleSet{byField: make(map[string][]*Rule)}
	for i, r := range doc.Rules {
		if r == nil {
			return nil, fmt.Errorf("rule %d: empty entry", i)
		}
		if !IsKnownField(r.Field) || r.Field == FieldCategory {
			return nil, fmt.Errorf("rule %d (%s): unsupported field %q", i, r.Name, r.Field)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		r.re = re
		if len(r.TrimAt) > 0 {
			r.trimAt = make(map[string]struct{}, len(r.TrimAt))
			for _, w := range r.TrimAt {
				r.trimAt[strings.ToUpper(w)] = struct{}{}
			}
		}
		if r.Name == "" {
			r.Name = fmt.Sprintf("%s_%d", r.Field, len(rs.byField[r.Field])+1)
		}
		rs.Rules = append(rs.Rules, r)
		rs.byField[r.Field] = append(rs.byField[r.Field], r)
	}
	return rs, nil
}

// LoadRulesFile reads and compiles a rule table from disk.
func LoadRulesFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

var (
	defaultRules     *RuleSet
	defaultRulesOnce sync.Once
)

// DefaultRules returns the built-in table.
func DefaultRules() *RuleSet {
	defaultRulesOnce.Do(func() {
		rs, err := ParseRules(defaultRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("ticket: built-in rules are invalid: %v", err))
		}
		defaultRules = rs
	})
	return defaultRules
}

// firstMatch walks candidates in order and returns the value and index of the
// first one that matches. idx is -1 when nothing matched.
func firstMatch[T any](candidates []T, try func(T) (string, bool)) (value string, idx int) {
	for i, c := range candidates {
		if v, ok := try(c); ok {
			return v, i
		}
	}
	return "", -1
}
