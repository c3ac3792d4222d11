package ticket

import "strings"

// categoryRule is one row of the category decision table.
type categoryRule struct {
	name     string
	category string
	applies  func(f Fields, lowerText string) bool
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// categoryTable is evaluated top to bottom. Ticket-type keywords come before
// the structural seated check; the last row always applies.
var categoryTable = []categoryRule{
	{
		name:     "vip_keyword",
		category: CategoryVIP,
		applies: func(_ Fields, t string) bool {
			return containsAny(t, "vip", "premium")
		},
	},
	{
		name:     "standing_keyword",
		category: CategoryGeneralAdmission,
		applies: func(_ Fields, t string) bool {
			return containsAny(t, "standing", "general admission")
		},
	},
	{
		name:     "seat_assigned",
		category: CategorySeated,
		applies: func(f Fields, _ string) bool {
			return f.Section != "" && f.Row != "" && f.Seat != ""
		},
	},
	{
		name:     "default",
		category: CategoryGeneral,
		applies:  func(Fields, string) bool { return true },
	},
}

// Categorize picks the category for fields extracted from text.
func Categorize(f Fields, text string) string {
	lower := strings.ToLower(text)
	category, _ := firstMatch(categoryTable, func(r categoryRule) (string, bool) {
		return r.category, r.applies(f, lower)
	})
	return category
}
