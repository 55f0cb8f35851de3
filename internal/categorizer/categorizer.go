// Package categorizer maps biller and merchant names onto spending
// categories. Classification is a pure keyword-table lookup so the
// rules can be tested and extended without touching the operations
// that tag postings.
package categorizer

import "strings"

// DefaultCategory is returned when no rule matches.
const DefaultCategory = "Bills & Utilities"

// Rule binds one lowercase keyword to a category. Matching is
// case-insensitive substring containment.
type Rule struct {
	Keyword  string
	Category string
}

// DefaultRules is the built-in rule table. Order matters: the first
// matching rule wins.
var DefaultRules = []Rule{
	{"netflix", "Entertainment"},
	{"prime", "Entertainment"},
	{"spotify", "Entertainment"},
	{"hotstar", "Entertainment"},
	{"disney", "Entertainment"},
	{"hbo", "Entertainment"},
	{"movie", "Entertainment"},
	{"cinema", "Entertainment"},
	{"food", "Food"},
	{"zomato", "Food"},
	{"swiggy", "Food"},
	{"burger", "Food"},
	{"pizza", "Food"},
	{"restaurant", "Food"},
	{"health", "Health"},
	{"doctor", "Health"},
	{"pharmacy", "Health"},
	{"clinic", "Health"},
	{"hospital", "Health"},
	{"gym", "Health"},
	{"fitness", "Health"},
	{"uber", "Transport"},
	{"ola", "Transport"},
	{"fuel", "Transport"},
	{"petrol", "Transport"},
	{"transport", "Transport"},
	{"bus", "Transport"},
	{"train", "Transport"},
	{"flight", "Transport"},
	{"shop", "Shopping"},
	{"amazon", "Shopping"},
	{"flipkart", "Shopping"},
	{"myntra", "Shopping"},
	{"store", "Shopping"},
}

// Categorizer holds a loaded rule table. The zero value is not usable;
// construct with New.
type Categorizer struct {
	rules []Rule
}

// New builds a Categorizer from the given rules. Keywords are
// normalized to lowercase once at load time.
func New(rules []Rule) *Categorizer {
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		normalized[i] = Rule{
			Keyword:  strings.ToLower(strings.TrimSpace(r.Keyword)),
			Category: r.Category,
		}
	}
	return &Categorizer{rules: normalized}
}

// NewDefault builds a Categorizer with the built-in table.
func NewDefault() *Categorizer {
	return New(DefaultRules)
}

// Categorize returns the category for a biller or merchant name. It is
// total: unmatched names fall back to DefaultCategory.
func (c *Categorizer) Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, r := range c.rules {
		if r.Keyword != "" && strings.Contains(lower, r.Keyword) {
			return r.Category
		}
	}
	return DefaultCategory
}
