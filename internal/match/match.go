// Package match classifies file content against a table of
// cryptography-indicator categories.
package match

import (
	"fmt"
	"regexp"
)

// Category is a named, ordered list of regular expressions. Expressions are
// compiled case-insensitively and are not anchored.
type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// Table is an ordered list of categories. Order only affects the order of
// names returned by Matcher.Match, never which names are returned.
type Table []Category

// DefaultTable returns the canonical category table.
func DefaultTable() Table {
	return Table{
		{Name: "aes", Patterns: []string{
			`\baes\b`,
			`aes-?\d+`,
			`AESKey`,
			`AES\.encrypt`,
			`AES\.decrypt`,
		}},
		{Name: "rsa", Patterns: []string{
			`\brsa\b`,
			`rsa-?\d+`,
			`RSAPublicKey`,
			`RSAPrivateKey`,
			`RSAKey`,
		}},
		{Name: "signing", Patterns: []string{
			`sign(ing)?`,
			`verify(ing)?`,
			`signature`,
			`digital[_ ]signature`,
		}},
		{Name: "cert", Patterns: []string{
			`certificate`,
			`x\.509`,
			`public[_ ]?key`,
			`private[_ ]?key`,
			`pem`,
			`der`,
		}},
		{Name: "hash", Patterns: []string{
			`sha-?\d+`,
			`hash`,
			`pbkdf2`,
			`scrypt`,
			`bcrypt`,
			`HMAC`,
		}},
		{Name: "keys", Patterns: []string{
			`api[_ ]?key`,
			`secret`,
			`token`,
		}},
	}
}

// Names returns the category names in table order.
func (t Table) Names() []string {
	names := make([]string, len(t))
	for i, c := range t {
		names[i] = c.Name
	}
	return names
}

type compiledCategory struct {
	name     string
	patterns []*regexp.Regexp
}

// Matcher is a compiled Table. It is safe for concurrent use.
type Matcher struct {
	categories []compiledCategory
}

// Compile compiles every expression in t. Duplicate or empty category names
// and invalid expressions are rejected.
func Compile(t Table) (*Matcher, error) {
	seen := make(map[string]bool, len(t))
	m := &Matcher{categories: make([]compiledCategory, 0, len(t))}
	for _, c := range t {
		if c.Name == "" {
			return nil, fmt.Errorf("match: category with empty name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("match: duplicate category %q", c.Name)
		}
		seen[c.Name] = true

		cc := compiledCategory{name: c.Name}
		for _, p := range c.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("match: category %s: pattern %q: %w", c.Name, p, err)
			}
			cc.patterns = append(cc.patterns, re)
		}
		m.categories = append(m.categories, cc)
	}
	return m, nil
}

// MustCompile is like Compile but panics on error. Intended for tables
// known to be valid, such as DefaultTable.
func MustCompile(t Table) *Matcher {
	m, err := Compile(t)
	if err != nil {
		panic(err)
	}
	return m
}

// Match returns the names of all categories with at least one expression
// matching anywhere in text, in table order. A nil result means no match.
func (m *Matcher) Match(text []byte) []string {
	var matched []string
	for _, c := range m.categories {
		for _, re := range c.patterns {
			if re.Match(text) {
				matched = append(matched, c.name)
				break
			}
		}
	}
	return matched
}

// Categories returns the category names in table order.
func (m *Matcher) Categories() []string {
	names := make([]string, len(m.categories))
	for i, c := range m.categories {
		names[i] = c.name
	}
	return names
}
