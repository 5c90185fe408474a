package harvest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// IdentifierLength is the fixed length of a product identifier
const IdentifierLength = 10

var identifierPattern = regexp.MustCompile(`(?i)^[A-Z0-9]{10}$`)

// Identifier is a 10-character alphanumeric product code (ASIN), stored upper-case
type Identifier string

// ParseIdentifier validates raw and returns its normalized form
func ParseIdentifier(raw string) (Identifier, error) {
	if len(raw) != IdentifierLength || !identifierPattern.MatchString(raw) {
		return "", fmt.Errorf("invalid identifier %q", raw)
	}
	return Identifier(strings.ToUpper(raw)), nil
}

// IsValidIdentifier reports whether raw is a syntactically valid identifier
func IsValidIdentifier(raw string) bool {
	_, err := ParseIdentifier(raw)
	return err == nil
}

// String returns the identifier as a plain string
func (id Identifier) String() string {
	return string(id)
}

// ResultSet is the deduplicated set of identifiers accumulated by one collection run.
// The zero value is not usable; create one with NewResultSet.
type ResultSet map[Identifier]struct{}

// NewResultSet creates a set holding every valid value in ids; invalid values are dropped
func NewResultSet(ids ...string) ResultSet {
	set := make(ResultSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add inserts raw if it is a valid identifier. It reports whether the set grew.
func (s ResultSet) Add(raw string) bool {
	id, err := ParseIdentifier(raw)
	if err != nil {
		return false
	}
	return s.Insert(id)
}

// Insert adds an already-validated identifier. It reports whether the set grew.
func (s ResultSet) Insert(id Identifier) bool {
	if _, exists := s[id]; exists {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Contains reports whether raw is in the set
func (s ResultSet) Contains(raw string) bool {
	id, err := ParseIdentifier(raw)
	if err != nil {
		return false
	}
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers in the set
func (s ResultSet) Len() int {
	return len(s)
}

// Merge adds every identifier of other into s and returns how many were new
func (s ResultSet) Merge(other ResultSet) int {
	added := 0
	for id := range other {
		if s.Insert(id) {
			added++
		}
	}
	return added
}

// Union returns a new set holding the identifiers of both a and b
func Union(a, b ResultSet) ResultSet {
	out := make(ResultSet, len(a)+len(b))
	out.Merge(a)
	out.Merge(b)
	return out
}

// Equal reports whether both sets hold the same identifiers
func (s ResultSet) Equal(other ResultSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Strings returns the identifiers sorted, for stable output
func (s ResultSet) Strings() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}
