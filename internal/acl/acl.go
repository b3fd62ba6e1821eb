// Package acl resolves path-based access rules with longest-prefix matching
// and a role-based admin override.
package acl

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"perimgate/internal/model"
)

// Rule guards one path prefix. A request matches the rule with the longest
// prefix that is a prefix of its path; the identity then has to satisfy at
// least one of the allow lists.
type Rule struct {
	PathPrefix string   `json:"pathPrefix"`
	Roles      []string `json:"roles,omitempty"`
	SubjectIDs []string `json:"subjectIds,omitempty"`
	Usernames  []string `json:"usernames,omitempty"` // matched case-insensitively
}

// RuleSet is the read-only rule index, built once at load time and sorted by
// prefix specificity so per-request evaluation never re-sorts.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet validates and indexes rules. Duplicate path prefixes are
// rejected: the match order between equal prefixes would be undefined, so
// distinct prefixes are required up front.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	seen := make(map[string]struct{}, len(rules))
	idx := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.PathPrefix == "" || !strings.HasPrefix(r.PathPrefix, "/") {
			return nil, fmt.Errorf("acl: rule prefix %q must start with /", r.PathPrefix)
		}
		if _, dup := seen[r.PathPrefix]; dup {
			return nil, fmt.Errorf("acl: duplicate rule prefix %q", r.PathPrefix)
		}
		seen[r.PathPrefix] = struct{}{}
		idx = append(idx, r)
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return len(idx[i].PathPrefix) > len(idx[j].PathPrefix)
	})
	return &RuleSet{rules: idx}, nil
}

// LoadFile reads a JSON rule file: an array of Rule objects.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("acl: read %s: %w", path, err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("acl: parse %s: %w", path, err)
	}
	return NewRuleSet(rules)
}

// Empty returns a rule set guarding nothing; every path is allowed.
func Empty() *RuleSet { return &RuleSet{} }

// Allowed reports whether the identity may access the path. Admins pass
// unconditionally; a path outside every guarded tree is allowed for any
// authenticated identity. Pure function of (rules, identity, path).
func (s *RuleSet) Allowed(id model.Identity, path string) bool {
	if id.Role == model.RoleAdmin {
		return true
	}
	rule, ok := s.Match(path)
	if !ok {
		return true
	}
	for _, role := range rule.Roles {
		if model.ParseRole(role) == id.Role {
			return true
		}
	}
	for _, sub := range rule.SubjectIDs {
		if sub == id.SubjectID {
			return true
		}
	}
	for _, name := range rule.Usernames {
		if model.EqualUsername(name, id.Username) {
			return true
		}
	}
	return false
}

// Match returns the longest-prefix rule covering the path, if any. Rules are
// pre-sorted by descending prefix length, so the first hit wins.
func (s *RuleSet) Match(path string) (Rule, bool) {
	for _, r := range s.rules {
		if strings.HasPrefix(path, r.PathPrefix) {
			return r, true
		}
	}
	return Rule{}, false
}
