// Package chunks derives the cache-group rules that partition bundled modules
// into named output chunks.
package chunks

import (
	"bytes"
	"encoding/json"
	"regexp"
)

const (
	// ExplicitPriority is shared by every explicit and derived cache group so
	// that ownership rules, not generic vendor bucketing, decide placement.
	ExplicitPriority = -10
	// DefaultChunk receives modules no rule matches.
	DefaultChunk = "default"
)

// Predicate matches a bundled module's resolved path. Every AllOf pattern must
// match, at least one AnyOf pattern must match when any are set, and no NoneOf
// pattern may match.
type Predicate struct {
	AllOf  []*regexp.Regexp
	AnyOf  []*regexp.Regexp
	NoneOf []*regexp.Regexp
}

func (p Predicate) Match(resource string) bool {
	for _, re := range p.AllOf {
		if !re.MatchString(resource) {
			return false
		}
	}
	if len(p.AnyOf) > 0 {
		matched := false
		for _, re := range p.AnyOf {
			if re.MatchString(resource) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, re := range p.NoneOf {
		if re.MatchString(resource) {
			return false
		}
	}
	return true
}

func (p Predicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AllOf  []string `json:"allOf,omitempty"`
		AnyOf  []string `json:"anyOf,omitempty"`
		NoneOf []string `json:"noneOf,omitempty"`
	}{
		AllOf:  patterns(p.AllOf),
		AnyOf:  patterns(p.AnyOf),
		NoneOf: patterns(p.NoneOf),
	})
}

func patterns(res []*regexp.Regexp) []string {
	if len(res) == 0 {
		return nil
	}
	out := make([]string, len(res))
	for i, re := range res {
		out[i] = re.String()
	}
	return out
}

// Rule is one named cache group.
type Rule struct {
	Key      string    `json:"-"`
	Name     string    `json:"name"`
	Priority int       `json:"priority"`
	Test     Predicate `json:"test"`
	Chunks   string    `json:"chunks,omitempty"`
	Enforce  bool      `json:"enforce,omitempty"`
}

// Rules is an ordered set of cache groups. Order plus priority decides the
// chunk a module lands in.
type Rules []Rule

// Assign returns the chunk name for a resolved module path. The highest
// priority match wins and equal priorities resolve to the earliest rule.
func (r Rules) Assign(resource string) string {
	best := -1
	for i, rule := range r {
		if !rule.Test.Match(resource) {
			continue
		}
		if best == -1 || rule.Priority > r[best].Priority {
			best = i
		}
	}
	if best == -1 {
		return DefaultChunk
	}
	return r[best].Name
}

// Keys returns the cache group keys in evaluation order.
func (r Rules) Keys() []string {
	keys := make([]string, len(r))
	for i, rule := range r {
		keys[i] = rule.Key
	}
	return keys
}

// MarshalJSON writes the rules as a JSON object keyed by cache group, keeping
// evaluation order.
func (r Rules) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rule := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(rule.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(rule)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
