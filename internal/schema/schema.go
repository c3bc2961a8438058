package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Field declares one datum an agent must collect before generation.
//
// A field with DependsOn == "" is always required; Priority orders the
// questions asked for such fields. A field with DependsOn set is conditional:
// it is only considered once the governing field has a value, and when
// AllowedValues is non-nil, only when the governing field's value is one of
// them. A nil AllowedValues means "ask once the governing field exists".
type Field struct {
	Name          string
	Question      string
	Priority      int
	DependsOn     string
	AllowedValues []string
}

// Schema is the static description of an agent's required fields.
type Schema struct {
	Name   string
	fields []Field
}

// New builds a schema. Field names must be unique and every DependsOn must
// reference a declared field; schemas are static program data, so violations
// panic.
func New(name string, fields []Field) *Schema {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			panic(fmt.Sprintf("schema %s: duplicate field %q", name, f.Name))
		}
		seen[f.Name] = true
	}
	for _, f := range fields {
		if f.DependsOn != "" && !seen[f.DependsOn] {
			panic(fmt.Sprintf("schema %s: field %q depends on unknown field %q", name, f.Name, f.DependsOn))
		}
	}
	return &Schema{Name: name, fields: fields}
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a declared field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// MissingQuestions computes the ordered list of questions still to ask given
// the accumulated fields. The first element is the next question to present.
//
// Always-required fields are visited in ascending priority; conditional
// fields follow in declaration order and are only evaluated once their
// governing field holds a value. Conditional questions may embed the
// governing field's current value via a {field} placeholder.
func (s *Schema) MissingQuestions(fields map[string]any) []string {
	var questions []string

	always := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		if f.DependsOn == "" {
			always = append(always, f)
		}
	}
	sort.SliceStable(always, func(i, j int) bool { return always[i].Priority < always[j].Priority })
	for _, f := range always {
		if Empty(fields[f.Name]) {
			questions = append(questions, f.Question)
		}
	}

	for _, f := range s.fields {
		if f.DependsOn == "" {
			continue
		}
		governing := fields[f.DependsOn]
		if Empty(governing) {
			continue
		}
		if !Empty(fields[f.Name]) {
			continue
		}
		if f.AllowedValues != nil && !member(governing, f.AllowedValues) {
			continue
		}
		questions = append(questions, substitute(f.Question, f.DependsOn, governing))
	}
	return questions
}

// Empty reports whether a field value counts as "not collected": absent,
// nil, a blank string, or an empty list.
func Empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
		return rv.Len() == 0
	}
	return false
}

func member(v any, allowed []string) bool {
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return true
		}
	}
	return false
}

func substitute(question, field string, value any) string {
	return strings.ReplaceAll(question, "{"+field+"}", fmt.Sprintf("%v", value))
}
