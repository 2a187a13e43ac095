// Package schema validates content metadata against the site's optional
// content_schema configuration. Schemas nest per content path; the chain
// from the root to the deepest matching path is merged before validation.
package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// FieldDef constrains one metadata field. Type selects which of the
// optional constraints apply.
type FieldDef struct {
	// Type is one of string, bool, date, list (alias: array), object.
	Type string `toml:"type"`

	// String constraints.
	MaxLength *int   `toml:"max_length"`
	Pattern   string `toml:"pattern"`

	// List constraints.
	MinItems    *int  `toml:"min_items"`
	MaxItems    *int  `toml:"max_items"`
	MustContain []any `toml:"must_contain"`

	// Object fields: the nested per-key schema.
	Schema map[string]FieldDef `toml:"schema"`
}

// RuleAction is what a matched conditional rule enforces.
type RuleAction struct {
	Required []string            `toml:"required"`
	Fields   map[string]FieldDef `toml:"fields"`
}

// ValidationRule applies extra requirements when every condition field in
// the metadata equals its expected value.
type ValidationRule struct {
	If   map[string]any `toml:"if"`
	Then RuleAction     `toml:"then"`
}

// ContentSchema is a (possibly nested) metadata schema node.
type ContentSchema struct {
	Required []string                  `toml:"required"`
	Fields   map[string]FieldDef       `toml:"fields"`
	Rules    []ValidationRule          `toml:"rules"`
	Paths    map[string]*ContentSchema `toml:"paths"`
}

// Violation is one failed constraint.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ResolvePath walks the schema hierarchy for a content path like
// "posts/2024/hello" and returns the chain of matching nodes, root first.
func (s *ContentSchema) ResolvePath(contentPath string) []*ContentSchema {
	nodes := []*ContentSchema{s}
	current := s
	for _, component := range strings.Split(contentPath, "/") {
		if component == "" {
			continue
		}
		child, ok := current.Paths[component]
		if !ok {
			break
		}
		nodes = append(nodes, child)
		current = child
	}
	return nodes
}

// Merge folds a node chain into one flat requirement set; later (more
// specific) nodes override field definitions from earlier ones, and rules
// accumulate in chain order.
func Merge(nodes []*ContentSchema) *ContentSchema {
	merged := &ContentSchema{Fields: map[string]FieldDef{}}
	seen := map[string]bool{}
	for _, node := range nodes {
		for _, req := range node.Required {
			if !seen[req] {
				seen[req] = true
				merged.Required = append(merged.Required, req)
			}
		}
		for name, def := range node.Fields {
			merged.Fields[name] = def
		}
		merged.Rules = append(merged.Rules, node.Rules...)
	}
	return merged
}

// Validate checks a metadata map against the merged schema for the given
// content path: required fields, per-field constraints, then the
// conditional rules.
func (s *ContentSchema) Validate(contentPath string, meta map[string]any) []Violation {
	merged := Merge(s.ResolvePath(contentPath))
	var violations []Violation

	requireFields(merged.Required, meta, &violations)
	checkFields(merged.Fields, meta, &violations)

	for _, rule := range merged.Rules {
		applies, err := rule.applies(meta)
		if err != nil {
			violations = append(violations, Violation{Message: err.Error()})
			continue
		}
		if !applies {
			continue
		}
		requireFields(rule.Then.Required, meta, &violations)
		checkFields(rule.Then.Fields, meta, &violations)
	}
	return violations
}

func requireFields(required []string, meta map[string]any, violations *[]Violation) {
	for _, field := range required {
		if _, ok := meta[field]; !ok {
			*violations = append(*violations, Violation{Field: field, Message: "missing required field"})
		}
	}
}

func checkFields(fields map[string]FieldDef, meta map[string]any, violations *[]Violation) {
	for field, def := range fields {
		value, ok := meta[field]
		if !ok {
			continue
		}
		for _, msg := range def.check(value) {
			*violations = append(*violations, Violation{Field: field, Message: msg})
		}
	}
}

// applies reports whether every condition field equals its expected value.
// A missing condition field or a type mismatch is an error, not a
// non-match, so misconfigured rules surface instead of silently passing.
func (r ValidationRule) applies(meta map[string]any) (bool, error) {
	result := true
	for field, expected := range r.If {
		actual, ok := meta[field]
		if !ok {
			return false, fmt.Errorf("rule condition: missing condition field %q", field)
		}
		if !sameTypeName(actual, expected) {
			return false, fmt.Errorf("rule condition: type mismatch in condition field %q: expected %s, got %s",
				field, typeName(expected), typeName(actual))
		}
		result = result && valuesEqual(actual, expected)
	}
	return result, nil
}

// check validates a metadata value against one field definition, returning
// constraint messages.
func (d FieldDef) check(value any) []string {
	switch d.Type {
	case "", "any":
		return nil

	case "string":
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("expected string, got %s", typeName(value))}
		}
		var msgs []string
		if d.MaxLength != nil && len(s) > *d.MaxLength {
			msgs = append(msgs, fmt.Sprintf("exceeds max length %d", *d.MaxLength))
		}
		if d.Pattern != "" {
			re, err := regexp.Compile(d.Pattern)
			if err != nil {
				msgs = append(msgs, fmt.Sprintf("invalid pattern %q: %v", d.Pattern, err))
			} else if !re.MatchString(s) {
				msgs = append(msgs, fmt.Sprintf("does not match pattern %q", d.Pattern))
			}
		}
		return msgs

	case "bool", "boolean":
		if _, ok := value.(bool); !ok {
			return []string{fmt.Sprintf("expected bool, got %s", typeName(value))}
		}
		return nil

	case "date":
		if _, ok := value.(time.Time); !ok {
			return []string{fmt.Sprintf("expected date, got %s", typeName(value))}
		}
		return nil

	case "list", "array":
		items, ok := asList(value)
		if !ok {
			return []string{fmt.Sprintf("expected list, got %s", typeName(value))}
		}
		var msgs []string
		for _, required := range d.MustContain {
			if !listContains(items, required) {
				msgs = append(msgs, fmt.Sprintf("missing value %v", required))
			}
		}
		if d.MinItems != nil && len(items) < *d.MinItems {
			msgs = append(msgs, fmt.Sprintf("must contain at least %d value(s)", *d.MinItems))
		}
		if d.MaxItems != nil && len(items) > *d.MaxItems {
			msgs = append(msgs, fmt.Sprintf("exceeds values limit (expected at most %d value(s))", *d.MaxItems))
		}
		return msgs

	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("expected object, got %s", typeName(value))}
		}
		var msgs []string
		for key, nested := range d.Schema {
			inner, ok := obj[key]
			if !ok {
				continue
			}
			for _, msg := range nested.check(inner) {
				msgs = append(msgs, fmt.Sprintf("%s: %s", key, msg))
			}
		}
		return msgs

	default:
		return []string{fmt.Sprintf("unknown schema type %q", d.Type)}
	}
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, true
	default:
		return nil, false
	}
}

func listContains(items []any, want any) bool {
	for _, item := range items {
		if valuesEqual(item, want) {
			return true
		}
	}
	return false
}

// valuesEqual compares a metadata value with a schema-supplied one,
// normalizing across the numeric representations the two decoders produce.
func valuesEqual(a, b any) bool {
	if na, ok := asFloat(a); ok {
		if nb, ok := asFloat(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// typeName labels a value for violation messages, collapsing the numeric
// kinds the metadata and TOML decoders produce.
func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int64, float64:
		return "number"
	case time.Time:
		return "date"
	case []any, []string:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// sameTypeName reports whether two values have the same surface type for
// rule-condition purposes.
func sameTypeName(a, b any) bool {
	return typeName(a) == typeName(b)
}
