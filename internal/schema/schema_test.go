package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func postsSchema() *ContentSchema {
	return &ContentSchema{
		Required: []string{"title"},
		Fields: map[string]FieldDef{
			"title": {Type: "string"},
			"draft": {Type: "bool"},
		},
		Paths: map[string]*ContentSchema{
			"posts": {
				Required: []string{"created"},
				Fields: map[string]FieldDef{
					"created":    {Type: "date"},
					"categories": {Type: "list"},
				},
			},
		},
	}
}

func TestResolvePath_ChainsRootToDeepest(t *testing.T) {
	s := postsSchema()
	nodes := s.ResolvePath("posts/hello")
	assert.Len(t, nodes, 2)
	nodes = s.ResolvePath("about")
	assert.Len(t, nodes, 1)
}

func TestValidate_MergedRequirements(t *testing.T) {
	s := postsSchema()

	violations := s.Validate("posts/hello", map[string]any{
		"title":   "Hello",
		"created": time.Now(),
	})
	assert.Empty(t, violations)

	violations = s.Validate("posts/hello", map[string]any{"title": "Hello"})
	require.Len(t, violations, 1)
	assert.Equal(t, "created", violations[0].Field)
}

func TestValidate_TypeMismatch(t *testing.T) {
	s := postsSchema()
	violations := s.Validate("posts/x", map[string]any{
		"title":      "ok",
		"created":    "not a date",
		"categories": "not a list",
	})
	fields := map[string]bool{}
	for _, v := range violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["created"])
	assert.True(t, fields["categories"])
}

func TestValidate_RootOnlyForNonMatchingPaths(t *testing.T) {
	s := postsSchema()
	violations := s.Validate("about", map[string]any{})
	require.Len(t, violations, 1)
	assert.Equal(t, "title", violations[0].Field)
}

func TestValidate_StringConstraints(t *testing.T) {
	s := &ContentSchema{
		Fields: map[string]FieldDef{
			"slug":  {Type: "string", Pattern: `^[a-z0-9-]+$`},
			"title": {Type: "string", MaxLength: intp(10)},
		},
	}

	assert.Empty(t, s.Validate("x", map[string]any{"slug": "my-post-1", "title": "short"}))

	violations := s.Validate("x", map[string]any{"slug": "Bad Slug!", "title": "way past the limit"})
	messages := map[string]string{}
	for _, v := range violations {
		messages[v.Field] = v.Message
	}
	assert.Contains(t, messages["slug"], "does not match pattern")
	assert.Contains(t, messages["title"], "exceeds max length 10")
}

func TestValidate_ListConstraints(t *testing.T) {
	s := &ContentSchema{
		Fields: map[string]FieldDef{
			"categories": {
				Type:        "list",
				MinItems:    intp(1),
				MaxItems:    intp(3),
				MustContain: []any{"news"},
			},
		},
	}

	assert.Empty(t, s.Validate("x", map[string]any{"categories": []any{"news", "go"}}))

	violations := s.Validate("x", map[string]any{"categories": []any{}})
	var msgs []string
	for _, v := range violations {
		msgs = append(msgs, v.Message)
	}
	assert.Contains(t, msgs, "missing value news")
	assert.Contains(t, msgs, "must contain at least 1 value(s)")

	violations = s.Validate("x", map[string]any{"categories": []any{"news", "a", "b", "c"}})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "exceeds values limit")
}

func TestValidate_ObjectFields(t *testing.T) {
	s := &ContentSchema{
		Fields: map[string]FieldDef{
			"extra": {
				Type: "object",
				Schema: map[string]FieldDef{
					"weight": {Type: "string", Pattern: `^\d+$`},
				},
			},
		},
	}

	assert.Empty(t, s.Validate("x", map[string]any{
		"extra": map[string]any{"weight": "42"},
	}))

	violations := s.Validate("x", map[string]any{
		"extra": map[string]any{"weight": "heavy"},
	})
	require.Len(t, violations, 1)
	assert.Equal(t, "extra", violations[0].Field)
	assert.Contains(t, violations[0].Message, "weight:")

	violations = s.Validate("x", map[string]any{"extra": "not an object"})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "expected object")
}

func TestValidate_ConditionalRuleEnforcesThen(t *testing.T) {
	s := &ContentSchema{
		Rules: []ValidationRule{{
			If: map[string]any{"draft": false},
			Then: RuleAction{
				Required: []string{"description"},
				Fields: map[string]FieldDef{
					"description": {Type: "string", MaxLength: intp(80)},
				},
			},
		}},
	}

	// Condition met, requirement satisfied.
	assert.Empty(t, s.Validate("x", map[string]any{
		"draft":       false,
		"description": "ready to publish",
	}))

	// Condition met, requirement missing.
	violations := s.Validate("x", map[string]any{"draft": false})
	require.Len(t, violations, 1)
	assert.Equal(t, "description", violations[0].Field)

	// Condition not met: nothing enforced.
	assert.Empty(t, s.Validate("x", map[string]any{"draft": true}))
}

func TestValidate_RuleConditionErrorsSurface(t *testing.T) {
	s := &ContentSchema{
		Rules: []ValidationRule{{
			If:   map[string]any{"draft": false},
			Then: RuleAction{Required: []string{"description"}},
		}},
	}

	// Missing condition field is an error, not a silent non-match.
	violations := s.Validate("x", map[string]any{})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "missing condition field")

	// Type mismatch in the condition field likewise.
	violations = s.Validate("x", map[string]any{"draft": "false"})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "type mismatch in condition field")
}

func TestValidate_RulesMergeAcrossPathChain(t *testing.T) {
	s := &ContentSchema{
		Rules: []ValidationRule{{
			If:   map[string]any{"kind": "page"},
			Then: RuleAction{Required: []string{"title"}},
		}},
		Paths: map[string]*ContentSchema{
			"posts": {
				Rules: []ValidationRule{{
					If:   map[string]any{"kind": "page"},
					Then: RuleAction{Required: []string{"created"}},
				}},
			},
		},
	}

	violations := s.Validate("posts/hello", map[string]any{"kind": "page"})
	fields := map[string]bool{}
	for _, v := range violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["created"])
}

func TestValuesEqual_NormalizesNumericKinds(t *testing.T) {
	assert.True(t, valuesEqual(int64(3), int64(3)))
	assert.True(t, valuesEqual(int64(3), float64(3)))
	assert.False(t, valuesEqual(int64(3), "3"))
}
