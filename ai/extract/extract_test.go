package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONPlainObject(t *testing.T) {
	raw := `{"summary":"short","key_points":["a","b"]}`
	assert.Equal(t, raw, JSON(raw))
}

func TestJSONFencedBlock(t *testing.T) {
	raw := "```json\n{\"summary\":\"short\"}\n```"
	assert.Equal(t, `{"summary":"short"}`, JSON(raw))
}

func TestJSONBareFence(t *testing.T) {
	raw := "```\n[1,2,3]\n```"
	assert.Equal(t, `[1,2,3]`, JSON(raw))
}

func TestJSONSurroundedByProse(t *testing.T) {
	raw := `Sure! Here is the result you asked for:

{"summary":"the gist","key_points":["one"]}

Let me know if you need anything else.`
	got := JSON(raw)
	assert.Equal(t, `{"summary":"the gist","key_points":["one"]}`, got)
}

func TestJSONBracesInsideStrings(t *testing.T) {
	// The closing brace inside the string value must not end the scan early
	raw := `noise {"summary":"uses { and } freely","n":1} trailing`
	got := JSON(raw)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, "uses { and } freely", parsed["summary"])
}

func TestJSONEscapedQuotesInsideStrings(t *testing.T) {
	raw := `prefix {"q":"she said \"hi {\" to me"} suffix`
	got := JSON(raw)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, `she said "hi {" to me`, parsed["q"])
}

func TestJSONArrayWhenNoObject(t *testing.T) {
	raw := `The questions are: [{"q":"one"},{"q":"two"}]`
	got := JSON(raw)
	assert.Equal(t, `[{"q":"one"},{"q":"two"}]`, got)
}

func TestJSONPrefersFirstObject(t *testing.T) {
	raw := `{"first":1} {"second":2}`
	assert.Equal(t, `{"first":1}`, JSON(raw))
}

func TestJSONBraceInProseBeforeDocument(t *testing.T) {
	// A brace quoted in leading prose must not anchor the scan
	raw := `He said "wrap it in { and }" before replying: {"summary":"ok","key_points":["one"]}`
	got := JSON(raw)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, "ok", parsed["summary"])
}

func TestJSONUnclosedBraceInProseBeforeDocument(t *testing.T) {
	raw := "An opening { with no partner, then {\"summary\":\"recovered\"} at last"
	assert.Equal(t, `{"summary":"recovered"}`, JSON(raw))
}

func TestJSONNoDocumentReturnsInput(t *testing.T) {
	raw := "  just plain prose, no structure  "
	assert.Equal(t, "just plain prose, no structure", JSON(raw))
}

func TestJSONUnbalancedReturnsInput(t *testing.T) {
	raw := `{"truncated": "the model stopped mid-`
	assert.Equal(t, raw, JSON(raw))
}

func TestJSONNestedObjects(t *testing.T) {
	raw := `reply: {"outer":{"inner":{"deep":true}},"done":1} end`
	got := JSON(raw)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Contains(t, parsed, "outer")
	assert.Contains(t, parsed, "done")
}
