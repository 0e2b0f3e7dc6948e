package ffi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func decodeJSON(t *testing.T, s string) interface{} {
	t.Helper()
	var doc interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	return doc
}

func TestValidate_AcceptsWellFormedManifest(t *testing.T) {
	v := mustValidator(t)
	doc := decodeJSON(t, `{
		"library": [{
			"name": "curl",
			"function": [{
				"c_name": "curl_easy_init",
				"seq_name": "curl.init",
				"stack_effect": "( -- Int )",
				"args": [{"type": "i64", "pass": "value"}],
				"return": {"type": "ptr"}
			}]
		}]
	}`)
	require.NoError(t, v.Validate(doc))
}

func TestValidate_RejectsMissingRequiredField(t *testing.T) {
	v := mustValidator(t)
	doc := decodeJSON(t, `{
		"library": [{
			"name": "curl",
			"function": [{"seq_name": "curl.init", "stack_effect": "( -- Int )"}]
		}]
	}`)
	require.Error(t, v.Validate(doc))
}

func TestValidate_RejectsUnknownPassMode(t *testing.T) {
	v := mustValidator(t)
	doc := decodeJSON(t, `{
		"library": [{
			"name": "curl",
			"function": [{
				"c_name": "curl_easy_init",
				"seq_name": "curl.init",
				"stack_effect": "( -- Int )",
				"args": [{"type": "i64", "pass": "by_magic"}]
			}]
		}]
	}`)
	require.Error(t, v.Validate(doc))
}

func TestDecode_ProducesTypedManifest(t *testing.T) {
	v := mustValidator(t)
	doc := decodeJSON(t, `{
		"library": [{
			"name": "curl",
			"function": [{
				"c_name": "curl_easy_init",
				"seq_name": "curl.init",
				"stack_effect": "( -- Int )"
			}]
		}]
	}`)
	m, err := v.Decode(doc)
	require.NoError(t, err)
	require.Len(t, m.Library, 1)
	require.Equal(t, "curl", m.Library[0].Name)
	require.Equal(t, "curl_easy_init", m.Library[0].Function[0].CName)
}
