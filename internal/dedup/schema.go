package dedup

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const checkDuplicateSchema = `{
  "type": "object",
  "required": ["is_duplicate"],
  "properties": {
    "embedding": {
      "oneOf": [
        {"type": "null"},
        {"type": "array", "items": {"type": "number"}}
      ]
    },
    "phash": {"type": ["string", "null"]},
    "is_duplicate": {"type": "boolean"}
  }
}`

const extractTextSchema = `{
  "type": "object",
  "required": ["text", "is_scanned"],
  "properties": {
    "text": {"type": "string"},
    "is_scanned": {"type": "boolean"}
  }
}`

var (
	checkDuplicateValidator = mustCompile("check-duplicate.json", checkDuplicateSchema)
	extractTextValidator    = mustCompile("extract-text.json", extractTextSchema)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader([]byte(schema))); err != nil {
		panic(fmt.Sprintf("dedup: add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// decodeValidated checks body against schema and then decodes it into out.
func decodeValidated(schema *jsonschema.Schema, body []byte, out any) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
