package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/quire/internal/outline"
)

// RecordSchema returns the structured-output hint for a batch covering lo..hi.
// The root is an object because strict providers reject array roots.
func RecordSchema(lo, hi int) map[string]any {
	index := map[string]any{"type": "integer", "minimum": 1}
	if lo >= 1 && lo <= hi {
		index["minimum"] = lo
		index["maximum"] = hi
	}
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "chapter_records",
			"strict": true,
			"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"chapters": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"index":   index,
								"title":   map[string]any{"type": "string"},
								"content": map[string]any{"type": "string"},
								"hook":    map[string]any{"type": "string"},
								"payoff":  map[string]any{"type": "string"},
							},
							"required":             []string{"index", "title", "content", "hook", "payoff"},
							"additionalProperties": false,
						},
					},
				},
				"required":             []string{"chapters"},
				"additionalProperties": false,
			},
		},
	}
}

// recordSchema validates a decoded record before it is accepted.
const recordSchema = `{
	"type": "object",
	"properties": {
		"index": {"type": "integer", "minimum": 1},
		"title": {"type": "string"},
		"body": {"type": "string", "minLength": 1}
	},
	"required": ["index", "title", "body"]
}`

var compiledRecordSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", strings.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("failed to load record schema: %w", err)
	}
	schema, err := compiler.Compile("record.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile record schema: %w", err)
	}
	return schema, nil
})

func validateRecord(r outline.Record) error {
	schema, err := compiledRecordSchema()
	if err != nil {
		return err
	}
	doc := map[string]any{
		"index": json.Number(fmt.Sprint(r.Index)),
		"title": r.Title,
		"body":  r.Body,
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}

// maxRepairEcho caps how many characters of the malformed output a repair prompt repeats.
const maxRepairEcho = 12000

// RepairPrompt asks the model to restate its previous output as JSON matching
// schema. The previous output is truncated to keep the prompt bounded.
func RepairPrompt(schema map[string]any, lastOutput string, issue error) string {
	schemaText, err := json.MarshalIndent(innerSchema(schema), "", "  ")
	if err != nil {
		schemaText = []byte("{}")
	}
	lastOutput = strings.TrimSpace(lastOutput)
	if r := []rune(lastOutput); len(r) > maxRepairEcho {
		lastOutput = string(r[:maxRepairEcho]) + "\n...[truncated]"
	}
	if lastOutput == "" {
		lastOutput = "(empty)"
	}
	issueText := "output was not valid JSON"
	if issue != nil {
		issueText = issue.Error()
	}

	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.

Schema:
%s

Your previous output:
%s

Validation issue:
%s`, schemaText, lastOutput, issueText)
}

// innerSchema unwraps the {"type":"json_schema","json_schema":{"schema":...}} envelope.
func innerSchema(schema map[string]any) any {
	if js, ok := schema["json_schema"].(map[string]any); ok {
		if inner, ok := js["schema"]; ok {
			return inner
		}
	}
	if inner, ok := schema["schema"]; ok {
		return inner
	}
	return schema
}
