package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentSchema accepts what models actually send: amounts as numbers or
// strings, and null for anything they could not read.
const documentSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string"},
    "subtype": {"type": ["string", "null"]},
    "amount": {"type": ["number", "string", "null"]},
    "date": {"type": ["string", "null"]},
    "service_date": {"type": ["string", "null"]},
    "merchant": {"type": ["string", "null"]},
    "invoice_number": {"type": ["string", "number", "null"]},
    "order_number": {"type": ["string", "number", "null"]},
    "is_invoice": {"type": ["boolean", "null"]},
    "description": {"type": ["string", "null"]}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("document.json", strings.NewReader(documentSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("document.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"2006.01.02",
	"2006年01月02日",
	"2006年1月2日",
	"2006-1-2",
	"2006/1/2",
	"20060102",
}

// normalizeDate rewrites a model-supplied date as YYYY-MM-DD. Anything
// unparseable becomes empty so later stages can fall back.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > len(time.DateOnly) && s[4] == '-' {
		// "2024-01-15 08:30" and similar
		if d, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)]); err == nil {
			return d.Format(time.DateOnly)
		}
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(time.DateOnly)
		}
	}
	return ""
}

// extractJSONObject cuts the outermost JSON object out of a model reply,
// dropping markdown fences and any chatter around it.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[startIdx : endIdx+1], nil
}

// parseDocumentJSON parses and validates a model reply
func parseDocumentJSON(text string) (*DocumentData, error) {
	text, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	// Invoice and order numbers sometimes arrive as bare numbers
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	for _, key := range []string{"invoice_number", "order_number"} {
		if n, ok := raw[key]; ok && len(n) > 0 && n[0] != '"' && !bytes.Equal(n, []byte("null")) {
			raw[key], _ = json.Marshal(string(n))
		}
	}
	if a, ok := raw["amount"]; ok && bytes.Equal(bytes.TrimSpace(a), []byte(`""`)) {
		raw["amount"] = json.RawMessage("null")
	}
	fixed, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshaling json: %w", err)
	}

	var data DocumentData
	if err := json.Unmarshal(fixed, &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.Date = normalizeDate(data.Date)
	data.ServiceDate = normalizeDate(data.ServiceDate)
	if data.Amount.IsNegative() {
		data.Amount = data.Amount.Abs()
	}

	return &data, nil
}
