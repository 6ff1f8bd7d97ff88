package resume

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resumeSchema describes the JSON the model must return.
const resumeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "email": {"type": ["string", "null"]},
    "phone": {"type": ["string", "null"]},
    "location": {"type": ["string", "null"]},
    "summary": {"type": ["string", "null"]},
    "skills": {"type": ["array", "null"], "items": {"type": "string"}},
    "experience": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["company", "title"],
        "properties": {
          "company": {"type": "string"},
          "title": {"type": "string"},
          "startDate": {"type": ["string", "null"]},
          "endDate": {"type": ["string", "null"]},
          "description": {"type": ["string", "null"]}
        }
      }
    },
    "education": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["institution"],
        "properties": {
          "institution": {"type": "string"},
          "degree": {"type": ["string", "null"]},
          "field": {"type": ["string", "null"]},
          "year": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	schemaErr  error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("resume.json", strings.NewReader(resumeSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, schemaErr = compiler.Compile("resume.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiled, schemaErr
}

// validate checks data against the resume schema.
func validate(data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
