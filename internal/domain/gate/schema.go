package gate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

const (
	conversionSchema = `{
		"type": "object",
		"required": ["amount", "currency"],
		"properties": {
			"amount": {"type": "number", "exclusiveMinimum": 0},
			"currency": {"type": "string", "minLength": 3, "maxLength": 3},
			"paymentMethod": {"type": "string"},
			"paymentReference": {"type": "string"}
		}
	}`
	reasonSchema = `{
		"type": "object",
		"required": ["reason"],
		"properties": {
			"reason": {"type": "string", "minLength": 1}
		}
	}`
	customSchema = `{
		"type": "object",
		"properties": {
			"kind": {"type": "string"},
			"fields": {"type": "object"}
		}
	}`
)

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemaKey(ft stage.FormType) string {
	switch ft {
	case stage.FormConverted:
		return "conversion"
	case stage.FormJunk, stage.FormLost:
		return "reason"
	}
	return "custom"
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		sources := map[string]string{
			"conversion": conversionSchema,
			"reason":     reasonSchema,
			"custom":     customSchema,
		}
		compiled = make(map[string]*jsonschema.Schema, len(sources))
		for name, src := range sources {
			c := jsonschema.NewCompiler()
			c.Draft = jsonschema.Draft2020
			url := fmt.Sprintf("https://lead-pipeline.schemas.local/gate/%s.schema.json", name)
			if err := c.AddResource(url, strings.NewReader(src)); err != nil {
				compileErr = fmt.Errorf("gate schema %s load failed: %w", name, err)
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("gate schema %s compile failed: %w", name, err)
				return
			}
			compiled[name] = s
		}
	})
	return compiled, compileErr
}

// DecodePayload validates raw form JSON against the schema for ft and
// decodes it into the matching typed payload.
func DecodePayload(ft stage.FormType, raw json.RawMessage) (Payload, error) {
	if !ft.Gated() {
		return nil, fmt.Errorf("%w: form type is required", ErrInvalidPayload)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}

	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := schemas[schemaKey(ft)].Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var p Payload
	switch ft {
	case stage.FormConverted:
		var c Conversion
		err = json.Unmarshal(raw, &c)
		p = c
	case stage.FormJunk:
		var j Junk
		err = json.Unmarshal(raw, &j)
		p = j
	case stage.FormLost:
		var x Lost
		err = json.Unmarshal(raw, &x)
		p = x
	default:
		var c Custom
		err = json.Unmarshal(raw, &c)
		c.Kind = ft
		p = c
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
