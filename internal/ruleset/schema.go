// internal/ruleset/schema.go
package ruleset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

/*
 * Structural check of rule-set documents.
 *
 * The schema fixes the document's shape: known keys only, strings where
 * strings belong, integer priorities and weights. Typos such as
 * "dependOn" or "riskweight" fail here instead of decoding to a silently
 * empty field. Semantic checks (ranges, operators, regexes, evaluator
 * references) stay with rule validation, which reports every problem at
 * once.
 */

//go:embed ruleset.schema.json
var schemaSource []byte

const schemaURL = "https://overseer.local/schemas/ruleset.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func ruleSetSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
			schemaErr = fmt.Errorf("rule set schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// checkSchema validates the raw document against the rule-set schema. An
// empty document is a valid, empty rule set.
func checkSchema(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse rule set: %w", err)
	}
	if raw == nil {
		return nil
	}

	// Round-trip through JSON so the validator sees JSON types only.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("rule set is not JSON-compatible: %w", err)
	}
	var doc any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return fmt.Errorf("rule set is not JSON-compatible: %w", err)
	}

	schema, err := ruleSetSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("rule set does not match schema: %w", err)
	}
	return nil
}
