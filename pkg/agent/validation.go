package agent

import (
	"encoding/json"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateSchema validates data against a JSON schema (bytes) and returns an
// error on failure. An empty schema accepts everything.
func ValidateSchema(schema []byte, data any) error {
	if len(schema) == 0 {
		return nil
	}
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return err
	}
	if err := c.AddResource("mem://schema.json", doc); err != nil {
		return err
	}
	sch, err := c.Compile("mem://schema.json")
	if err != nil {
		return err
	}
	// Round-trip to generic form for validation.
	b, _ := json.Marshal(data)
	var v any
	_ = json.Unmarshal(b, &v)
	return sch.Validate(v)
}

// CompileSchema compiles the provided JSON schema and returns an error only
// if the schema itself is invalid. It does not validate any instance data.
func CompileSchema(schema []byte) error {
	if len(schema) == 0 {
		return nil
	}
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return err
	}
	if err := c.AddResource("mem://schema.json", doc); err != nil {
		return err
	}
	_, err := c.Compile("mem://schema.json")
	return err
}
