// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema builds an inline JSON Schema for T using reflection.
// Definitions are expanded in place and the $schema/$id keys are dropped so
// the result can be sent to a model as a function parameter schema.
func GenerateSchema[T any]() json.RawMessage {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return json.RawMessage(b)
	}
	delete(m, "$schema")
	delete(m, "$id")
	if m["type"] == "object" {
		if _, ok := m["properties"]; !ok {
			m["properties"] = map[string]any{}
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(b)
	}
	return out
}
