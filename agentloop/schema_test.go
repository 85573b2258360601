// Copyright (c) Microsoft. All rights reserved.

package agentloop_test

import (
	"encoding/json"
	"testing"

	al "github.com/microsoft/agentloop/agentloop"
)

type quoteArgs struct {
	Ticker string `json:"ticker" jsonschema:"description=Ticker symbol"`
	Market string `json:"market,omitempty" jsonschema:"description=Market,enum=B3,enum=NYSE"`
}

func TestGenerateSchema_BasicStruct(t *testing.T) {
	schema := al.GenerateSchema[quoteArgs]()

	var parsed map[string]any
	if err := json.Unmarshal(schema, &parsed); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}

	if parsed["type"] != "object" {
		t.Errorf("type = %v, want object", parsed["type"])
	}
	if _, ok := parsed["$schema"]; ok {
		t.Error("$schema should be stripped")
	}
	if _, ok := parsed["$ref"]; ok {
		t.Error("schema should be inlined")
	}

	props, ok := parsed["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties not a map: %T", parsed["properties"])
	}

	ticker, ok := props["ticker"].(map[string]any)
	if !ok {
		t.Fatalf("ticker property missing or wrong type")
	}
	if ticker["type"] != "string" || ticker["description"] != "Ticker symbol" {
		t.Errorf("ticker = %v", ticker)
	}

	market := props["market"].(map[string]any)
	enumVals, ok := market["enum"].([]any)
	if !ok || len(enumVals) != 2 {
		t.Errorf("market enum = %v", market["enum"])
	}

	required, _ := parsed["required"].([]any)
	if len(required) != 1 || required[0] != "ticker" {
		t.Errorf("required = %v, want [ticker]", required)
	}
	if parsed["additionalProperties"] != false {
		t.Errorf("additionalProperties = %v", parsed["additionalProperties"])
	}
}

type nestedArgs struct {
	Items []string       `json:"items"`
	Tags  map[string]int `json:"tags"`
	Count int            `json:"count"`
	Flag  bool           `json:"flag"`
	Score float64        `json:"score"`
}

func TestGenerateSchema_TypeMapping(t *testing.T) {
	schema := al.GenerateSchema[nestedArgs]()

	var parsed map[string]any
	if err := json.Unmarshal(schema, &parsed); err != nil {
		t.Fatal(err)
	}

	props := parsed["properties"].(map[string]any)

	items := props["items"].(map[string]any)
	if items["type"] != "array" {
		t.Errorf("items type = %v", items["type"])
	}
	if inner := items["items"].(map[string]any); inner["type"] != "string" {
		t.Errorf("items inner type = %v", inner["type"])
	}

	want := map[string]string{"tags": "object", "count": "integer", "flag": "boolean", "score": "number"}
	for name, typ := range want {
		if got := props[name].(map[string]any)["type"]; got != typ {
			t.Errorf("%s type = %v, want %s", name, got, typ)
		}
	}
}

func TestGenerateSchema_EmptyStruct(t *testing.T) {
	var parsed map[string]any
	if err := json.Unmarshal(al.GenerateSchema[struct{}](), &parsed); err != nil {
		t.Fatal(err)
	}
	if _, ok := parsed["properties"].(map[string]any); !ok {
		t.Errorf("empty struct schema should carry properties: %v", parsed)
	}
}
