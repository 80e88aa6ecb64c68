package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"name":  "test",
		"value": 123,
	}

	err := Output(data, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if result["name"] != "test" {
		t.Errorf("name = %v, want %q", result["name"], "test")
	}
}

func TestOutput_YAML(t *testing.T) {
	var buf bytes.Buffer

	data := map[string]any{
		"name": "test",
	}

	err := Output(data, OutputOptions{
		Format: FormatYAML,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "name: test") {
		t.Errorf("YAML output missing key: %q", buf.String())
	}
}

func TestOutput_Raw(t *testing.T) {
	var buf bytes.Buffer

	err := Output("hello", OutputOptions{
		Format: FormatRaw,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if buf.String() != "hello" {
		t.Errorf("raw output = %q, want %q", buf.String(), "hello")
	}

	if err := Output(42, OutputOptions{Format: FormatRaw, Writer: &buf}); err == nil {
		t.Error("raw output of int should fail")
	}
}

func TestParseRequest(t *testing.T) {
	type req struct {
		Name  string `yaml:"name" json:"name"`
		Count int    `yaml:"count" json:"count"`
	}

	var v req
	if err := ParseRequest([]byte("name: a\ncount: 2\n"), "req.yaml", &v); err != nil {
		t.Fatalf("ParseRequest yaml error: %v", err)
	}
	if v.Name != "a" || v.Count != 2 {
		t.Errorf("parsed = %+v, want {a 2}", v)
	}

	v = req{}
	if err := ParseRequest([]byte(`{"name":"b","count":3}`), "req.json", &v); err != nil {
		t.Fatalf("ParseRequest json error: %v", err)
	}
	if v.Name != "b" || v.Count != 3 {
		t.Errorf("parsed = %+v, want {b 3}", v)
	}
}
