package talk

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mirubo/pixpal/pkg/convo"
)

type weatherArgs struct {
	City string `json:"city"`
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var top map[string]any
	if err := json.Unmarshal(body, &top); err != nil {
		t.Fatalf("request body is not valid JSON: %v\n%s", err, body)
	}
	return top
}

func TestBuildRequestBodyContents(t *testing.T) {
	e := &Engine{}
	msgs := []*convo.Message{
		convo.NewText(convo.RoleUser, "hello"),
		convo.NewText(convo.RoleModel, "hi there"),
	}
	body, err := e.buildRequestBody(msgs, &turnConfig{})
	if err != nil {
		t.Fatalf("buildRequestBody error: %v", err)
	}
	top := decodeBody(t, body)

	contents, ok := top["contents"].([]any)
	if !ok || len(contents) != 2 {
		t.Fatalf("contents = %v, want 2 entries", top["contents"])
	}
	first := contents[0].(map[string]any)
	if first["role"] != "user" {
		t.Errorf("first role = %v, want user", first["role"])
	}
	if _, present := top["systemInstruction"]; present {
		t.Error("systemInstruction should be omitted when no prompt is set")
	}
	if _, present := top["generationConfig"]; present {
		t.Error("generationConfig should be omitted when no params are set")
	}
	if _, present := top["tools"]; present {
		t.Error("tools should be omitted when none are registered")
	}
}

func TestBuildRequestBodySystemInstruction(t *testing.T) {
	e := &Engine{systemPrompt: "You are a helpful pal."}
	body, err := e.buildRequestBody(nil, &turnConfig{})
	if err != nil {
		t.Fatalf("buildRequestBody error: %v", err)
	}
	var req wireRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.SystemInstruction == nil || len(req.SystemInstruction.Parts) != 1 {
		t.Fatal("systemInstruction missing")
	}
	if req.SystemInstruction.Parts[0].Text != "You are a helpful pal." {
		t.Errorf("system text = %q", req.SystemInstruction.Parts[0].Text)
	}
}

func TestBuildRequestBodyGenerationConfig(t *testing.T) {
	e := &Engine{genParams: &GenerationParams{
		Temperature:     0.7,
		TopK:            40,
		MaxOutputTokens: 512,
		StopSequences:   []string{"END"},
	}}
	body, err := e.buildRequestBody(nil, &turnConfig{})
	if err != nil {
		t.Fatalf("buildRequestBody error: %v", err)
	}
	top := decodeBody(t, body)
	gc, ok := top["generationConfig"].(map[string]any)
	if !ok {
		t.Fatal("generationConfig missing")
	}
	if gc["temperature"] != 0.7 {
		t.Errorf("temperature = %v", gc["temperature"])
	}
	if gc["topK"] != float64(40) {
		t.Errorf("topK = %v", gc["topK"])
	}
	if gc["maxOutputTokens"] != float64(512) {
		t.Errorf("maxOutputTokens = %v", gc["maxOutputTokens"])
	}
}

func TestBuildRequestBodyTools(t *testing.T) {
	tool := MustNewFuncTool[weatherArgs]("get_weather", "Look up the weather.", nil)

	tests := []struct {
		name         string
		engine       *Engine
		useFunctions bool
		wantTools    bool
	}{
		{"declared and enabled", &Engine{tools: []*FuncTool{tool}, toolSupport: true}, true, true},
		{"model variant without tool support", &Engine{tools: []*FuncTool{tool}, toolSupport: false}, true, false},
		{"disabled for this call", &Engine{tools: []*FuncTool{tool}, toolSupport: true}, false, false},
		{"no tools registered", &Engine{toolSupport: true}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := tt.engine.buildRequestBody(nil, &turnConfig{useFunctions: tt.useFunctions})
			if err != nil {
				t.Fatalf("buildRequestBody error: %v", err)
			}
			top := decodeBody(t, body)
			_, present := top["tools"]
			if present != tt.wantTools {
				t.Errorf("tools present = %v, want %v", present, tt.wantTools)
			}
			if tt.wantTools && !strings.Contains(string(body), `"get_weather"`) {
				t.Error("tool declaration missing from body")
			}
		})
	}
}

func TestBuildRequestBodyParamMerge(t *testing.T) {
	e := &Engine{customParams: map[string]any{"safetySettings": "off", "shared": "engine"}}
	cfg := &turnConfig{extraParams: map[string]any{"shared": "call", "cachedContent": "c1"}}

	body, err := e.buildRequestBody(nil, cfg)
	if err != nil {
		t.Fatalf("buildRequestBody error: %v", err)
	}
	top := decodeBody(t, body)
	if top["safetySettings"] != "off" {
		t.Errorf("safetySettings = %v", top["safetySettings"])
	}
	if top["cachedContent"] != "c1" {
		t.Errorf("cachedContent = %v", top["cachedContent"])
	}
	// Per-call parameters land after engine-level ones.
	if top["shared"] != "call" {
		t.Errorf("shared = %v, want the per-call value", top["shared"])
	}
	if _, present := top["contents"]; !present {
		t.Error("merge must keep the request's own fields")
	}
}

func TestEncodePart(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		p := encodePart(convo.Text("hi"))
		if p.Text != "hi" || p.InlineData != nil {
			t.Errorf("part = %+v", p)
		}
	})

	t.Run("blob", func(t *testing.T) {
		data := []byte{0xff, 0xd8, 0xff, 0xe0}
		p := encodePart(&convo.Blob{MIMEType: "image/jpeg", Data: data})
		if p.InlineData == nil {
			t.Fatal("inlineData missing")
		}
		if p.InlineData.MIMEType != "image/jpeg" {
			t.Errorf("mimeType = %q", p.InlineData.MIMEType)
		}
		if p.InlineData.Data != base64.StdEncoding.EncodeToString(data) {
			t.Errorf("data = %q, want base64 of the raw bytes", p.InlineData.Data)
		}
	})

	t.Run("function result with JSON document", func(t *testing.T) {
		p := encodePart(&convo.FuncResult{Name: "get_weather", Response: `{"temp":21}`})
		if p.FunctionResponse == nil {
			t.Fatal("functionResponse missing")
		}
		if p.FunctionResponse.Response["temp"] != float64(21) {
			t.Errorf("response = %v", p.FunctionResponse.Response)
		}
	})

	t.Run("function result with bare text", func(t *testing.T) {
		p := encodePart(&convo.FuncResult{Name: "get_weather", Response: "sunny"})
		if p.FunctionResponse == nil {
			t.Fatal("functionResponse missing")
		}
		if p.FunctionResponse.Response["result"] != "sunny" {
			t.Errorf("response = %v, want the text wrapped under result", p.FunctionResponse.Response)
		}
	})
}
