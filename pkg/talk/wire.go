package talk

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mirubo/pixpal/pkg/convo"
)

// Wire shapes for the generateContent REST protocol. Only the fields
// the engine reads or writes are declared.

type wireRequest struct {
	SystemInstruction *wireContent   `json:"systemInstruction,omitempty"`
	Contents          []wireContent  `json:"contents"`
	GenerationConfig  *wireGenConfig `json:"generationConfig,omitempty"`
	Tools             []wireTool     `json:"tools,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *wireInlineData   `json:"inlineData,omitempty"`
	FunctionCall     *wireFuncCall     `json:"functionCall,omitempty"`
	FunctionResponse *wireFuncResponse `json:"functionResponse,omitempty"`
}

type wireInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireFuncCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type wireFuncResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type wireGenConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	TopK            int      `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type wireTool struct {
	FunctionDeclarations []wireFuncDecl `json:"functionDeclarations"`
}

type wireFuncDecl struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type wireResponse struct {
	Candidates []wireCandidate `json:"candidates"`
	Error      *wireError      `json:"error"`
}

type wireCandidate struct {
	Content      wireContent `json:"content"`
	FinishReason string      `json:"finishReason"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerationParams tunes the model's sampling on every turn.
type GenerationParams struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	StopSequences   []string
}

// buildRequestBody serializes the conversation into one request body:
// generation parameters, the full contexts, tool declarations when
// enabled, and any caller-supplied parameters merged at the top level.
func (e *Engine) buildRequestBody(contexts []*convo.Message, cfg *turnConfig) ([]byte, error) {
	req := wireRequest{Contents: encodeContents(contexts)}
	if e.systemPrompt != "" {
		req.SystemInstruction = &wireContent{Parts: []wirePart{{Text: e.systemPrompt}}}
	}
	if e.genParams != nil {
		req.GenerationConfig = &wireGenConfig{
			Temperature:     e.genParams.Temperature,
			TopP:            e.genParams.TopP,
			TopK:            e.genParams.TopK,
			MaxOutputTokens: e.genParams.MaxOutputTokens,
			StopSequences:   e.genParams.StopSequences,
		}
	}
	if cfg.useFunctions && e.toolSupport && len(e.tools) > 0 {
		decls := make([]wireFuncDecl, 0, len(e.tools))
		for _, t := range e.tools {
			decls = append(decls, wireFuncDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Argument,
			})
		}
		req.Tools = []wireTool{{FunctionDeclarations: decls}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if len(e.customParams) == 0 && len(cfg.extraParams) == 0 {
		return body, nil
	}

	var top map[string]any
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("merge request params: %w", err)
	}
	for k, v := range e.customParams {
		top[k] = v
	}
	for k, v := range cfg.extraParams {
		top[k] = v
	}
	body, err = json.Marshal(top)
	if err != nil {
		return nil, fmt.Errorf("merge request params: %w", err)
	}
	return body, nil
}

func encodeContents(msgs []*convo.Message) []wireContent {
	out := make([]wireContent, 0, len(msgs))
	for _, m := range msgs {
		c := wireContent{Role: m.Role.String()}
		for _, p := range m.Parts {
			c.Parts = append(c.Parts, encodePart(p))
		}
		out = append(out, c)
	}
	return out
}

func encodePart(p convo.Part) wirePart {
	switch v := p.(type) {
	case convo.Text:
		return wirePart{Text: string(v)}
	case *convo.Blob:
		return wirePart{InlineData: &wireInlineData{
			MIMEType: v.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(v.Data),
		}}
	case *convo.FuncResult:
		resp := map[string]any{}
		if err := json.Unmarshal([]byte(v.Response), &resp); err != nil {
			resp = map[string]any{"result": v.Response}
		}
		return wirePart{FunctionResponse: &wireFuncResponse{Name: v.Name, Response: resp}}
	default:
		return wirePart{}
	}
}
