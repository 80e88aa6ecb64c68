package talk

import (
	"context"
	"strings"
	"testing"

	"github.com/mirubo/pixpal/pkg/convo"
)

func TestNewFuncTool(t *testing.T) {
	tool, err := NewFuncTool[weatherArgs]("get_weather", "Look up the weather.", nil)
	if err != nil {
		t.Fatalf("NewFuncTool error: %v", err)
	}
	if tool.Name != "get_weather" || tool.Description != "Look up the weather." {
		t.Errorf("tool = %+v", tool)
	}
	if tool.Argument == nil {
		t.Fatal("argument schema should be derived from the type")
	}
	if tool.Invoke != nil {
		t.Error("nil invoke should yield a declaration-only tool")
	}
}

func TestFuncToolInvokeDecodesArgs(t *testing.T) {
	var got weatherArgs
	tool := MustNewFuncTool[weatherArgs]("get_weather", "",
		func(_ context.Context, _ *convo.FuncCall, arg weatherArgs) (any, error) {
			got = arg
			return "ok", nil
		})

	res, err := tool.Invoke(context.Background(), &convo.FuncCall{Name: "get_weather"}, `{"city":"Osaka"}`)
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if res != "ok" || got.City != "Osaka" {
		t.Errorf("res = %v, decoded = %+v", res, got)
	}

	// Damaged argument documents are repaired before decoding.
	if _, err := tool.Invoke(context.Background(), &convo.FuncCall{Name: "get_weather"}, `{"city":"Kobe"`); err != nil {
		t.Fatalf("Invoke with truncated args error: %v", err)
	}
	if got.City != "Kobe" {
		t.Errorf("decoded city = %q, want Kobe", got.City)
	}
}

func TestDispatch(t *testing.T) {
	called := false
	e := &Engine{tools: []*FuncTool{
		MustNewFuncTool[weatherArgs]("declared_only", "", nil),
		MustNewFuncTool[weatherArgs]("get_weather", "",
			func(_ context.Context, call *convo.FuncCall, arg weatherArgs) (any, error) {
				called = true
				return map[string]any{"city": arg.City, "temp": 21}, nil
			}),
	}}

	t.Run("found", func(t *testing.T) {
		res, err := e.Dispatch(context.Background(), &convo.FuncCall{Name: "get_weather", Arguments: `{"city":"Osaka"}`})
		if err != nil {
			t.Fatalf("Dispatch error: %v", err)
		}
		if !called {
			t.Error("invoke was not called")
		}
		if m, ok := res.(map[string]any); !ok || m["city"] != "Osaka" {
			t.Errorf("res = %v", res)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := e.Dispatch(context.Background(), &convo.FuncCall{Name: "nope"})
		if err == nil || !strings.Contains(err.Error(), "tool not found") {
			t.Errorf("err = %v, want a not-found error", err)
		}
	})

	t.Run("declaration-only", func(t *testing.T) {
		_, err := e.Dispatch(context.Background(), &convo.FuncCall{Name: "declared_only"})
		if err == nil || !strings.Contains(err.Error(), "declaration-only") {
			t.Errorf("err = %v, want a declaration-only error", err)
		}
	})

	t.Run("nil call", func(t *testing.T) {
		if _, err := e.Dispatch(context.Background(), nil); err == nil {
			t.Error("Dispatch(nil) should fail")
		}
	})
}
