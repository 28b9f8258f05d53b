package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gitlabmr/server/internal/jsonrpc"
)

type echoProcessor struct{}

func (p *echoProcessor) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	if req.Method == "fail" {
		return nil, &jsonrpc.Error{Code: jsonrpc.InternalError, Message: "boom"}
	}
	return map[string]string{"method": req.Method}, nil
}

func TestTransportInlineRequest(t *testing.T) {
	handler := Transport(&echoProcessor{})

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp jsonrpc.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["method"] != "tools/list" {
		t.Errorf("unexpected result: %v", resp.Result)
	}
}

func TestTransportInlineError(t *testing.T) {
	handler := Transport(&echoProcessor{})

	body := `{"jsonrpc":"2.0","id":2,"method":"fail"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp jsonrpc.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.InternalError {
		t.Errorf("expected internal error, got %v", resp.Error)
	}
}

func TestTransportInlineParseError(t *testing.T) {
	handler := Transport(&echoProcessor{})

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp jsonrpc.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.ParseError {
		t.Errorf("expected parse error, got %v", resp.Error)
	}
}

func TestTransportRejectsUnsupportedMethod(t *testing.T) {
	handler := Transport(&echoProcessor{})

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
