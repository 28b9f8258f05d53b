package modules

import (
	"testing"
)

func TestValidateParams_RequiredFields(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"mr_iid":       {Type: "string", Description: "Merge request IID"},
			"save_to_file": {Type: "boolean", Description: "Persist the diff"},
		},
		Required: []string{"mr_iid"},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
		errMsg  string
	}{
		{
			name:    "required present",
			params:  map[string]any{"mr_iid": "123"},
			wantErr: false,
		},
		{
			name:    "missing required",
			params:  map[string]any{"save_to_file": true},
			wantErr: true,
			errMsg:  "missing required parameter(s): mr_iid",
		},
		{
			name:    "nil params",
			params:  nil,
			wantErr: true,
			errMsg:  "missing required parameter(s): mr_iid",
		},
		{
			name:    "empty string for required field",
			params:  map[string]any{"mr_iid": ""},
			wantErr: true,
			errMsg:  "missing required parameter(s): mr_iid",
		},
		{
			name:    "nil value for required field",
			params:  map[string]any{"mr_iid": nil},
			wantErr: true,
			errMsg:  "missing required parameter(s): mr_iid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(schema, tt.params)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				} else if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestValidateParams_TypeCheck(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"state":        {Type: "string"},
			"save_to_file": {Type: "boolean"},
			"page":         {Type: "number"},
		},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
		errMsg  string
	}{
		{
			name:    "all correct types",
			params:  map[string]any{"state": "opened", "save_to_file": true, "page": float64(2)},
			wantErr: false,
		},
		{
			name:    "number where string expected",
			params:  map[string]any{"state": float64(42)},
			wantErr: true,
			errMsg:  `parameter "state": expected string, got float64`,
		},
		{
			name:    "string where boolean expected",
			params:  map[string]any{"save_to_file": "true"},
			wantErr: true,
			errMsg:  `parameter "save_to_file": expected boolean, got string`,
		},
		{
			name:    "string where number expected",
			params:  map[string]any{"page": "two"},
			wantErr: true,
			errMsg:  `parameter "page": expected number, got string`,
		},
		{
			name:    "extra params not in schema pass through",
			params:  map[string]any{"unknown_field": "whatever"},
			wantErr: false,
		},
		{
			name:    "nil value skips type check",
			params:  map[string]any{"state": nil},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(schema, tt.params)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				} else if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestValidateParams_NoRequiredNoProperties(t *testing.T) {
	schema := InputSchema{
		Type:       "object",
		Properties: map[string]Property{},
	}

	result, err := ValidateParams(schema, map[string]any{})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result == nil {
		t.Errorf("expected non-nil result")
	}
}

func TestFindTool(t *testing.T) {
	tools := []Tool{
		{Name: "list_mr"},
		{Name: "download_diff"},
	}

	tool, found := findTool(tools, "download_diff")
	if !found {
		t.Fatal("expected to find download_diff")
	}
	if tool.Name != "download_diff" {
		t.Errorf("expected name download_diff, got %s", tool.Name)
	}

	_, found = findTool(tools, "nonexistent")
	if found {
		t.Error("expected not to find nonexistent tool")
	}
}
