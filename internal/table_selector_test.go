package internal

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// scriptedAsk answers a multi-select with picks and a confirm with confirm.
func scriptedAsk(picks []string, confirm bool, err error) AskFunc {
	return func(p survey.Prompt, response interface{}, _ ...survey.AskOpt) error {
		if err != nil {
			return err
		}
		switch p.(type) {
		case *survey.MultiSelect:
			*response.(*[]string) = picks
		case *survey.Confirm:
			*response.(*bool) = confirm
		}
		return nil
	}
}

func TestSelectTables(t *testing.T) {
	tables := []string{"orders", "customers", "audit"}

	tests := []struct {
		name     string
		ask      AskFunc
		expected []string
		errText  string
	}{
		{
			name:     "confirmed selection",
			ask:      scriptedAsk([]string{"audit", "orders"}, true, nil),
			expected: []string{"audit", "orders"},
		},
		{
			name:    "declined confirmation",
			ask:     scriptedAsk([]string{"audit"}, false, nil),
			errText: "cancelled",
		},
		{
			name:    "nothing picked",
			ask:     scriptedAsk(nil, true, nil),
			errText: "no tables selected",
		},
		{
			name:    "interrupted",
			ask:     scriptedAsk(nil, true, terminal.InterruptErr),
			errText: "cancelled",
		},
		{
			name:    "prompt failure",
			ask:     scriptedAsk(nil, true, errors.New("not a terminal")),
			errText: "selection error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := NewTableSelector(tables).WithPrompter(tt.ask, &out).SelectTables()

			if tt.errText != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errText) {
					t.Errorf("Expected error containing %q, got %v", tt.errText, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if !strings.Contains(out.String(), "Found 3 table(s)") {
				t.Errorf("Expected table count in output, got %q", out.String())
			}
		})
	}
}

func TestSelectTablesEmpty(t *testing.T) {
	if _, err := NewTableSelector(nil).SelectTables(); err == nil {
		t.Error("Expected error for empty table list")
	}
}

func TestSelectByNumbers(t *testing.T) {
	tables := []string{"orders", "customers", "audit"}

	tests := []struct {
		input    string
		expected []string
		wantErr  bool
	}{
		{input: "all", expected: []string{"audit", "customers", "orders"}},
		{input: " ALL ", expected: []string{"audit", "customers", "orders"}},
		{input: "1,3", expected: []string{"audit", "orders"}},
		{input: "3, 1, 3", expected: []string{"orders", "audit"}},
		{input: "2,x,9", expected: []string{"customers"}},
		{input: "0,4", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NewTableSelector(tables).WithPrompter(nil, &bytes.Buffer{}).SelectByNumbers(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
