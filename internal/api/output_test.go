package api

import (
	"bytes"
	"testing"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestOutputTo(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{OutputFormatYAML, "name: heir\ncount: 3\n"},
		{OutputFormatJSON, "{\n  \"name\": \"heir\",\n  \"count\": 3\n}\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := OutputTo(&buf, tt.format, sample{Name: "heir", Count: 3}); err != nil {
				t.Fatalf("OutputTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("OutputTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		if err := OutputTo(&bytes.Buffer{}, "xml", nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestSetOutputFormat(t *testing.T) {
	defer func() { globalOutputFormat = DefaultOutput }()

	if err := SetOutputFormat("json"); err != nil || GetOutputFormat() != OutputFormatJSON {
		t.Errorf("SetOutputFormat(json) = %v, format %s", err, GetOutputFormat())
	}
	if err := SetOutputFormat("toml"); err == nil {
		t.Error("expected error for toml")
	}
	if GetOutputFormat() != OutputFormatJSON {
		t.Error("invalid format changed the current format")
	}
}
