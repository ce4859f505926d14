package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want LanguageModel
	}{
		{"both fields", `{"language":"go","fileName":"main.go"}`, LanguageModel{Language: "go", FileName: "main.go"}},
		{"case insensitive keys", `{"LANGUAGE":"CSharp","filename":"a.cs"}`, LanguageModel{Language: "CSharp", FileName: "a.cs"}},
		{"first match wins", `{"Language":"go","language":"python"}`, LanguageModel{Language: "go"}},
		{"extra fields", `{"line":3,"column":4,"FileName":"x.py","buffer":"..."}`, LanguageModel{FileName: "x.py"}},
		{"nested fields ignored", `{"inner":{"language":"go"}}`, LanguageModel{}},
		{"non-string values", `{"language":5,"fileName":null}`, LanguageModel{}},
		{"non-string first shadows later", `{"language":{},"LANGUAGE":"go"}`, LanguageModel{}},
		{"empty object", `{}`, LanguageModel{}},
		{"array", `[{"language":"go"}]`, LanguageModel{}},
		{"string", `"language"`, LanguageModel{}},
		{"number", `42`, LanguageModel{}},
		{"malformed", `{"language":"go"`, LanguageModel{}},
		{"garbage", `not json at all`, LanguageModel{}},
		{"empty", ``, LanguageModel{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Extract([]byte(tt.raw)))
			})
		})
	}
}

func TestExtract_Nil(t *testing.T) {
	assert.True(t, Extract(nil).IsEmpty())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"object", `{"a":1}`, `{"a":1}`, true},
		{"array", `[1,2]`, `[1,2]`, true},
		{"malformed", `{"a":`, `{}`, false},
		{"empty", ``, `{}`, false},
		{"whitespace", "  \n", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize([]byte(tt.raw))
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestLanguageModel_IsEmpty(t *testing.T) {
	assert.True(t, LanguageModel{}.IsEmpty())
	assert.False(t, LanguageModel{FileName: "a.go"}.IsEmpty())
}
