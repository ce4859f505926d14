// Package envelope extracts routing hints from raw request bodies without
// requiring a fixed schema.
package envelope

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
)

// Field names matched case-insensitively at the top level of a body.
const (
	LanguageField = "language"
	FileNameField = "fileName"
)

// LanguageModel is the best-effort routing hint carried by a request.
type LanguageModel struct {
	Language string `json:"language,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// IsEmpty reports whether the model carries no hint at all.
func (m LanguageModel) IsEmpty() bool {
	return m.Language == "" && m.FileName == ""
}

// Extract returns the language and file name hints found in raw. Bodies
// that are malformed or not JSON objects yield an empty model. Keys are
// matched case-insensitively, the first match in document order wins and
// non-string values are ignored.
func Extract(raw []byte) LanguageModel {
	var model LanguageModel
	if !gjson.ValidBytes(raw) {
		return model
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return model
	}

	var seenLanguage, seenFileName bool
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch {
		case !seenLanguage && strings.EqualFold(name, LanguageField):
			seenLanguage = true
			if value.Type == gjson.String {
				model.Language = value.String()
			}
		case !seenFileName && strings.EqualFold(name, FileNameField):
			seenFileName = true
			if value.Type == gjson.String {
				model.FileName = value.String()
			}
		}
		return !(seenLanguage && seenFileName)
	})

	return model
}

// Normalize returns raw unchanged when it is valid JSON. Otherwise it
// returns an empty object and false.
func Normalize(raw []byte) ([]byte, bool) {
	if len(bytes.TrimSpace(raw)) == 0 || !gjson.ValidBytes(raw) {
		return []byte("{}"), false
	}
	return raw, true
}
