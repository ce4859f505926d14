// Package language maps file paths to language identifiers.
package language

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Resolver returns the language identifier best matching path, or "" when
// nothing matches. An empty path asks for a path-independent default.
type Resolver interface {
	ResolveLanguage(path string) string
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(path string) string

func (f ResolverFunc) ResolveLanguage(path string) string { return f(path) }

// Normalize returns the canonical form of a language identifier.
func Normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// ExtensionResolver resolves languages by file extension.
type ExtensionResolver struct {
	mu       sync.RWMutex
	byExt    map[string]string
	fallback string
}

// NewExtensionResolver creates a resolver preloaded with the default
// extension table.
func NewExtensionResolver() *ExtensionResolver {
	r := &ExtensionResolver{byExt: make(map[string]string)}
	r.registerDefaults()
	return r
}

func (r *ExtensionResolver) registerDefaults() {
	r.Register("csharp", ".cs", ".csx", ".cake")
	r.Register("vb", ".vb")
	r.Register("fsharp", ".fs", ".fsi", ".fsx")
	r.Register("go", ".go")
	r.Register("python", ".py", ".pyi")
	r.Register("typescript", ".ts", ".tsx")
	r.Register("javascript", ".js", ".jsx", ".mjs", ".cjs")
	r.Register("rust", ".rs")
	r.Register("java", ".java")
}

// Register maps each extension to language, replacing earlier mappings.
// Extensions are matched case-insensitively; the leading dot is optional.
func (r *ExtensionResolver) Register(language string, extensions ...string) {
	language = Normalize(language)
	if language == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.byExt[ext] = language
	}
}

// SetFallback sets the language returned for an empty path.
func (r *ExtensionResolver) SetFallback(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = Normalize(language)
}

// ResolveLanguage implements Resolver.
func (r *ExtensionResolver) ResolveLanguage(path string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if strings.TrimSpace(path) == "" {
		return r.fallback
	}
	return r.byExt[strings.ToLower(filepath.Ext(path))]
}

// Languages returns the distinct registered languages, sorted.
func (r *ExtensionResolver) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	langs := make([]string, 0)
	for _, lang := range r.byExt {
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
