// File: internal/lang/registry.go
package lang

import (
	"fmt"
	"sort"
	"sync"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// The registry holds one CodeAnalysisProvider per language identifier. It
// is populated during package initialization and treated as read-only for
// the lifetime of the process; callers share providers freely.
var (
	mu       sync.RWMutex
	registry = make(map[string]schemas.CodeAnalysisProvider)
)

// Register adds a provider under its language identifier. Registering the
// same language twice panics; that is a programming error, not a runtime
// condition.
func Register(p schemas.CodeAnalysisProvider) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[p.Language()]; exists {
		panic(fmt.Sprintf("lang: provider for %q registered twice", p.Language()))
	}
	registry[p.Language()] = p
}

// Lookup returns the provider for a language identifier. A missing
// provider is a normal outcome (unsupported language) and is reported via
// the boolean, not an error.
func Lookup(language string) (schemas.CodeAnalysisProvider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[language]
	return p, ok
}

// Supported returns the sorted list of registered language identifiers.
func Supported() []string {
	mu.RLock()
	defer mu.RUnlock()
	langs := make([]string, 0, len(registry))
	for l := range registry {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
