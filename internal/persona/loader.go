// Package persona supplies the system-prompt preamble for each named agent
// persona. Defaults are embedded in the binary; an override directory lets
// operators replace any persona with their own markdown file at runtime.
//
// The Loader is safe for concurrent use.
package persona

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Default is the persona used when the caller names none.
const Default = "code-explorer"

//go:embed personas/*.md
var defaults embed.FS

// injectionPatterns contains lowercased substrings that indicate prompt
// injection attempts. Lines matching any pattern are dropped from override
// files with a warning; embedded defaults are trusted and not filtered.
var injectionPatterns = []string{
	"ignore previous",
	"ignore above",
	"ignore all previous",
	"disregard all",
	"disregard previous",
	"forget previous",
	"forget all previous",
	"override instructions",
	"override previous",
	"new instructions:",
	"from now on",
}

// Loader resolves persona names to preamble text. Override files live at
// overrideDir/<name>.md and win over the embedded defaults.
type Loader struct {
	overrideDir string
	mu          sync.RWMutex
	cache       map[string]string
}

// NewLoader creates a Loader. overrideDir may be empty, in which case only
// the embedded personas are available.
func NewLoader(overrideDir string) *Loader {
	return &Loader{
		overrideDir: overrideDir,
		cache:       make(map[string]string),
	}
}

// Names lists the embedded persona names, sorted.
func Names() []string {
	entries, err := defaults.ReadDir("personas")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names
}

// Load returns the preamble for the named persona. An empty name selects the
// default. Unknown names with no override file are an error so a typo on the
// CLI fails loudly instead of silently dropping the preamble.
func (l *Loader) Load(name string) (string, error) {
	if name == "" {
		name = Default
	}

	l.mu.RLock()
	if v, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return v, nil
	}
	l.mu.RUnlock()

	content, err := l.loadUncached(name)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	l.cache[name] = content
	l.mu.Unlock()
	return content, nil
}

func (l *Loader) loadUncached(name string) (string, error) {
	if l.overrideDir != "" {
		diskPath := filepath.Join(l.overrideDir, name+".md")
		data, err := os.ReadFile(diskPath)
		if err == nil {
			if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
				return filterDangerousLines(string(data)), nil
			}
			// Empty override file: fall through to the embedded default.
		} else if !os.IsNotExist(err) {
			log.Printf("[Persona] Warning: read %q failed: %v; falling back to embedded default", diskPath, err)
		}
	}

	data, err := fs.ReadFile(defaults, "personas/"+name+".md")
	if err != nil {
		return "", fmt.Errorf("unknown persona %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return string(data), nil
}

// Reload clears the cache so subsequent Load calls re-read override files.
func (l *Loader) Reload() {
	l.mu.Lock()
	l.cache = make(map[string]string)
	l.mu.Unlock()
}

// filterDangerousLines drops lines that match known prompt-injection
// patterns. Remaining lines keep their original order.
func filterDangerousLines(content string) string {
	lines := strings.Split(content, "\n")
	safe := make([]string, 0, len(lines))
	for _, line := range lines {
		lower := strings.ToLower(line)
		dropped := false
		for _, pattern := range injectionPatterns {
			if strings.Contains(lower, pattern) {
				log.Printf("[Persona] Warning: override line dropped (injection pattern %q detected): %q", pattern, line)
				dropped = true
				break
			}
		}
		if !dropped {
			safe = append(safe, line)
		}
	}
	return strings.Join(safe, "\n")
}
