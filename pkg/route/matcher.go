package route

import (
	"github.com/gorilla/mux"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

const (
	SourceURL       = "url"
	SourceRoute     = "route"
	SourceCustom    = "custom"
	SourceComponent = "component"
	SourceTask      = "task"
)

var colonParam = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)(\([^)]*\))?`)

// Matcher resolves concrete paths to the route pattern that handles them, so that
// transactions can be named by pattern instead of by URL. Patterns are matched exactly and the
// first registered pattern that matches wins.
type Matcher struct {
	router   *mux.Router
	patterns []string
	mu       sync.RWMutex
}

func NewMatcher(patterns ...string) *Matcher {
	m := &Matcher{router: mux.NewRouter()}
	for _, pattern := range patterns {
		m.Add(pattern)
	}
	return m
}

// Add registers a pattern. Both "/users/:id" and "/users/{id}" parameter syntaxes are accepted.
// Invalid patterns are ignored.
func (m *Matcher) Add(pattern string) {
	if pattern == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.router.NewRoute().Path(toMuxTemplate(pattern)).Name(pattern)
	if r.GetError() != nil {
		return
	}
	m.patterns = append(m.patterns, pattern)
}

func (m *Matcher) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.patterns...)
}

// Match returns the pattern of the first route matching path.
func (m *Matcher) Match(path string) (string, bool) {
	if m == nil {
		return "", false
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: path}}
	var match mux.RouteMatch
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.router.Match(req, &match) || match.Route == nil {
		return "", false
	}
	return match.Route.GetName(), true
}

// NameForPath returns the name a transaction for path should carry, together with its source.
func (m *Matcher) NameForPath(path string) (string, string) {
	if pattern, ok := m.Match(path); ok {
		return pattern, SourceRoute
	}
	return path, SourceURL
}

func toMuxTemplate(pattern string) string {
	template := colonParam.ReplaceAllStringFunc(pattern, func(param string) string {
		groups := colonParam.FindStringSubmatch(param)
		if groups[2] != "" {
			return "{" + groups[1] + ":" + strings.Trim(groups[2], "()") + "}"
		}
		return "{" + groups[1] + "}"
	})
	if strings.HasSuffix(template, "/*") {
		template = strings.TrimSuffix(template, "*") + "{rest:.*}"
	}
	return template
}
