// Package suite defines test cases, the fixtures injected into them, and the
// runner that executes suites against a browser with bounded parallelism.
package suite

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hollis-qa/waypoint/internal/browser"
	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/pages"
)

// Session is the per-case browser surface a fixture carries: the page-object
// interaction methods plus the evidence capture methods used on failure.
type Session interface {
	pages.Browser
	browser.Capturable
	Close()
}

// SessionFactory produces an isolated session for one case.
type SessionFactory func(ctx context.Context) (Session, error)

// Fixture is the dependency bundle injected into every case.
type Fixture struct {
	Session Session
	Config  *config.Config
	Logger  *zap.Logger
}

// Case is a single named test. Run receives a context bounded by the
// configured case timeout and a fixture with a fresh browser session.
type Case struct {
	Name string
	Tags []string
	Run  func(ctx context.Context, fx *Fixture) error
}

// Suite is a named group of cases.
type Suite struct {
	Name  string
	Cases []Case
}

// Registry holds the suites available to a run.
type Registry struct {
	suites map[string]Suite
}

func NewRegistry(suites ...Suite) *Registry {
	r := &Registry{suites: make(map[string]Suite, len(suites))}
	for _, s := range suites {
		r.suites[s.Name] = s
	}
	return r
}

// Names returns the registered suite names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.suites))
	for name := range r.suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves the requested suite names, or all suites when the request
// is empty.
func (r *Registry) Select(requested []string) ([]Suite, error) {
	if len(requested) == 0 {
		out := make([]Suite, 0, len(r.suites))
		for _, name := range r.Names() {
			out = append(out, r.suites[name])
		}
		return out, nil
	}

	out := make([]Suite, 0, len(requested))
	for _, name := range requested {
		s, ok := r.suites[name]
		if !ok {
			return nil, fmt.Errorf("unknown suite %q (available: %v)", name, r.Names())
		}
		out = append(out, s)
	}
	return out, nil
}

// matchesTags reports whether a case with the given tags should run under the
// filter. An empty filter matches everything.
func matchesTags(caseTags, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		for _, have := range caseTags {
			if want == have {
				return true
			}
		}
	}
	return false
}
