package scanner

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"DailyDigest/internal/domain"
)

// Category describes a concrete endpoint or query provided by config.
type Category struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Window     domain.Window
	SiteName   string
	Categories []Category
	Options    map[string]string
}

// Option returns the named option or def when it is unset.
func (r Request) Option(name, def string) string {
	if v, ok := r.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// IntOption parses a numeric option, falling back to def on absence or garbage.
func (r Request) IntOption(name string, def int) int {
	v, ok := r.Options[name]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// BoolOption parses a flag option such as "true" or "0", falling back to def.
func (r Request) BoolOption(name string, def bool) bool {
	b, err := strconv.ParseBool(r.Options[name])
	if err != nil {
		return def
	}
	return b
}

// Scanner captures a single strategy implementation (arXiv, GitHub trending, HN, ...).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.RawItem, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered strategies in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
