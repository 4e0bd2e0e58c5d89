package luna

import "strings"

// Matcher decides whether a method path selects an action. Legacy callers
// pass anything from a bare method name to the full path, so matching is
// permissive.
type Matcher func(method string) bool

// Exact matches the method path literally.
func Exact(names ...string) Matcher {
	return func(method string) bool {
		for _, n := range names {
			if method == n {
				return true
			}
		}
		return false
	}
}

// Suffix matches name itself or any path ending in /name.
func Suffix(name string) Matcher {
	return func(method string) bool {
		return method == name || strings.HasSuffix(method, "/"+name)
	}
}

// Contains matches any path containing s.
func Contains(s string) Matcher {
	return func(method string) bool {
		return strings.Contains(method, s)
	}
}

// AnyOf matches when one of ms matches.
func AnyOf(ms ...Matcher) Matcher {
	return func(method string) bool {
		for _, m := range ms {
			if m(method) {
				return true
			}
		}
		return false
	}
}

// Action produces the response for a matched method.
type Action func(method string, p Params) (any, error)

type methodRoute struct {
	name  string
	match Matcher
	act   Action
}

// MethodTable is an ordered list of (matcher, action) pairs. The first
// matching entry wins, so more specific matchers must be added first.
type MethodTable struct {
	routes []methodRoute
}

// On appends an entry. name is only used for diagnostics.
func (t *MethodTable) On(name string, m Matcher, a Action) *MethodTable {
	t.routes = append(t.routes, methodRoute{name: name, match: m, act: a})
	return t
}

// Lookup returns the name of the entry that would handle method.
func (t *MethodTable) Lookup(method string) (string, bool) {
	for _, r := range t.routes {
		if r.match(method) {
			return r.name, true
		}
	}
	return "", false
}

// Dispatch runs the first matching action. Unmatched methods get a stub.
func (t *MethodTable) Dispatch(method string, p Params) (any, error) {
	for _, r := range t.routes {
		if r.match(method) {
			return r.act(method, p)
		}
	}
	return NewStub("", method), nil
}
