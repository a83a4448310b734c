package http

import (
	"fmt"
	"strings"
)

// Param is one captured path parameter.
type Param struct {
	Name  string
	Value string
}

// Params are captured in pattern declaration order.
type Params []Param

// Get returns the value captured for name, or "".
func (ps Params) Get(name string) string {
	for _, p := range ps {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// Route is a registered (method, pattern) pair.
type Route struct {
	Method  Method
	Pattern string
	Handler Handler
}

type segment struct {
	literal string
	param   string
}

func (s segment) isParam() bool {
	return s.param != ""
}

// parsePattern splits a pattern such as /orgs/{org}/repos/{repo} into
// segments. It panics on malformed patterns since they are programming
// errors caught at registration time.
func parsePattern(pattern string) []segment {
	if pattern == "" || pattern[0] != '/' {
		panic(fmt.Sprintf("http: invalid route %q: pattern must begin with '/'", pattern))
	}
	if pattern == "/" {
		return nil
	}

	parts := strings.Split(pattern[1:], "/")
	segments := make([]segment, 0, len(parts))
	seen := make(map[string]bool)

	for _, part := range parts {
		if strings.HasPrefix(part, "{") {
			if !strings.HasSuffix(part, "}") || len(part) < 3 {
				panic(fmt.Sprintf("http: invalid route %q: bad parameter segment %q", pattern, part))
			}
			name := part[1 : len(part)-1]
			if strings.ContainsAny(name, "{}") {
				panic(fmt.Sprintf("http: invalid route %q: bad parameter name %q", pattern, name))
			}
			if seen[name] {
				panic(fmt.Sprintf("http: invalid route %q: parameter %q declared twice", pattern, name))
			}
			seen[name] = true
			segments = append(segments, segment{param: name})
			continue
		}
		if strings.ContainsAny(part, "{}?") {
			panic(fmt.Sprintf("http: invalid route %q: literal segment %q contains a reserved character", pattern, part))
		}
		segments = append(segments, segment{literal: part})
	}
	return segments
}
