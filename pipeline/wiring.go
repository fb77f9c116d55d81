package pipeline

import (
	"fmt"
	"strings"

	"github.com/ugparu/goflow/element"
)

// Endpoint is one parsed wiring token: an element and the pads the links on either
// side of it attach to.
type Endpoint struct {
	Element string
	InPad   string
	OutPad  string
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s< %s >%s", e.InPad, e.Element, e.OutPad)
}

// ParseWiring parses wiring tokens. A token names an element and may select its input
// pad with "pad< name" or "<pad name" and its output pad with "name >pad" or
// "name pad>". Unselected pads default to STDIN and STDOUT. Blank tokens are skipped.
func ParseWiring(tokens ...string) ([]Endpoint, error) {
	endpoints := make([]Endpoint, 0, len(tokens))
	for _, token := range tokens {
		if strings.TrimSpace(token) == "" {
			continue
		}
		ep, err := parseEndpoint(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %s", ErrWiring, token, err)
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

func parseEndpoint(token string) (Endpoint, error) {
	ep := Endpoint{InPad: element.StdIn, OutPad: element.StdOut}
	s := strings.TrimSpace(token)

	switch {
	case strings.HasPrefix(s, "<"):
		pad, rest, ok := strings.Cut(strings.TrimSpace(s[1:]), " ")
		if !ok {
			return ep, fmt.Errorf("input pad %q without element", pad)
		}
		ep.InPad, s = pad, strings.TrimSpace(rest)
	case strings.Contains(s, "<"):
		pad, rest, _ := strings.Cut(s, "<")
		ep.InPad, s = strings.TrimSpace(pad), strings.TrimSpace(rest)
	}

	switch {
	case strings.HasSuffix(s, ">"):
		body := strings.TrimSpace(s[:len(s)-1])
		i := strings.LastIndexAny(body, " \t")
		if i < 0 {
			return ep, fmt.Errorf("output pad %q without element", body)
		}
		ep.OutPad, s = body[i+1:], strings.TrimSpace(body[:i])
	case strings.Contains(s, ">"):
		name, pad, _ := strings.Cut(s, ">")
		s, ep.OutPad = strings.TrimSpace(name), strings.TrimSpace(pad)
	}
	ep.Element = s

	for _, part := range [...]struct{ what, v string }{
		{"element", ep.Element},
		{"input pad", ep.InPad},
		{"output pad", ep.OutPad},
	} {
		if part.v == "" {
			return ep, fmt.Errorf("empty %s", part.what)
		}
		if strings.ContainsAny(part.v, "<> \t") {
			return ep, fmt.Errorf("bad %s name %q", part.what, part.v)
		}
	}
	return ep, nil
}
