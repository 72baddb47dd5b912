package processor

import (
	"fmt"
	"strings"
)

// RenderDetail describes one template problem in words a template author can
// act on.
type RenderDetail struct {
	Field       string
	Explanation string
}

func (d RenderDetail) String() string {
	if d.Field == "" {
		return d.Explanation
	}
	return fmt.Sprintf("field %q: %s", d.Field, d.Explanation)
}

// RenderError aggregates every problem found during one render pass. The
// message is meant to be shown directly to whoever authored the template.
type RenderError struct {
	Details []RenderDetail
}

func (e *RenderError) Error() string {
	if len(e.Details) == 1 {
		return e.Details[0].String()
	}
	parts := make([]string, len(e.Details))
	for i, d := range e.Details {
		parts[i] = fmt.Sprintf("%d) %s", i+1, d.String())
	}
	return strings.Join(parts, "; ")
}
