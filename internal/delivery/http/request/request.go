package request

import (
	"fmt"
	"net/http"
)

// RunView selects how much of a run GET /api/runs/{id} returns.
type RunView string

const (
	RunViewFull    RunView = "full"
	RunViewSummary RunView = "summary"
)

// ParseRunView reads the optional "view" query parameter.
func ParseRunView(r *http.Request) (RunView, error) {
	switch v := RunView(r.URL.Query().Get("view")); v {
	case "", RunViewFull:
		return RunViewFull, nil
	case RunViewSummary:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q, expected %q or %q", v, RunViewFull, RunViewSummary)
	}
}
