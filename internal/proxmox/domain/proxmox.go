package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Response is the envelope wrapped around every api2/json reply.
type Response struct {
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
	Message string            `json:"message,omitempty"`
}

type AuthResponse struct {
	Data struct {
		Username            string `json:"username"`
		Ticket              string `json:"ticket"`
		CSRFPreventionToken string `json:"CSRFPreventionToken"`
	} `json:"data"`
}

// APIError is returned for any non-2xx reply.
type APIError struct {
	StatusCode int
	Status     string
	Method     string
	Path       string
	Message    string
	Errors     map[string]string
}

func (e *APIError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s: %s", e.Method, e.Path, e.Status)

	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", strings.TrimSpace(e.Message))
	}

	if len(e.Errors) > 0 {
		keys := make([]string, 0, len(e.Errors))
		for k := range e.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(&b, " [%s: %s]", k, strings.TrimSpace(e.Errors[k]))
		}
	}

	return b.String()
}
