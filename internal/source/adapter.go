package source

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pinwater/waterwatch/internal/model"
)

// Query is the normalized input every adapter receives.
type Query struct {
	Location   model.Location
	RadiusKM   float64
	WindowDays int
	Now        time.Time
}

// Adapter fetches one domain's evidence. Adapters are stateless and safe to
// call concurrently; failures are returned as typed SourceResults, never as
// panics or escaping errors.
type Adapter interface {
	Domain() model.Domain
	Fetch(ctx context.Context, q Query) model.SourceResult
}

// row is a loosely-typed upstream record. Provider field names and casing
// vary; accessors below try each candidate name case-insensitively.
type row map[string]any

// str returns the first matching field as a string.
func (r row) str(names ...string) string {
	v := r.lookup(names)
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

// num returns the first matching field as a float64, with ok=false when the
// field is absent or unparseable.
func (r row) num(names ...string) (float64, bool) {
	v := r.lookup(names)
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func (r row) lookup(names []string) any {
	for _, n := range names {
		if v, ok := r[n]; ok {
			return v
		}
	}
	for k, v := range r {
		for _, n := range names {
			if strings.EqualFold(k, n) {
				return v
			}
		}
	}
	return nil
}

// decodeRows unmarshals a JSON array of loosely-typed records. Some EPA
// services wrap the array one level deep; wrapperKeys names are tried first.
func decodeRows(body []byte, wrapperKeys ...string) ([]row, error) {
	var rows []row
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	for _, key := range wrapperKeys {
		for k, raw := range wrapped {
			if strings.EqualFold(k, key) {
				if err := json.Unmarshal(raw, &rows); err != nil {
					return nil, err
				}
				return rows, nil
			}
		}
	}
	return nil, errNoRows
}

var errNoRows = jsonError("no recognizable row array in payload")

type jsonError string

func (e jsonError) Error() string { return string(e) }
