package swapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ResourceType names one collection of the remote catalog.
type ResourceType string

const (
	TypePeople    ResourceType = "people"
	TypeFilms     ResourceType = "films"
	TypePlanets   ResourceType = "planets"
	TypeSpecies   ResourceType = "species"
	TypeVehicles  ResourceType = "vehicles"
	TypeStarships ResourceType = "starships"
)

// Resources lists every resource type in the order search results are shown.
var Resources = []ResourceType{TypePeople, TypeFilms, TypePlanets, TypeSpecies, TypeVehicles, TypeStarships}

// ParseResourceType validates s against the known resource types.
func ParseResourceType(s string) (ResourceType, error) {
	rt := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !rt.Valid() {
		return "", fmt.Errorf("unknown resource type %q", s)
	}
	return rt, nil
}

func (r ResourceType) Valid() bool {
	for _, known := range Resources {
		if r == known {
			return true
		}
	}
	return false
}

func (r ResourceType) String() string { return string(r) }

// Page is one fetched page of a resource collection, or the matches of a
// server-side search. Pages are treated as immutable once stored in the cache;
// changes produce a new Page.
type Page struct {
	Resource ResourceType `json:"resource"`
	Number   int          `json:"page,omitempty"`
	Results  []Entity     `json:"results"`
	Count    int          `json:"count"`
	Next     string       `json:"next,omitempty"`
	Previous string       `json:"previous,omitempty"`
}

// HasNext reports whether the server advertised a following page.
func (p *Page) HasNext() bool { return p.Next != "" }

// WithResults returns a copy of p carrying results instead of p.Results.
func (p *Page) WithResults(results []Entity) *Page {
	cp := *p
	cp.Results = results
	return &cp
}

// Ref is a cross-reference to another entity. The remote API sends bare URLs;
// a resolved reference additionally carries the nested entity.
type Ref[T any] struct {
	URI   string
	Value *T
}

// Unresolved builds a reference that only knows its target URL.
func Unresolved[T any](uri string) Ref[T] { return Ref[T]{URI: uri} }

// Resolved builds a reference carrying the nested entity.
func Resolved[T any](uri string, v *T) Ref[T] { return Ref[T]{URI: uri, Value: v} }

// Resolve returns the nested entity when the reference has been resolved.
func (r Ref[T]) Resolve() (*T, bool) { return r.Value, r.Value != nil }

func (r Ref[T]) IsZero() bool { return r.URI == "" && r.Value == nil }

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Value != nil {
		return json.Marshal(r.Value)
	}
	if r.URI == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.URI)
}

func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = Ref[T]{}
		return nil
	case data[0] == '"':
		var uri string
		if err := json.Unmarshal(data, &uri); err != nil {
			return err
		}
		*r = Ref[T]{URI: uri}
		return nil
	case data[0] == '{':
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return err
		}
		var probe struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal(data, &probe)
		*r = Ref[T]{URI: probe.URL, Value: v}
		return nil
	default:
		return fmt.Errorf("reference must be a string or an object, got %s", truncate(data, 32))
	}
}

// IDFromURL derives the numeric id from a resource URL such as
// "https://swapi.dev/api/people/1/".
func IDFromURL(u string) (int, error) {
	seg := lastSegment(u)
	if seg == "" {
		return 0, fmt.Errorf("no id segment in %q", u)
	}
	id, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("id segment of %q: %w", u, err)
	}
	return id, nil
}

func lastSegment(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}

// apiPage is the raw paginated envelope returned by the remote API.
type apiPage struct {
	Count    *int              `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
