package cache

import (
	"fmt"
	"time"

	"github.com/aryannaik/holocron/internal/swapi"
)

// Kind separates paginated listings from search results.
type Kind int

const (
	KindList Kind = iota
	KindSearch
)

// Fingerprint identifies one fetchable unit of data.
type Fingerprint struct {
	Kind     Kind
	Resource swapi.ResourceType
	Page     int
	Term     string
}

// ListKey fingerprints page n of a resource collection.
func ListKey(rt swapi.ResourceType, n int) Fingerprint {
	return Fingerprint{Kind: KindList, Resource: rt, Page: n}
}

// SearchKey fingerprints the matches for term within one resource type.
func SearchKey(rt swapi.ResourceType, term string) Fingerprint {
	return Fingerprint{Kind: KindSearch, Resource: rt, Term: term}
}

func (f Fingerprint) String() string {
	if f.Kind == KindSearch {
		return fmt.Sprintf("%s?search=%q", f.Resource, f.Term)
	}
	return fmt.Sprintf("%s?page=%d", f.Resource, f.Page)
}

// Entry is a point-in-time view of one cached fingerprint.
type Entry struct {
	Page      *swapi.Page
	Fresh     bool
	Local     bool // last written by Set rather than a fetch
	Version   uint64
	UpdatedAt time.Time
}
