package mutation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aryannaik/holocron/internal/swapi"
)

const localScheme = "local://"

// LocalURL is the identity of the n-th entity of kind rt created in this
// session. Its id segment ("local-n") can never equal a remote numeric id.
func LocalURL(rt swapi.ResourceType, n int) string {
	return fmt.Sprintf("%s%s/local-%d/", localScheme, rt, n)
}

// IsLocalURL reports whether u was minted by an IdentitySource.
func IsLocalURL(u string) bool { return strings.HasPrefix(u, localScheme) }

// IdentitySource mints identities for created entities. A per-kind counter
// plus a check against identities already in use makes them collision-free
// within a session.
type IdentitySource struct {
	mu   sync.Mutex
	next map[swapi.ResourceType]int
}

func NewIdentitySource() *IdentitySource {
	return &IdentitySource{next: make(map[swapi.ResourceType]int)}
}

// Next returns an identity for kind rt for which taken reports false.
func (s *IdentitySource) Next(rt swapi.ResourceType, taken func(string) bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		s.next[rt]++
		id := LocalURL(rt, s.next[rt])
		if taken == nil || !taken(id) {
			return id
		}
	}
}
