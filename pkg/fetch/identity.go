package fetch

import (
	"net/http"
	"sync/atomic"
)

// Identity is one browser-like client identity: the header set attached to an
// outbound request.
type Identity struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
}

// IdentityPool rotates over a set of identities round-robin. Rotation is per
// request, not sticky per host.
type IdentityPool struct {
	identities []Identity
	next       atomic.Uint64
}

// NewIdentityPool builds a pool from user-agent strings, filling in matching
// Accept headers.
func NewIdentityPool(userAgents []string) *IdentityPool {
	identities := make([]Identity, 0, len(userAgents))
	for _, ua := range userAgents {
		identities = append(identities, Identity{
			UserAgent:      ua,
			Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			AcceptLanguage: "en-US,en;q=0.9",
		})
	}
	return &IdentityPool{identities: identities}
}

// Next returns the next identity in rotation.
func (p *IdentityPool) Next() Identity {
	idx := p.next.Add(1) - 1
	return p.identities[idx%uint64(len(p.identities))]
}

// Apply sets the identity's headers on req.
func (id Identity) Apply(req *http.Request) {
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Accept", id.Accept)
	req.Header.Set("Accept-Language", id.AcceptLanguage)
}

// Size returns the number of identities in the pool.
func (p *IdentityPool) Size() int { return len(p.identities) }
