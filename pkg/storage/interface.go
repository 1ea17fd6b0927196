package storage

import "time"

// CachedPage is one stored fetch result.
type CachedPage struct {
	Body       []byte    `json:"body"`
	FinalURL   string    `json:"final_url"`
	StatusCode int       `json:"status_code"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// PageCache stores fetched page bodies keyed by request URL so repeated runs
// inside the TTL window reuse bodies instead of re-fetching. Get returns
// (nil, nil) on a miss or expired entry.
type PageCache interface {
	Get(url string) (*CachedPage, error)
	Put(url string, body []byte, finalURL string, statusCode int) error
	Close() error
}
