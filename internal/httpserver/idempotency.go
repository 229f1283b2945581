package httpserver

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// IdempotencyHeader carries the client-supplied retry token.
const IdempotencyHeader = "Idempotency-Key"

// cachedResponse is a captured handler response.
type cachedResponse struct {
	status  int
	header  http.Header
	body    []byte
	expires time.Time
}

// recorder captures a response instead of writing it.
type recorder struct {
	status int
	header http.Header
	body   bytes.Buffer
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

// idempotencyCache replays the first successful response for a
// (user, method, path, key) tuple until it expires. Concurrent requests
// with the same tuple share one execution.
type idempotencyCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*cachedResponse
}

func newIdempotencyCache(ttl time.Duration, now func() time.Time) *idempotencyCache {
	return &idempotencyCache{ttl: ttl, now: now, entries: make(map[string]*cachedResponse)}
}

func (c *idempotencyCache) get(key string) (*cachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	e, ok := c.entries[key]
	return e, ok
}

func (c *idempotencyCache) put(key string, resp *cachedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp.expires = c.now().Add(c.ttl)
	c.entries[key] = resp
}

// middleware must run after authentication so the key is scoped to the
// caller. Requests without the header pass straight through.
func (c *idempotencyCache) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(IdempotencyHeader)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID := ""
		if u := currentUser(r); u != nil {
			userID = u.ID
		}
		key := userID + "\x00" + r.Method + "\x00" + r.URL.Path + "\x00" + token

		if resp, ok := c.get(key); ok {
			log.Debug().Str("path", r.URL.Path).Msg("idempotent replay")
			replay(w, resp, true)
			return
		}
		v, _, _ := c.group.Do(key, func() (any, error) {
			if resp, ok := c.get(key); ok {
				return resp, nil
			}
			rec := &recorder{header: http.Header{}}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			resp := &cachedResponse{status: rec.status, header: rec.header, body: rec.body.Bytes()}
			if resp.status >= 200 && resp.status < 300 {
				c.put(key, resp)
			}
			return resp, nil
		})
		replay(w, v.(*cachedResponse), false)
	})
}

func replay(w http.ResponseWriter, resp *cachedResponse, replayed bool) {
	for k, vs := range resp.header {
		w.Header()[k] = append([]string(nil), vs...)
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}
