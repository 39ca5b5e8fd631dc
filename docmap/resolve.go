package docmap

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/finbridge/finbridge/errors"
)

// Contact is one party known to a destination accounting system.
type Contact struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// ContactDirectory is the destination-system surface the resolver needs:
// search by free-text query and create.
type ContactDirectory interface {
	SearchContacts(ctx context.Context, query string) ([]Contact, error)
	CreateContact(ctx context.Context, c Contact) (*Contact, error)
}

// DefaultContactTTL bounds how long resolved contact ids are reused before
// the destination system is consulted again.
const DefaultContactTTL = time.Hour

// ContactResolver maps source-system client records to destination-system
// contact ids, creating contacts on demand. Resolved ids are cached with a
// TTL; the whole cache is dropped on expiry rather than per entry.
//
// Resolution is deliberately fuzzy on names (lowercased, whitespace
// collapsed) but exact on email. Safe for concurrent use.
type ContactResolver struct {
	mu      sync.Mutex
	dir     ContactDirectory
	ttl     time.Duration
	fetched time.Time
	ids     map[string]int

	now func() time.Time
}

// NewContactResolver builds a resolver over dir. A non-positive ttl falls
// back to DefaultContactTTL.
func NewContactResolver(dir ContactDirectory, ttl time.Duration) *ContactResolver {
	if ttl <= 0 {
		ttl = DefaultContactTTL
	}
	return &ContactResolver{
		dir: dir,
		ttl: ttl,
		ids: make(map[string]int),
		now: time.Now,
	}
}

// Resolve returns the destination-system contact id for c, searching by
// email first, then by normalized name, and finally creating the contact.
// A contact with neither email nor name cannot be resolved.
func (r *ContactResolver) Resolve(ctx context.Context, c Contact) (int, error) {
	key, query := contactKey(c)
	if key == "" {
		return 0, errors.NewSync("cannot resolve contact: record has no email or name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.now().Sub(r.fetched) > r.ttl {
		r.ids = make(map[string]int)
		r.fetched = r.now()
	}
	if id, ok := r.ids[key]; ok {
		return id, nil
	}

	found, err := r.dir.SearchContacts(ctx, query)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "search contact %q", query), errors.ErrSync)
	}
	if len(found) > 0 {
		r.cache(found[0])
		return found[0].ID, nil
	}

	created, err := r.dir.CreateContact(ctx, c)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "create contact %q", query), errors.ErrSync)
	}
	r.cache(*created)
	return created.ID, nil
}

// Invalidate drops all cached ids, forcing the next Resolve to consult the
// destination system.
func (r *ContactResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[string]int)
	r.fetched = time.Time{}
}

// cache stores the contact id under every key that could find it again.
// Caller holds r.mu.
func (r *ContactResolver) cache(c Contact) {
	if email := normalizeEmail(c.Email); email != "" {
		r.ids[email] = c.ID
	}
	if name := NormalizeName(c.DisplayName); name != "" {
		r.ids["name:"+name] = c.ID
	}
	r.ids["id:"+strconv.Itoa(c.ID)] = c.ID
}

// contactKey picks the cache key and search query for a contact: the email
// when present, the normalized name otherwise.
func contactKey(c Contact) (key, query string) {
	if email := normalizeEmail(c.Email); email != "" {
		return email, c.Email
	}
	if name := NormalizeName(c.DisplayName); name != "" {
		return "name:" + name, c.DisplayName
	}
	return "", ""
}

func normalizeEmail(email string) string {
	return NormalizeName(email)
}
