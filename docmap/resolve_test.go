package docmap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/errors"
)

type fakeDirectory struct {
	contacts []Contact
	nextID   int

	searches int
	creates  int
	failWith error
}

func (d *fakeDirectory) SearchContacts(_ context.Context, query string) ([]Contact, error) {
	d.searches++
	if d.failWith != nil {
		return nil, d.failWith
	}
	norm := NormalizeName(query)
	var found []Contact
	for _, c := range d.contacts {
		if NormalizeName(c.Email) == norm || NormalizeName(c.DisplayName) == norm {
			found = append(found, c)
		}
	}
	return found, nil
}

func (d *fakeDirectory) CreateContact(_ context.Context, c Contact) (*Contact, error) {
	d.creates++
	if d.failWith != nil {
		return nil, d.failWith
	}
	d.nextID++
	c.ID = d.nextID
	d.contacts = append(d.contacts, c)
	return &c, nil
}

func TestResolveFindsExistingByEmail(t *testing.T) {
	dir := &fakeDirectory{contacts: []Contact{{ID: 5, DisplayName: "Acme", Email: "billing@acme.test"}}}
	r := NewContactResolver(dir, time.Hour)

	id, err := r.Resolve(context.Background(), Contact{Email: "Billing@Acme.Test"})
	require.NoError(t, err)
	assert.Equal(t, 5, id)
	assert.Equal(t, 0, dir.creates)
}

func TestResolveFindsExistingByNormalizedName(t *testing.T) {
	dir := &fakeDirectory{contacts: []Contact{{ID: 8, DisplayName: "Acme Corp"}}}
	r := NewContactResolver(dir, time.Hour)

	id, err := r.Resolve(context.Background(), Contact{DisplayName: "  ACME   corp "})
	require.NoError(t, err)
	assert.Equal(t, 8, id)
}

func TestResolveCreatesWhenMissing(t *testing.T) {
	dir := &fakeDirectory{}
	r := NewContactResolver(dir, time.Hour)

	id, err := r.Resolve(context.Background(), Contact{DisplayName: "New Client", Email: "new@client.test"})
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, 1, dir.creates)
}

func TestResolveCachesWithinTTL(t *testing.T) {
	dir := &fakeDirectory{contacts: []Contact{{ID: 3, Email: "a@b.test"}}}
	r := NewContactResolver(dir, time.Hour)

	for i := 0; i < 3; i++ {
		id, err := r.Resolve(context.Background(), Contact{Email: "a@b.test"})
		require.NoError(t, err)
		assert.Equal(t, 3, id)
	}
	assert.Equal(t, 1, dir.searches)
}

func TestResolveCacheExpires(t *testing.T) {
	dir := &fakeDirectory{contacts: []Contact{{ID: 3, Email: "a@b.test"}}}
	r := NewContactResolver(dir, time.Hour)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	_, err := r.Resolve(context.Background(), Contact{Email: "a@b.test"})
	require.NoError(t, err)
	require.Equal(t, 1, dir.searches)

	clock = clock.Add(2 * time.Hour)
	_, err = r.Resolve(context.Background(), Contact{Email: "a@b.test"})
	require.NoError(t, err)
	assert.Equal(t, 2, dir.searches)
}

func TestResolveInvalidate(t *testing.T) {
	dir := &fakeDirectory{contacts: []Contact{{ID: 3, Email: "a@b.test"}}}
	r := NewContactResolver(dir, time.Hour)

	_, err := r.Resolve(context.Background(), Contact{Email: "a@b.test"})
	require.NoError(t, err)
	r.Invalidate()
	_, err = r.Resolve(context.Background(), Contact{Email: "a@b.test"})
	require.NoError(t, err)
	assert.Equal(t, 2, dir.searches)
}

func TestResolveNoIdentity(t *testing.T) {
	r := NewContactResolver(&fakeDirectory{}, time.Hour)
	_, err := r.Resolve(context.Background(), Contact{Phone: "555-123-4567"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSync))
}

func TestResolveSearchFailure(t *testing.T) {
	dir := &fakeDirectory{failWith: errors.New("upstream down")}
	r := NewContactResolver(dir, time.Hour)

	_, err := r.Resolve(context.Background(), Contact{Email: "a@b.test"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSync))
}
