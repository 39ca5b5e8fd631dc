// Package paperless integrates the Paperless-NGX document management
// system, both as a document source for processing and as a sync target.
package paperless

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/finbridge/finbridge/docmap"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/internal/httpclient"
)

// Document is one Paperless-NGX document.
type Document struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
	Tags    []int     `json:"tags,omitempty"`
}

// ToRecord converts a Paperless document into the extraction-layer shape.
func (d Document) ToRecord() docmap.Document {
	return docmap.Document{
		ID:      d.ID,
		Title:   d.Title,
		Created: d.Created,
		Content: d.Content,
		Source:  "Paperless",
	}
}

// Client talks to one Paperless-NGX instance. Authentication is
// "Authorization: Token <token>"; list endpoints paginate through a
// {"count", "next", "results"} envelope.
type Client struct {
	rest *httpclient.Client
}

// NewClient builds a client for the Paperless-NGX instance at baseURL.
func NewClient(baseURL, token string, opts ...httpclient.Option) *Client {
	return &Client{
		rest: httpclient.New(baseURL, httpclient.TokenAuth{Token: token}, opts...),
	}
}

type documentPage struct {
	Count   int        `json:"count"`
	Next    *string    `json:"next"`
	Results []Document `json:"results"`
}

// Ping verifies the instance is reachable with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	var page documentPage
	query := url.Values{"page_size": {"1"}}
	if err := c.rest.Get(ctx, "/api/documents/", query, &page); err != nil {
		return errors.Wrap(err, "paperless ping")
	}
	return nil
}

// Document returns one document with its OCR content.
func (c *Client) Document(ctx context.Context, id int) (*Document, error) {
	var doc Document
	if err := c.rest.Get(ctx, "/api/documents/"+strconv.Itoa(id)+"/", nil, &doc); err != nil {
		return nil, errors.Wrapf(err, "get document %d", id)
	}
	return &doc, nil
}

// Documents returns every document matching the query, walking pagination
// until the server reports no next page. An empty query lists everything.
func (c *Client) Documents(ctx context.Context, search string) ([]Document, error) {
	query := url.Values{"page_size": {"100"}}
	if search != "" {
		query.Set("query", search)
	}

	var all []Document
	page := 1
	for {
		query.Set("page", strconv.Itoa(page))
		var resp documentPage
		if err := c.rest.Get(ctx, "/api/documents/", query, &resp); err != nil {
			return nil, errors.Wrapf(err, "list documents page %d", page)
		}
		all = append(all, resp.Results...)
		if resp.Next == nil || len(resp.Results) == 0 {
			return all, nil
		}
		page++
	}
}

// TagDocument replaces a document's tag set, used to mark documents as
// synced so they are not picked up again.
func (c *Client) TagDocument(ctx context.Context, id int, tags []int) error {
	body := map[string]interface{}{"tags": tags}
	var doc Document
	if err := c.rest.Put(ctx, "/api/documents/"+strconv.Itoa(id)+"/", body, &doc); err != nil {
		return errors.Wrapf(err, "tag document %d", id)
	}
	return nil
}
