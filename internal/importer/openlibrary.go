package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUpstream wraps Open Library transport and status failures.
var ErrUpstream = errors.New("open library unavailable")

// searchFields is the projection requested from search.json.
const searchFields = "key,title,author_name,first_publish_year,isbn,subject,cover_i,language"

// Doc is one search.json result.
type Doc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name,omitempty"`
	FirstPublishYear int      `json:"first_publish_year,omitempty"`
	ISBN             []string `json:"isbn,omitempty"`
	Subject          []string `json:"subject,omitempty"`
	CoverI           int      `json:"cover_i,omitempty"`
	Language         []string `json:"language,omitempty"`
}

// Filters are the search inputs. Empty fields are not sent.
type Filters struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	ISBN    string `json:"isbn"`
	Year    int    `json:"year"`
	Subject string `json:"subject"`
}

func (f Filters) empty() bool {
	return f.Title == "" && f.Author == "" && f.ISBN == "" && f.Year == 0 && f.Subject == ""
}

func (f Filters) query(limit int) url.Values {
	q := url.Values{}
	if f.Title != "" {
		q.Set("title", f.Title)
	}
	if f.Author != "" {
		q.Set("author", f.Author)
	}
	if f.ISBN != "" {
		q.Set("isbn", f.ISBN)
	}
	if f.Year != 0 {
		q.Set("first_publish_year", strconv.Itoa(f.Year))
	}
	if f.Subject != "" {
		q.Set("subject", f.Subject)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", searchFields)
	return q
}

// Client is an unauthenticated Open Library client.
type Client struct {
	base   string
	covers string
	http   *http.Client
}

func NewClient(base, covers string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		covers: strings.TrimRight(covers, "/"),
		http:   &http.Client{Timeout: timeout},
	}
}

// Search runs search.json with f and returns up to limit documents.
func (c *Client) Search(ctx context.Context, f Filters, limit int) ([]Doc, error) {
	endpoint := c.base + "/search.json?" + f.query(limit).Encode()
	var out struct {
		Docs []Doc `json:"docs"`
	}
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrUpstream, err)
	}
	if out.Docs == nil {
		out.Docs = []Doc{}
	}
	return out.Docs, nil
}

// Description fetches the work document for key ("/works/OL…W") and returns
// its normalized description.
func (c *Client) Description(ctx context.Context, key string) (*string, error) {
	var work struct {
		Description json.RawMessage `json:"description"`
	}
	if err := c.getJSON(ctx, c.base+key+".json", &work); err != nil {
		return nil, fmt.Errorf("%w: work %s: %v", ErrUpstream, key, err)
	}
	return NormalizeDescription(work.Description), nil
}

// CoverURL builds the cover image URL for id at size S, M or L.
func (c *Client) CoverURL(id int, size string) *string {
	if id <= 0 {
		return nil
	}
	u := fmt.Sprintf("%s/b/id/%d-%s.jpg", c.covers, id, size)
	return &u
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// NormalizeDescription accepts a JSON string, an object with a string "value",
// or anything else, and yields the string, the nested string, or nil.
func NormalizeDescription(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var obj struct {
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != nil {
		return obj.Value
	}
	return nil
}
