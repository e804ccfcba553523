package importer

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-library/internal/catalog"
)

var ErrInvalidWorkKey = errors.New("invalid work key")

const (
	UnknownAuthor = "Unknown author"
	Unspecified   = "Unspecified"
)

// Rank returns a copy of docs ordered so that candidates tagged with the
// preferred language come first, then those whose title contains one of its
// stop-words. Ties keep the order Open Library returned.
func Rank(docs []Doc, lang *Language) []Doc {
	out := slices.Clone(docs)
	score := func(d Doc) int {
		s := 0
		if slices.Contains(d.Language, lang.Code) {
			s += 2
		}
		if lang.MatchesTitle(d.Title) {
			s++
		}
		return s
	}
	slices.SortStableFunc(out, func(a, b Doc) int {
		return score(b) - score(a)
	})
	return out
}

// Compose maps a candidate and its description to a catalog draft, filling
// missing author, year, category and identifier with sentinels.
func Compose(d Doc, description *string, coverURL *string, now time.Time) catalog.Draft {
	available := true
	draft := catalog.Draft{
		Title:       d.Title,
		Author:      UnknownAuthor,
		Year:        now.Year(),
		Category:    Unspecified,
		ISBN:        "OL-" + strconv.FormatInt(now.UnixMilli(), 10),
		Available:   &available,
		CoverURL:    coverURL,
		Description: description,
	}
	if len(d.AuthorName) > 0 && d.AuthorName[0] != "" {
		draft.Author = d.AuthorName[0]
	}
	if d.FirstPublishYear > 0 {
		draft.Year = d.FirstPublishYear
	}
	if len(d.Subject) > 0 && d.Subject[0] != "" {
		draft.Category = d.Subject[0]
	}
	if len(d.ISBN) > 0 && d.ISBN[0] != "" {
		draft.ISBN = d.ISBN[0]
	}
	return draft
}

// ResultSet holds the last ranked candidate list per administrator.
type ResultSet struct {
	mu   sync.Mutex
	sets map[string][]Doc
}

func NewResultSet() *ResultSet {
	return &ResultSet{sets: map[string][]Doc{}}
}

func (r *ResultSet) Put(owner string, docs []Doc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[owner] = docs
}

func (r *ResultSet) Get(owner string) []Doc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sets[owner])
}

func (r *ResultSet) Find(owner, key string) (Doc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.sets[owner] {
		if d.Key == key {
			return d, true
		}
	}
	return Doc{}, false
}

// Remove drops the candidate with key from owner's list.
func (r *ResultSet) Remove(owner, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[owner] = slices.DeleteFunc(r.sets[owner], func(d Doc) bool { return d.Key == key })
}

// WorkKey accepts "OL45883W", "works/OL45883W" or "/works/OL45883W".
func WorkKey(s string) (string, error) {
	id := strings.TrimPrefix(strings.TrimPrefix(s, "/"), "works/")
	if id == "" || strings.ContainsAny(id, "/.?#") {
		return "", fmt.Errorf("%w %q", ErrInvalidWorkKey, s)
	}
	return "/works/" + id, nil
}
