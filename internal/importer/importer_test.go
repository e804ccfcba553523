package importer_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-library/internal/catalog/catalogtest"
	catalogentity "github.com/ovaphlow/pitchfork/service-library/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/importer"
	"github.com/ovaphlow/pitchfork/service-library/internal/translate"
)

const coversBase = "https://covers.openlibrary.org"

func italian(t *testing.T) *importer.Language {
	t.Helper()
	l, err := importer.LookupLanguage("ita")
	require.NoError(t, err)
	return l
}

func TestRankIsStableAndPrefersLanguage(t *testing.T) {
	lang := italian(t)
	docs := []importer.Doc{
		{Key: "/works/A", Title: "Dune", Language: []string{"eng"}},
		{Key: "/works/B", Title: "Il ciclo di Dune"},
		{Key: "/works/C", Title: "Dune", Language: []string{"eng", "ita"}},
		{Key: "/works/D", Title: "Dune Messiah"},
		{Key: "/works/E", Title: "La saga", Language: []string{"ita"}},
	}
	ranked := importer.Rank(docs, lang)
	keys := func(ds []importer.Doc) []string {
		out := make([]string, len(ds))
		for i, d := range ds {
			out[i] = d.Key
		}
		return out
	}
	want := []string{"/works/E", "/works/C", "/works/B", "/works/A", "/works/D"}
	if diff := cmp.Diff(want, keys(ranked)); diff != "" {
		t.Fatalf("rank (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ranked, importer.Rank(ranked, lang)); diff != "" {
		t.Fatalf("re-rank changed order:\n%s", diff)
	}
	assert.Equal(t, "/works/A", docs[0].Key, "input must not be reordered")

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		shuffled := append([]importer.Doc(nil), docs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		seenUntagged := false
		for _, d := range importer.Rank(shuffled, lang) {
			tagged := false
			for _, l := range d.Language {
				tagged = tagged || l == "ita"
			}
			if !tagged {
				seenUntagged = true
			} else {
				require.False(t, seenUntagged, "tagged %s sorted after an untagged candidate", d.Key)
			}
		}
	}
}

func TestNormalizeDescription(t *testing.T) {
	str := func(s string) *string { return &s }
	cases := []struct {
		name string
		raw  string
		want *string
	}{
		{"plain string", `"A desert planet"`, str("A desert planet")},
		{"value object", `{"type":"/type/text","value":"Nested"}`, str("Nested")},
		{"absent", ``, nil},
		{"null", `null`, nil},
		{"object without value", `{"type":"/type/text"}`, nil},
		{"number", `42`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := importer.NormalizeDescription(json.RawMessage(tc.raw))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestComposeSubstitutesSentinels(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	d := importer.Compose(importer.Doc{Key: "/works/X", Title: "Anonimo"}, nil, nil, now)

	assert.Equal(t, importer.UnknownAuthor, d.Author)
	assert.Equal(t, 2024, d.Year)
	assert.Equal(t, importer.Unspecified, d.Category)
	assert.Equal(t, "OL-1714979289000", d.ISBN)
	require.NotNil(t, d.Available)
	assert.True(t, *d.Available)
	assert.Nil(t, d.CoverURL)
	assert.Nil(t, d.Description)

	full := importer.Compose(importer.Doc{
		Title: "Dune", AuthorName: []string{"Frank Herbert", "Other"}, FirstPublishYear: 1965,
		ISBN: []string{"9780441013593"}, Subject: []string{"science_fiction", "ecology"},
	}, nil, nil, now)
	assert.Equal(t, "Frank Herbert", full.Author)
	assert.Equal(t, 1965, full.Year)
	assert.Equal(t, "science_fiction", full.Category)
	assert.Equal(t, "9780441013593", full.ISBN)
}

func TestWorkKey(t *testing.T) {
	for _, in := range []string{"OL1W", "works/OL1W", "/works/OL1W"} {
		k, err := importer.WorkKey(in)
		require.NoError(t, err)
		assert.Equal(t, "/works/OL1W", k)
	}
	for _, in := range []string{"", "/works/", "OL1W/../x", "OL1W.json"} {
		_, err := importer.WorkKey(in)
		assert.ErrorIs(t, err, importer.ErrInvalidWorkKey, in)
	}
}

func TestTables(t *testing.T) {
	langs, err := importer.Languages()
	require.NoError(t, err)
	for _, code := range []string{"ita", "eng", "spa", "fre", "ger"} {
		require.Contains(t, langs, code)
		assert.NotEmpty(t, langs[code].Target)
	}
	assert.True(t, langs["ita"].MatchesTitle("Il nome della rosa"))
	assert.False(t, langs["ita"].MatchesTitle("Dune"))

	_, err = importer.LookupLanguage("klingon")
	assert.Error(t, err)

	subjects, err := importer.Subjects()
	require.NoError(t, err)
	assert.Equal(t, importer.Subject{Value: "science_fiction", Label: "Fantascienza"}, subjects[2])
}

// openLibrary fakes search.json and three work documents.
type openLibrary struct {
	*httptest.Server
	fail atomic.Bool
}

func newOpenLibrary(t *testing.T) *openLibrary {
	t.Helper()
	ol := &openLibrary{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search.json", func(w http.ResponseWriter, r *http.Request) {
		if ol.fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "key,title,author_name,first_publish_year,isbn,subject,cover_i,language", q.Get("fields"))
		if q.Get("title") != "Dune" {
			_, _ = w.Write([]byte(`{"docs":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"numFound":3,"docs":[
			{"key":"/works/OL1W","title":"Dune","author_name":["Frank Herbert"],"first_publish_year":1965,"isbn":["9780441013593"],"subject":["science_fiction"],"cover_i":12345,"language":["eng"]},
			{"key":"/works/OL2W","title":"Dune","author_name":["Frank Herbert"],"cover_i":777,"language":["ita"]},
			{"key":"/works/OL3W","title":"Dune Encyclopedia"}
		]}`))
	})
	mux.HandleFunc("GET /works/OL1W.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"description":{"type":"/type/text","value":"A desert planet."}}`))
	})
	mux.HandleFunc("GET /works/OL2W.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"description":"Un pianeta deserto."}`))
	})
	ol.Server = httptest.NewServer(mux)
	t.Cleanup(ol.Close)
	return ol
}

type stubTranslator struct {
	err   error
	calls atomic.Int32
}

func (s *stubTranslator) Translate(_ context.Context, text, target string) (*translate.Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &translate.Result{TranslatedText: "[" + target + "] " + text}, nil
}

func newService(t *testing.T, ol *openLibrary, tr translate.Translator) (*importer.Service, *catalogtest.MemStore) {
	t.Helper()
	store := catalogtest.NewMemStore()
	client := importer.NewClient(ol.URL, coversBase, time.Second)
	svc := importer.NewService(client, catalog.NewService(store, nil), tr, italian(t),
		importer.Options{SearchLimit: 50, DisplayLimit: 20}, zap.NewNop().Sugar())
	return svc, store
}

func TestSearchAndImportScenario(t *testing.T) {
	ol := newOpenLibrary(t)
	tr := &stubTranslator{}
	svc, store := newService(t, ol, tr)
	ctx := context.Background()

	cands, err := svc.Search(ctx, "admin", importer.Filters{Title: "Dune"})
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, "/works/OL2W", cands[0].Key)
	assert.True(t, cands[0].Preferred)
	require.NotNil(t, cands[1].Thumbnail)
	assert.Equal(t, coversBase+"/b/id/12345-M.jpg", *cands[1].Thumbnail)

	// no cover_i and a missing work document
	noCover, err := svc.Import(ctx, "admin", "OL3W")
	require.NoError(t, err)
	assert.Nil(t, noCover.CoverURL)
	assert.Nil(t, noCover.Description)
	assert.Equal(t, importer.UnknownAuthor, noCover.Author)
	assert.True(t, strings.HasPrefix(noCover.ISBN, "OL-"))
	assert.True(t, noCover.Available)

	withCover, err := svc.Import(ctx, "admin", "/works/OL1W")
	require.NoError(t, err)
	require.NotNil(t, withCover.CoverURL)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/12345-L.jpg", *withCover.CoverURL)
	require.NotNil(t, withCover.Description)
	assert.Equal(t, "[IT] A desert planet.", *withCover.Description)
	assert.EqualValues(t, 1, tr.calls.Load())

	stored, err := store.Get(ctx, withCover.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", stored.Title)

	left := svc.Candidates("admin")
	require.Len(t, left, 1)
	assert.Equal(t, "/works/OL2W", left[0].Key)

	_, err = svc.Import(ctx, "admin", "OL1W")
	assert.ErrorIs(t, err, importer.ErrUnknownCandidate)
	_, err = svc.Import(ctx, "someone-else", "OL2W")
	assert.ErrorIs(t, err, importer.ErrUnknownCandidate)
}

func TestImportKeepsUntranslatedTextOnFailure(t *testing.T) {
	ol := newOpenLibrary(t)
	svc, _ := newService(t, ol, &stubTranslator{err: errors.New("quota exceeded")})
	ctx := context.Background()

	_, err := svc.Search(ctx, "admin", importer.Filters{Title: "Dune"})
	require.NoError(t, err)
	it, err := svc.Import(ctx, "admin", "OL2W")
	require.NoError(t, err)
	require.NotNil(t, it.Description)
	assert.Equal(t, "Un pianeta deserto.", *it.Description)
}

type downCatalog struct{ err error }

func (c downCatalog) Create(context.Context, catalog.Draft) (*catalogentity.Item, error) {
	return nil, c.err
}

func TestImportPersistFailureKeepsCandidates(t *testing.T) {
	ol := newOpenLibrary(t)
	dbDown := errors.New("db down")
	svc := importer.NewService(importer.NewClient(ol.URL, coversBase, time.Second), downCatalog{err: dbDown},
		nil, italian(t), importer.Options{}, zap.NewNop().Sugar())
	ctx := context.Background()

	_, err := svc.Search(ctx, "admin", importer.Filters{Title: "Dune"})
	require.NoError(t, err)

	_, err = svc.Import(ctx, "admin", "OL1W")
	assert.ErrorIs(t, err, dbDown)

	left := svc.Candidates("admin")
	require.Len(t, left, 3)
	keys := make([]string, 0, len(left))
	for _, c := range left {
		keys = append(keys, c.Key)
	}
	assert.Contains(t, keys, "/works/OL1W")
}

func TestSearchFailureLeavesResultSet(t *testing.T) {
	ol := newOpenLibrary(t)
	svc, _ := newService(t, ol, nil)
	ctx := context.Background()

	_, err := svc.Search(ctx, "admin", importer.Filters{Title: "Dune"})
	require.NoError(t, err)

	ol.fail.Store(true)
	_, err = svc.Search(ctx, "admin", importer.Filters{Title: "Dune"})
	assert.ErrorIs(t, err, importer.ErrUpstream)
	assert.Len(t, svc.Candidates("admin"), 3)

	_, err = svc.Search(ctx, "admin", importer.Filters{})
	assert.Error(t, err)
}

func TestSearchTruncatesToDisplayLimit(t *testing.T) {
	ol := newOpenLibrary(t)
	store := catalogtest.NewMemStore()
	svc := importer.NewService(importer.NewClient(ol.URL, coversBase, time.Second), catalog.NewService(store, nil),
		nil, italian(t), importer.Options{SearchLimit: 50, DisplayLimit: 2}, zap.NewNop().Sugar())

	cands, err := svc.Search(context.Background(), "admin", importer.Filters{Title: "Dune"})
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestHandler(t *testing.T) {
	ol := newOpenLibrary(t)
	svc, _ := newService(t, ol, nil)
	h := importer.NewHandler(svc, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/import/subjects", h.Subjects)
	mux.HandleFunc("POST /api/admin/import/search", h.Search)
	mux.HandleFunc("POST /api/admin/import/works/{key}", h.Import)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/import/subjects", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":"mystery_and_detective_stories"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/import/search", strings.NewReader(`{"title":"Dune"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var cands []importer.Candidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cands))
	assert.Len(t, cands, 3)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/import/works/OL2W", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"candidates":[`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/import/works/OL2W", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/import/search", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	ol.fail.Store(true)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/import/search", strings.NewReader(`{"title":"Dune"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
