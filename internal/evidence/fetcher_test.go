package evidence

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierTiers(t *testing.T) {
	c := NewClassifier(nil, nil)

	assert.Equal(t, 1, c.Tier("www.nytimes.com"))
	assert.Equal(t, 1, c.Tier("en.wikipedia.org"))
	assert.Equal(t, 2, c.Tier("www.sherdog.com"))
	assert.Equal(t, 3, c.Tier("example.com"))
	assert.Equal(t, 3, c.Tier(""))
}

func TestClassifierCustomLists(t *testing.T) {
	c := NewClassifier([]string{"alpha.org"}, []string{"beta.org"})

	assert.Equal(t, 1, c.Tier("news.alpha.org"))
	assert.Equal(t, 2, c.Tier("beta.org"))
	assert.Equal(t, 3, c.Tier("nytimes.com"), "defaults are replaced, not merged")
}

func newTestFetcher(opts ...Option) *Fetcher {
	return NewFetcher(NewClassifier(nil, nil), opts...)
}

func TestFetchAllExtractsTitleAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Champion Profile</title></head>
<body><nav>menu</nav><script>var x=1;</script>
<article>An in-depth profile of the athlete.</article>
<footer>copyright</footer></body></html>`)
	}))
	defer srv.Close()

	f := newTestFetcher()
	sources := f.FetchAll(context.Background(), []string{srv.URL})

	require.Len(t, sources, 1)
	s := sources[0]
	assert.True(t, s.FetchSucceeded)
	assert.Equal(t, "Champion Profile", s.Title)
	assert.Equal(t, "An in-depth profile of the athlete.", s.BodyText)
	assert.NotContains(t, s.BodyText, "menu")
	assert.NotContains(t, s.BodyText, "var x=1")
	assert.NotContains(t, s.BodyText, "copyright")
	assert.Equal(t, 3, s.Tier)
}

func TestFetchAllOGTitleFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="og:title" content="OG Name"></head><body><p>text</p></body></html>`)
	}))
	defer srv.Close()

	f := newTestFetcher()
	sources := f.FetchAll(context.Background(), []string{srv.URL})
	require.Len(t, sources, 1)
	assert.Equal(t, "OG Name", sources[0].Title)
}

func TestFetchAllUntitledFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>no head at all</p></body></html>`)
	}))
	defer srv.Close()

	f := newTestFetcher()
	sources := f.FetchAll(context.Background(), []string{srv.URL})
	require.Len(t, sources, 1)
	assert.Equal(t, "Untitled", sources[0].Title)
}

func TestFetchAllDeduplicates(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `<html><head><title>Page</title></head><body>body</body></html>`)
	}))
	defer srv.Close()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Other</title></head><body>body</body></html>`)
	}))
	defer other.Close()

	f := newTestFetcher()
	sources := f.FetchAll(context.Background(), []string{srv.URL, srv.URL, other.URL})

	assert.Len(t, sources, 2, "duplicate URL fetched once")
	assert.Equal(t, 1, hits)
}

func TestFetchAllTimeoutDoesNotAbortBatch(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, "<html><body>late</body></html>")
	}))
	defer slow.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Fast</title></head><body>quick body</body></html>`)
	}))
	defer fast.Close()

	f := newTestFetcher(WithTimeout(50 * time.Millisecond))
	sources := f.FetchAll(context.Background(), []string{slow.URL, fast.URL})

	require.Len(t, sources, 2)
	// Successful fetch sorts first.
	assert.True(t, sources[0].FetchSucceeded)
	assert.Equal(t, "Fast", sources[0].Title)
	assert.False(t, sources[1].FetchSucceeded)
	assert.NotEmpty(t, sources[1].Error)
}

func TestFetchAllHTTPErrorRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher()
	sources := f.FetchAll(context.Background(), []string{srv.URL})
	require.Len(t, sources, 1)
	assert.False(t, sources[0].FetchSucceeded)
	assert.Contains(t, sources[0].Error, "403")
}

func TestFetchAllInvalidURL(t *testing.T) {
	f := newTestFetcher()
	sources := f.FetchAll(context.Background(), []string{"::not a url::"})
	require.Len(t, sources, 1)
	assert.False(t, sources[0].FetchSucceeded)
	assert.NotEmpty(t, sources[0].Error)
}

func TestFetchAllEmptyInput(t *testing.T) {
	f := newTestFetcher()
	assert.Nil(t, f.FetchAll(context.Background(), nil))
	assert.Nil(t, f.FetchAll(context.Background(), []string{"", "   "}))
}

func TestFetchAllBodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Long</title></head><body>%s</body></html>`,
			strings.Repeat("word ", 5000))
	}))
	defer srv.Close()

	f := newTestFetcher(WithMaxBodyChars(100))
	sources := f.FetchAll(context.Background(), []string{srv.URL})
	require.Len(t, sources, 1)
	assert.True(t, strings.HasSuffix(sources[0].BodyText, "... [Content truncated]"))
	assert.LessOrEqual(t, len(sources[0].BodyText), 100+len("... [Content truncated]"))
}

func TestFetchAllBodyCapKeepsValidUTF8(t *testing.T) {
	// Two-byte runes positioned so a byte-index cut at the cap would
	// land mid-rune.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Accented</title></head><body>%s</body></html>`,
			strings.Repeat("é", 200))
	}))
	defer srv.Close()

	f := newTestFetcher(WithMaxBodyChars(101))
	sources := f.FetchAll(context.Background(), []string{srv.URL})
	require.Len(t, sources, 1)
	assert.True(t, utf8.ValidString(sources[0].BodyText), "truncation never splits a rune")
	assert.True(t, strings.HasSuffix(sources[0].BodyText, "... [Content truncated]"))
}

func TestFetchAllTierSort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>ok</title></head><body>content</body></html>`)
	}))
	defer srv.Close()

	host := mustHostname(t, srv.URL)

	// Custom lists keyed on query strings cannot work (tiers look at the
	// hostname), so drive classification through custom allowlists.
	f := NewFetcher(NewClassifier([]string{"no-such-tier1-host"}, []string{host}))
	sources := f.FetchAll(context.Background(), []string{
		srv.URL + "/a",
		"http://127.0.0.1:1/unreachable",
		srv.URL + "/b",
	})

	require.Len(t, sources, 3)
	assert.True(t, sources[0].FetchSucceeded)
	assert.True(t, sources[1].FetchSucceeded)
	assert.Equal(t, 2, sources[0].Tier)
	assert.False(t, sources[2].FetchSucceeded, "failed fetch sorts last regardless of tier")
}

func TestFetchAllFollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Destination</title></head><body>landed</body></html>`)
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer redirecting.Close()

	f := newTestFetcher()
	sources := f.FetchAll(context.Background(), []string{redirecting.URL})
	require.Len(t, sources, 1)
	assert.True(t, sources[0].FetchSucceeded)
	assert.Equal(t, "Destination", sources[0].Title)
}

func mustHostname(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Hostname()
}
