// Package evidence fetches and classifies the evidence URLs supplied
// with a case.
package evidence

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Fetcher fetches evidence URLs concurrently and classifies each by
// source-quality tier. A per-URL failure never fails the whole batch.
type Fetcher struct {
	classifier     *Classifier
	http           *http.Client
	limiter        *rate.Limiter
	maxConcurrency int
	maxBodyChars   int
	userAgent      string
}

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		f.http = hc
	}
}

// WithMaxConcurrency bounds the fetch fan-out.
func WithMaxConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxConcurrency = n
		}
	}
}

// WithTimeout bounds each individual fetch.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.http.Timeout = d
	}
}

// WithMaxBodyChars caps the extracted body text length.
func WithMaxBodyChars(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodyChars = n
		}
	}
}

// WithUserAgent sets the request User-Agent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithRateLimit bounds outbound requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(f *Fetcher) {
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewFetcher creates a Fetcher with the given tier classifier.
func NewFetcher(classifier *Classifier, opts ...Option) *Fetcher {
	f := &Fetcher{
		classifier:     classifier,
		maxConcurrency: 10,
		maxBodyChars:   10000,
		userAgent:      "Mozilla/5.0 (compatible; PetitionResearchBot/1.0)",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// FetchAll fetches every URL with bounded concurrency. Duplicates are
// removed preserving first-seen order before fetching. The result is
// sorted tier-ascending with all failed fetches after all successes.
// FetchAll never fails as a whole; per-URL errors are recorded on the
// returned sources.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []model.EvidenceSource {
	deduped := dedupe(urls)
	if len(deduped) == 0 {
		return nil
	}

	sources := make([]model.EvidenceSource, len(deduped))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrency)

	for i, u := range deduped {
		g.Go(func() error {
			sources[i] = f.fetch(gCtx, u)
			return nil
		})
	}
	_ = g.Wait()

	// Successful sources by ascending tier, then every failed fetch.
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].FetchSucceeded != sources[j].FetchSucceeded {
			return sources[i].FetchSucceeded
		}
		return sources[i].Tier < sources[j].Tier
	})

	zap.L().Info("evidence fetch complete",
		zap.Int("requested", len(urls)),
		zap.Int("unique", len(deduped)),
		zap.Int("succeeded", countSucceeded(sources)),
	)

	return sources
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) model.EvidenceSource {
	src := model.EvidenceSource{
		URL:       rawURL,
		Tier:      3,
		FetchedAt: time.Now().UTC(),
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		src.Error = "invalid url"
		return src
	}
	src.Domain = parsed.Hostname()
	src.Tier = f.classifier.Tier(src.Domain)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			src.Error = err.Error()
			return src
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		src.Error = err.Error()
		return src
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		src.Error = err.Error()
		zap.L().Debug("evidence fetch failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return src
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		src.Error = resp.Status
		return src
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		src.Error = err.Error()
		return src
	}

	src.Title = extractTitle(doc)
	src.BodyText = f.extractBody(doc)
	src.FetchSucceeded = true
	return src
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = strings.TrimSpace(og); og != "" {
			return og
		}
	}
	return "Untitled"
}

var bodySelectors = []string{"article", "main", `[role="main"]`, "#content", "body"}

func (f *Fetcher) extractBody(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, iframe, noscript").Remove()

	var text string
	for _, sel := range bodySelectors {
		el := doc.Find(sel).First()
		if el.Length() > 0 {
			text = el.Text()
			break
		}
	}

	text = strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
	if len(text) > f.maxBodyChars {
		cut := f.maxBodyChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "... [Content truncated]"
	}
	return text
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func countSucceeded(sources []model.EvidenceSource) int {
	n := 0
	for _, s := range sources {
		if s.FetchSucceeded {
			n++
		}
	}
	return n
}
