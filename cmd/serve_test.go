package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/extract"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/scheduler"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/task"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/textgen"
)

type stubClient struct{}

func (stubClient) Generate(context.Context, textgen.Request) (string, error) {
	return "stub document body", nil
}

func (stubClient) GenerateStream(ctx context.Context, req textgen.Request, onChunk func(string)) (string, error) {
	return "stub document body", nil
}

type stubFetcher struct{}

func (stubFetcher) FetchAll(context.Context, []string) []model.EvidenceSource { return nil }

type stubCorpus struct{}

func (stubCorpus) Load(string) string { return "" }

func newTestRouter(t *testing.T) (http.Handler, task.Registry) {
	t.Helper()
	registry := task.NewMemory()
	sched := scheduler.New(stubClient{}, stubFetcher{}, stubCorpus{}, registry)
	return newRouter(sched, registry, extract.NewExtractor()), registry
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestSubmitCaseAccepted(t *testing.T) {
	router, registry := newTestRouter(t)

	body := `{"case":{"full_name":"Maria Santos","case_type":"O-1A","field":"mixed martial arts"}}`
	req := httptest.NewRequest(http.MethodPost, "/cases", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	caseID := resp["case_id"]
	require.NotEmpty(t, caseID)

	require.Eventually(t, func() bool {
		got, err := registry.Get(context.Background(), caseID)
		return err == nil && got.Status == model.TaskStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubmitCaseValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	for name, body := range map[string]string{
		"not json":     `{{{`,
		"missing case": `{"urls":["https://example.com"]}`,
		"missing type": `{"case":{"full_name":"Maria Santos"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cases", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmitDuplicateCase(t *testing.T) {
	router, registry := newTestRouter(t)

	_, err := registry.Create(context.Background(), "case-dup")
	require.NoError(t, err)

	body := `{"case":{"case_id":"case-dup","full_name":"Maria Santos","case_type":"O-1A"}}`
	req := httptest.NewRequest(http.MethodPost, "/cases", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	router, registry := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := registry.Create(context.Background(), "case-s")
	require.NoError(t, err)
	require.NoError(t, registry.Update(context.Background(), "case-s", 40, "parallel_generation", "working"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/case-s", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, "parallel_generation", got.Stage)
}

func TestDocumentEndpoint(t *testing.T) {
	router, registry := newTestRouter(t)

	_, err := registry.Create(context.Background(), "case-d")
	require.NoError(t, err)

	// Not ready yet.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/case-d/documents/1", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, registry.Complete(context.Background(), "case-d", []model.GeneratedDocument{
		{Seq: 1, Name: "Comprehensive Analysis", Content: "full analysis text", WordCount: 3, PageCount: 1},
	}))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/case-d/documents/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc model.GeneratedDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Comprehensive Analysis", doc.Name)

	// Plain-text rendering.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/case-d/documents/1?format=text", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "full analysis text", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	// Unknown sequence number.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/case-d/documents/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
