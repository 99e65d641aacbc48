package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

var testInfo = model.CaseInfo{
	CaseID:   "case-n",
	FullName: "Maria Santos",
	CaseType: "O-1A",
	Field:    "mixed martial arts",
}

var testDocs = []model.GeneratedDocument{
	{Seq: 1, Name: "Comprehensive Analysis", Content: "body one", WordCount: 1200, PageCount: 3},
	{Seq: 2, Name: "Publication Analysis", Content: "body two", WordCount: 800, PageCount: 2},
}

func TestWebhookDelivers(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	require.NoError(t, wh.DocumentsReady(context.Background(), "case-n", testInfo, testDocs))

	assert.Equal(t, "case-n", got.CaseID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "Maria Santos", got.Beneficiary)
	assert.Equal(t, "O-1A", got.VisaType)
	require.Len(t, got.Documents, 2)
	assert.Equal(t, "body one", got.Documents[0].Content)
}

func TestWebhookNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	err := wh.DocumentsReady(context.Background(), "case-n", testInfo, testDocs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookUnreachable(t *testing.T) {
	wh := NewWebhook("http://127.0.0.1:1")
	assert.Error(t, wh.DocumentsReady(context.Background(), "case-n", testInfo, testDocs))
}

type fakePageCreator struct {
	req *notionapi.PageCreateRequest
	err error
}

func (f *fakePageCreator) Create(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &notionapi.Page{}, nil
}

func TestNotionCreatesPage(t *testing.T) {
	fake := &fakePageCreator{}
	n := NewNotion("secret", "db-123", WithNotionPageCreator(fake), WithNotionRateLimit(0))

	require.NoError(t, n.DocumentsReady(context.Background(), "case-n", testInfo, testDocs))

	require.NotNil(t, fake.req)
	assert.Equal(t, notionapi.DatabaseID("db-123"), fake.req.Parent.DatabaseID)

	title := fake.req.Properties["Name"].(notionapi.TitleProperty)
	assert.Equal(t, "Maria Santos - O-1A petition documents", title.Title[0].Text.Content)

	words := fake.req.Properties["Total Words"].(notionapi.NumberProperty)
	assert.Equal(t, float64(2000), words.Number)

	require.Len(t, fake.req.Children, 2)
	item := fake.req.Children[0].(*notionapi.BulletedListItemBlock)
	assert.Equal(t, "1. Comprehensive Analysis - 1200 words (~3 pages)",
		item.BulletedListItem.RichText[0].Text.Content)
}

func TestNotionCreateError(t *testing.T) {
	fake := &fakePageCreator{err: eris.New("boom")}
	n := NewNotion("secret", "db-123", WithNotionPageCreator(fake), WithNotionRateLimit(0))

	err := n.DocumentsReady(context.Background(), "case-n", testInfo, testDocs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion create page")
}

type recordingNotifier struct {
	name   string
	called bool
	err    error
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) DocumentsReady(context.Context, string, model.CaseInfo, []model.GeneratedDocument) error {
	r.called = true
	return r.err
}

func TestMultiFanOutSwallowsErrors(t *testing.T) {
	broken := &recordingNotifier{name: "broken", err: eris.New("unreachable")}
	healthy := &recordingNotifier{name: "healthy"}

	m := NewMulti(broken, nil, healthy)
	assert.NoError(t, m.DocumentsReady(context.Background(), "case-n", testInfo, testDocs))
	assert.True(t, broken.called)
	assert.True(t, healthy.called, "later notifiers still run after a failure")
}
