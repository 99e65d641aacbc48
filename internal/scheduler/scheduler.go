// Package scheduler drives one generation run per case through its
// phases: preparation, foundation document, parallel batch, dependent
// batch, finalization. A producer failure anywhere aborts the whole run.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/extract"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/notify"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/producer"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/task"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/textgen"
)

// Fetcher resolves evidence URLs into sources. Per-URL failures are
// recorded on the source, never returned as an error.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []string) []model.EvidenceSource
}

// CorpusLoader loads the reference knowledge corpus for a case type.
// Returns empty text when nothing is found; never fails.
type CorpusLoader interface {
	Load(caseType string) string
}

// parallelSeqs are the producers of the fan-out phase. Producers 4 and 8
// run afterwards because each needs a prior producer's output.
var parallelSeqs = []int{2, 3, 5, 6, 7}

// Scheduler owns run execution. One Scheduler serves many concurrent
// runs; per-run state lives on the stack of each run.
type Scheduler struct {
	client      textgen.Client
	fetcher     Fetcher
	corpus      CorpusLoader
	registry    task.Registry
	notifier    notify.Notifier
	temperature float64
	producers   []producer.Producer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNotifier sets the completion notifier. Notifier failures are
// logged and never fail a run.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithTemperature sets the sampling temperature passed to every
// generation call.
func WithTemperature(t float64) Option {
	return func(s *Scheduler) { s.temperature = t }
}

// New creates a Scheduler over the full producer set.
func New(client textgen.Client, fetcher Fetcher, corpus CorpusLoader, registry task.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		client:      client,
		fetcher:     fetcher,
		corpus:      corpus,
		registry:    registry,
		temperature: 0.3,
		producers:   producer.Registry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the case and launches the run in the background,
// returning the case id immediately. The run is detached from the
// caller's context: abandoning status polling does not stop it.
func (s *Scheduler) Start(ctx context.Context, input model.GenerationInput) (string, error) {
	caseID := input.Case.CaseID
	if caseID == "" {
		caseID = uuid.NewString()
		input.Case.CaseID = caseID
	}

	if _, err := s.registry.Create(ctx, caseID); err != nil {
		return "", err
	}

	go func() {
		_ = s.run(context.WithoutCancel(ctx), caseID, input)
	}()
	return caseID, nil
}

// Run registers the case and executes the run synchronously, returning
// the error that failed it, if any.
func (s *Scheduler) Run(ctx context.Context, input model.GenerationInput) (string, error) {
	caseID := input.Case.CaseID
	if caseID == "" {
		caseID = uuid.NewString()
		input.Case.CaseID = caseID
	}

	if _, err := s.registry.Create(ctx, caseID); err != nil {
		return "", err
	}
	return caseID, s.run(ctx, caseID, input)
}

// run executes all phases and records the terminal state.
func (s *Scheduler) run(ctx context.Context, caseID string, input model.GenerationInput) error {
	log := zap.L().With(zap.String("case_id", caseID))
	log.Info("run started",
		zap.String("case_type", input.Case.CaseType),
		zap.Int("urls", len(input.URLs)),
		zap.Int("files", len(input.Files)))

	documents, err := s.execute(ctx, caseID, input)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		if failErr := s.registry.Fail(ctx, caseID, err.Error()); failErr != nil {
			log.Error("recording failure failed", zap.Error(failErr))
		}
		return err
	}

	if err := s.registry.Complete(ctx, caseID, documents); err != nil {
		log.Error("recording completion failed", zap.Error(err))
		return err
	}
	log.Info("run completed", zap.Int("documents", len(documents)))

	if s.notifier != nil {
		if err := s.notifier.DocumentsReady(ctx, caseID, input.Case, documents); err != nil {
			log.Warn("completion notification failed", zap.Error(err))
		}
	}
	return nil
}

// execute walks the phase sequence and returns the final document list.
func (s *Scheduler) execute(ctx context.Context, caseID string, input model.GenerationInput) ([]model.GeneratedDocument, error) {
	// Preparing: corpus load and URL fetching run concurrently; both
	// join before generation starts.
	s.progress(ctx, caseID, 5, "preparing", "loading knowledge base and fetching evidence")

	var (
		corpusText string
		sources    []model.EvidenceSource
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		corpusText = s.corpus.Load(input.Case.CaseType)
	}()
	go func() {
		defer wg.Done()
		sources = s.fetcher.FetchAll(ctx, input.URLs)
	}()
	wg.Wait()

	files := wrapUploads(input.Files)
	evidenceCtx := &model.EvidenceContext{
		Case:            input.Case,
		Sources:         sources,
		Files:           files,
		KnowledgeCorpus: corpusText,
	}
	s.progress(ctx, caseID, 10, "preparing",
		fmt.Sprintf("prepared %d evidence sources and %d files", len(sources), len(files)))

	byseq := make(map[int]producer.Producer, len(s.producers))
	for _, p := range s.producers {
		byseq[p.Seq] = p
	}
	contents := make(map[int]string, len(s.producers))

	// FoundationGenerating: producer 1's parts run strictly
	// sequentially; each part bumps progress toward 35.
	s.progress(ctx, caseID, 15, "foundation_generation", "generating document 1 of 8")
	foundationCtx := producer.Context{
		Evidence:    evidenceCtx,
		Upstream:    contents,
		Temperature: s.temperature,
		OnPart: func(done, total int) {
			s.progress(ctx, caseID, 15+(20*done)/total, "foundation_generation",
				fmt.Sprintf("foundation part %d of %d complete", done, total))
		},
	}
	text, err := byseq[1].Run(ctx, s.client, foundationCtx)
	if err != nil {
		return nil, err
	}
	contents[1] = text

	// ParallelGenerating: fan out producers 2,3,5,6,7; all must succeed
	// before advancing. contents is read-only during the fan-out.
	s.progress(ctx, caseID, 40, "parallel_generation", "generating documents 2, 3, 5, 6, 7")

	var (
		mu      sync.Mutex
		settled int
		results = make(map[int]string, len(parallelSeqs))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, seq := range parallelSeqs {
		p := byseq[seq]
		g.Go(func() error {
			out, err := p.Run(gctx, s.client, producer.Context{
				Evidence:    evidenceCtx,
				Upstream:    contents,
				Temperature: s.temperature,
			})
			if err != nil {
				return err
			}
			// Publish under mu so progress stays monotonic when two
			// producers settle together.
			mu.Lock()
			results[p.Seq] = out
			settled++
			s.progress(ctx, caseID, 40+settled*7, "parallel_generation",
				fmt.Sprintf("document %d of 8 complete", p.Seq))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for seq, out := range results {
		contents[seq] = out
	}

	// DependentGenerating: 4 needs 1 and 2; 8 needs 4.
	s.progress(ctx, caseID, 80, "dependent_generation", "generating document 4 of 8")
	text, err = byseq[4].Run(ctx, s.client, producer.Context{
		Evidence:    evidenceCtx,
		Upstream:    contents,
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, err
	}
	contents[4] = text

	s.progress(ctx, caseID, 90, "dependent_generation", "generating document 8 of 8")
	text, err = byseq[8].Run(ctx, s.client, producer.Context{
		Evidence:    evidenceCtx,
		Upstream:    contents,
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, err
	}
	contents[8] = text

	// Finalizing: statistics and assembly in producer order 1..8.
	s.progress(ctx, caseID, 95, "finalizing", "computing document statistics")
	documents := make([]model.GeneratedDocument, 0, len(s.producers))
	for _, p := range s.producers {
		content := contents[p.Seq]
		words := model.CountWords(content)
		documents = append(documents, model.GeneratedDocument{
			Seq:       p.Seq,
			Name:      p.Name,
			Content:   content,
			WordCount: words,
			PageCount: model.EstimatePages(words),
		})
	}
	return documents, nil
}

// progress records a registry update; update failures are logged only,
// never allowed to fail the run.
func (s *Scheduler) progress(ctx context.Context, caseID string, pct int, stage, message string) {
	if err := s.registry.Update(ctx, caseID, pct, stage, message); err != nil {
		zap.L().Warn("progress update failed",
			zap.String("case_id", caseID),
			zap.Int("progress", pct),
			zap.Error(err))
	}
}

// wrapUploads converts caller-supplied pre-extracted file records into
// ExtractedFile entries. Text is taken as-is; no re-extraction happens.
func wrapUploads(uploads []model.UploadedFile) []model.ExtractedFile {
	if len(uploads) == 0 {
		return nil
	}
	files := make([]model.ExtractedFile, 0, len(uploads))
	for _, u := range uploads {
		kind := model.FileKind(u.Kind)
		if kind == "" {
			kind = extract.Kind(u.Filename)
		}
		words := u.WordCount
		if words == 0 {
			words = model.CountWords(u.ExtractedText)
		}
		pages := u.PageCount
		if pages == 0 {
			pages = model.EstimatePages(words)
		}
		files = append(files, model.ExtractedFile{
			Filename:      u.Filename,
			Kind:          kind,
			ExtractedText: u.ExtractedText,
			WordCount:     words,
			PageCount:     pages,
			ByteSize:      len(u.ExtractedText),
		})
	}
	return files
}
