package task

import (
	"context"
	"sync"
	"time"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

// MemoryRegistry is the default in-process backend: a mutex-guarded
// map. Tasks survive until process restart.
type MemoryRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
}

// NewMemory creates an empty MemoryRegistry.
func NewMemory() *MemoryRegistry {
	return &MemoryRegistry{tasks: make(map[string]*model.Task)}
}

func (r *MemoryRegistry) Create(_ context.Context, caseID string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[caseID]; ok {
		return nil, ErrDuplicate
	}

	t := &model.Task{
		CaseID:    caseID,
		Status:    model.TaskStatusProcessing,
		Stage:     "preparing",
		CreatedAt: time.Now().UTC(),
	}
	r.tasks[caseID] = t
	return copyTask(t), nil
}

func (r *MemoryRegistry) Get(_ context.Context, caseID string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[caseID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func (r *MemoryRegistry) Update(_ context.Context, caseID string, progress int, stage, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[caseID]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return ErrTerminal
	}

	t.Progress = progress
	t.Stage = stage
	t.Message = message
	return nil
}

func (r *MemoryRegistry) Complete(_ context.Context, caseID string, documents []model.GeneratedDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[caseID]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return ErrTerminal
	}

	now := time.Now().UTC()
	t.Status = model.TaskStatusCompleted
	t.Progress = 100
	t.Documents = documents
	t.CompletedAt = &now
	return nil
}

func (r *MemoryRegistry) Fail(_ context.Context, caseID string, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[caseID]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return ErrTerminal
	}

	now := time.Now().UTC()
	t.Status = model.TaskStatusFailed
	t.ErrorMessage = errorMessage
	t.CompletedAt = &now
	return nil
}

func (r *MemoryRegistry) Close() error {
	return nil
}

// copyTask returns a defensive copy so callers cannot mutate registry
// state through the returned pointer.
func copyTask(t *model.Task) *model.Task {
	out := *t
	if t.Documents != nil {
		out.Documents = make([]model.GeneratedDocument, len(t.Documents))
		copy(out.Documents, t.Documents)
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		out.CompletedAt = &ts
	}
	return &out
}
