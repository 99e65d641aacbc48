// Package task keeps one task-state record per case identifier. The
// scheduler is the only writer; status queries read.
package task

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

// Sentinel errors shared by all registry backends.
var (
	ErrNotFound  = eris.New("task: case not found")
	ErrDuplicate = eris.New("task: case already exists")
	ErrTerminal  = eris.New("task: case already terminal")
)

// Registry stores task state keyed by case id. Create inserts a new
// processing task and fails with ErrDuplicate if the id exists. Update
// mutates progress/stage/message mid-run. Complete and Fail perform the
// one-time terminal transition; any mutation of a terminal task fails
// with ErrTerminal.
type Registry interface {
	Create(ctx context.Context, caseID string) (*model.Task, error)
	Get(ctx context.Context, caseID string) (*model.Task, error)
	Update(ctx context.Context, caseID string, progress int, stage, message string) error
	Complete(ctx context.Context, caseID string, documents []model.GeneratedDocument) error
	Fail(ctx context.Context, caseID string, errorMessage string) error
	Close() error
}
