// Package notify delivers completion notifications once a case has its
// final document set. Notification failures are reported to the caller
// but never affect the generation outcome.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

// Notifier announces that a case's documents are ready.
type Notifier interface {
	Name() string
	DocumentsReady(ctx context.Context, caseID string, info model.CaseInfo, documents []model.GeneratedDocument) error
}

// Multi fans a notification out to every configured notifier. Failures
// are logged per notifier and swallowed; one broken channel must not
// block the others or the caller.
type Multi struct {
	notifiers []Notifier
}

// NewMulti builds a fan-out notifier. Nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) DocumentsReady(ctx context.Context, caseID string, info model.CaseInfo, documents []model.GeneratedDocument) error {
	for _, n := range m.notifiers {
		if err := n.DocumentsReady(ctx, caseID, info, documents); err != nil {
			zap.L().Warn("notification failed",
				zap.String("notifier", n.Name()),
				zap.String("case_id", caseID),
				zap.Error(err))
		}
	}
	return nil
}
