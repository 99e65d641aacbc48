package notify

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

// pageCreator is the slice of the Notion API the notifier needs.
type pageCreator interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

// Notion records a completed case as a page in a Notion database. Pages
// carry the case name, visa classification, and per-document word
// counts; document content stays in the registry.
type Notion struct {
	pages      pageCreator
	databaseID string
	limiter    *rate.Limiter
}

// NotionOption configures the Notion notifier.
type NotionOption func(*Notion)

// WithNotionPageCreator overrides the page API (used in tests).
func WithNotionPageCreator(pc pageCreator) NotionOption {
	return func(n *Notion) { n.pages = pc }
}

// WithNotionRateLimit overrides the default 3 req/s throttle.
func WithNotionRateLimit(rps float64) NotionOption {
	return func(n *Notion) {
		if rps > 0 {
			n.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			n.limiter = nil
		}
	}
}

// NewNotion creates a Notion notifier writing to the given database.
// API calls are throttled to 3 req/s, Notion's published limit.
func NewNotion(token, databaseID string, opts ...NotionOption) *Notion {
	n := &Notion{
		pages:      notionapi.NewClient(notionapi.Token(token)).Page,
		databaseID: databaseID,
		limiter:    rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notion) Name() string { return "notion" }

func (n *Notion) DocumentsReady(ctx context.Context, caseID string, info model.CaseInfo, documents []model.GeneratedDocument) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "notify: notion rate limit")
		}
	}

	totalWords := 0
	for _, d := range documents {
		totalWords += d.WordCount
	}

	title := fmt.Sprintf("%s - %s petition documents", info.FullName, info.CaseType)
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(n.databaseID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{{Text: &notionapi.Text{Content: title}}},
			},
			"Case ID": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: caseID}}},
			},
			"Status": notionapi.SelectProperty{
				Select: notionapi.Option{Name: "Completed"},
			},
			"Documents": notionapi.NumberProperty{
				Number: float64(len(documents)),
			},
			"Total Words": notionapi.NumberProperty{
				Number: float64(totalWords),
			},
		},
		Children: summaryBlocks(documents),
	}

	if _, err := n.pages.Create(ctx, req); err != nil {
		return eris.Wrap(err, "notify: notion create page")
	}
	return nil
}

// summaryBlocks renders one bulleted line per document.
func summaryBlocks(documents []model.GeneratedDocument) []notionapi.Block {
	blocks := make([]notionapi.Block, 0, len(documents))
	for _, d := range documents {
		line := fmt.Sprintf("%d. %s - %d words (~%d pages)", d.Seq, d.Name, d.WordCount, d.PageCount)
		blocks = append(blocks, &notionapi.BulletedListItemBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeBulletedListItem,
			},
			BulletedListItem: notionapi.ListItem{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: line}}},
			},
		})
	}
	return blocks
}
