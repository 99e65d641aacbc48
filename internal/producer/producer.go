// Package producer defines the fixed, ordered set of 8 petition
// document producers. Each is a pure function of the evidence context
// plus the upstream documents it declares in Deps.
package producer

import (
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/textgen"
)

// Context is the read-only input to a producer run.
type Context struct {
	Evidence    *model.EvidenceContext
	Upstream    map[int]string // sequence number -> finished content
	Temperature float64

	// OnPart, when set, is called by multi-part producers after each
	// completed part.
	OnPart func(done, total int)
}

// Producer is one generation unit. Deps lists the upstream sequence
// numbers whose content must be present in Context.Upstream before Run
// is called.
type Producer struct {
	Seq       int
	Name      string
	Deps      []int
	MaxTokens int
	Run       func(ctx context.Context, client textgen.Client, pc Context) (string, error)
}

// Registry returns all 8 producers in sequence order.
func Registry() []Producer {
	return []Producer{
		newFoundation(),
		newSingleCall(2, "Publication Analysis", []int{1}, 12000, publicationPrompt),
		newSingleCall(3, "URL Reference", nil, 8000, urlReferencePrompt),
		newSingleCall(4, "Legal Brief", []int{1, 2}, 16384, legalBriefPrompt),
		newSingleCall(5, "Evidence Gap Analysis", []int{1}, 10000, gapAnalysisPrompt),
		newSingleCall(6, "Cover Letter", []int{1}, 4000, coverLetterPrompt),
		newSingleCall(7, "Filing Checklist", []int{1}, 6000, checklistPrompt),
		newSingleCall(8, "Exhibit Assembly Guide", []int{4}, 6000, exhibitGuidePrompt),
	}
}

// newSingleCall builds a producer that issues exactly one generation
// call from a prompt builder.
func newSingleCall(seq int, name string, deps []int, maxTokens int, prompt func(pc Context) string) Producer {
	return Producer{
		Seq:       seq,
		Name:      name,
		Deps:      deps,
		MaxTokens: maxTokens,
		Run: func(ctx context.Context, client textgen.Client, pc Context) (string, error) {
			for _, dep := range deps {
				if pc.Upstream[dep] == "" {
					return "", eris.Errorf("producer %d (%s): missing upstream document %d", seq, name, dep)
				}
			}
			text, err := client.Generate(ctx, textgen.Request{
				Prompt:      prompt(pc),
				MaxTokens:   maxTokens,
				Temperature: pc.Temperature,
			})
			if err != nil {
				return "", eris.Wrapf(err, "producer %d (%s)", seq, name)
			}
			return text, nil
		},
	}
}

// leadingExcerpt returns roughly the first n bytes of s, cut on a rune
// boundary and marked.
func leadingExcerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// trailingExcerpt returns roughly the last n bytes of s, cut on a rune
// boundary.
func trailingExcerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
