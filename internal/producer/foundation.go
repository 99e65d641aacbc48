package producer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/textgen"
)

// continuityChars is how much trailing text of the prior parts each
// foundation part sees for continuity.
const continuityChars = 2000

// foundationParts are the five sequential sections of the Comprehensive
// Analysis. Each part's prompt carries a trailing excerpt of everything
// written so far, so later parts stay consistent with earlier claims.
var foundationParts = []struct {
	title string
	focus string
}{
	{
		title: "Executive Summary and Beneficiary Profile",
		focus: `1. Executive Summary of the case
2. Beneficiary Profile and Qualifications
3. Overview of career trajectory and standing in the field`,
	},
	{
		title: "Regulatory Framework",
		focus: `1. The legal standard and regulatory criteria applicable to this visa type
2. How USCIS adjudicates petitions of this type
3. Which criteria this case will rely on and why`,
	},
	{
		title: "Criterion-by-Criterion Analysis",
		focus: `1. Analysis of each applicable criterion in turn
2. Evidence assessment for each criterion, citing the actual evidence provided
3. An adequacy judgment per criterion (meets / partially meets / does not meet)`,
	},
	{
		title: "Strengths and Evidence Gaps",
		focus: `1. Strengths of the case
2. Areas requiring additional evidence
3. Anticipated USCIS concerns and how to preempt them`,
	},
	{
		title: "Strategic Recommendations and Conclusion",
		focus: `1. Strategic recommendations for the filing
2. Approval probability assessment
3. Conclusion`,
	},
}

// newFoundation builds Producer 1, the Comprehensive Analysis: a
// strictly sequential 5-part sub-pipeline whose parts are concatenated
// in order.
func newFoundation() Producer {
	return Producer{
		Seq:       1,
		Name:      "Comprehensive Analysis",
		MaxTokens: 8000,
		Run: func(ctx context.Context, client textgen.Client, pc Context) (string, error) {
			var assembled strings.Builder
			for i := range foundationParts {
				prompt := foundationPartPrompt(pc, i, assembled.String())
				text, err := client.Generate(ctx, textgen.Request{
					Prompt:      prompt,
					MaxTokens:   8000,
					Temperature: pc.Temperature,
				})
				if err != nil {
					return "", eris.Wrapf(err, "producer 1 (Comprehensive Analysis): part %d of %d", i+1, len(foundationParts))
				}
				if i > 0 {
					assembled.WriteString("\n\n")
				}
				assembled.WriteString(strings.TrimSpace(text))
				zap.L().Debug("foundation part complete",
					zap.Int("part", i+1),
					zap.Int("chars", assembled.Len()),
				)
				if pc.OnPart != nil {
					pc.OnPart(i+1, len(foundationParts))
				}
			}
			return assembled.String(), nil
		},
	}
}

func foundationPartPrompt(pc Context, index int, priorText string) string {
	part := foundationParts[index]

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert immigration law analyst specializing in %s visa petitions.\n\n", pc.Evidence.Case.CaseType)
	b.WriteString(caseHeader(pc))
	b.WriteString("\nUPLOADED DOCUMENT EVIDENCE:\n")
	b.WriteString(pc.Evidence.FileDigest())
	b.WriteString("\n\nURL EVIDENCE:\n")
	b.WriteString(pc.Evidence.SourceDigest(2000))
	b.WriteString("\n\nKNOWLEDGE BASE:\n")
	b.WriteString(leadingExcerpt(pc.Evidence.KnowledgeCorpus, 5000))

	if priorText != "" {
		b.WriteString("\n\nDOCUMENT SO FAR (trailing excerpt, continue seamlessly from it):\n")
		b.WriteString(trailingExcerpt(priorText, continuityChars))
	}

	fmt.Fprintf(&b, "\n\nYou are writing part %d of %d of a COMPREHENSIVE ANALYSIS document for this %s visa petition.\n",
		index+1, len(foundationParts), pc.Evidence.Case.CaseType)
	fmt.Fprintf(&b, "This part is titled %q and must cover:\n%s\n\n", part.title, part.focus)
	b.WriteString("Write in professional legal style. Be thorough and specific. Reference the actual evidence provided.\n")
	b.WriteString("Do not repeat material already covered in the excerpt above; continue the document.")

	return b.String()
}
