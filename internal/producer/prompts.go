package producer

import (
	"fmt"
	"strings"
)

// caseHeader renders the shared beneficiary block used by every prompt.
func caseHeader(pc Context) string {
	c := pc.Evidence.Case
	var b strings.Builder
	fmt.Fprintf(&b, "BENEFICIARY: %s\n", c.FullName)
	fmt.Fprintf(&b, "VISA TYPE: %s\n", c.CaseType)
	fmt.Fprintf(&b, "FIELD: %s\n", c.Field)
	if c.Background != "" {
		fmt.Fprintf(&b, "BACKGROUND: %s\n", c.Background)
	}
	if c.AdditionalInfo != "" {
		fmt.Fprintf(&b, "ADDITIONAL INFORMATION: %s\n", c.AdditionalInfo)
	}
	return b.String()
}

func publicationPrompt(pc Context) string {
	return fmt.Sprintf(`You are an expert at analyzing publications and media coverage for immigration visa petitions.

%s
PREVIOUS ANALYSIS SUMMARY:
%s

URL EVIDENCE:
%s

Generate a PUBLICATION ANALYSIS document that:
1. Catalogs all publications, articles, and media coverage
2. Analyzes the significance of each publication
3. Evaluates the reach and impact of coverage
4. Identifies tier 1 (major) vs tier 2 publications
5. Provides citation-ready references
6. Summarizes overall media presence

Target length: 10-15 pages.`,
		caseHeader(pc),
		leadingExcerpt(pc.Upstream[1], 3000),
		pc.Evidence.SourceIndex(),
	)
}

func urlReferencePrompt(pc Context) string {
	return fmt.Sprintf(`Create an organized URL REFERENCE DOCUMENT for this visa petition.

%s
URLS TO CATALOG:
%s

Generate a comprehensive URL reference that:
1. Organizes URLs by category (publications, awards, memberships, etc.)
2. Provides a brief description of each URL's relevance
3. Indicates which visa criterion each URL supports
4. Includes retrieval dates
5. Notes any archival recommendations

Format as a professional exhibit reference document.`,
		caseHeader(pc),
		pc.Evidence.SourceDigest(2000),
	)
}

func legalBriefPrompt(pc Context) string {
	return fmt.Sprintf(`You are an experienced immigration attorney drafting a legal brief for a %s visa petition.

%s
COMPREHENSIVE ANALYSIS EXCERPT:
%s

PUBLICATION ANALYSIS EXCERPT:
%s

KNOWLEDGE BASE:
%s

Draft a PROFESSIONAL LEGAL BRIEF that:
1. Introduces the beneficiary and petition
2. States the legal standard for %s
3. Argues how beneficiary meets each criterion with evidence citations
4. References relevant case law and AAO decisions
5. Addresses potential weaknesses preemptively
6. Concludes with a strong summary

Use proper legal brief formatting and citations.
Target length: 20-30 pages.`,
		pc.Evidence.Case.CaseType,
		caseHeader(pc),
		leadingExcerpt(pc.Upstream[1], 4000),
		leadingExcerpt(pc.Upstream[2], 2000),
		leadingExcerpt(pc.Evidence.KnowledgeCorpus, 3000),
		pc.Evidence.Case.CaseType,
	)
}

func gapAnalysisPrompt(pc Context) string {
	return fmt.Sprintf(`You are an immigration case analyst identifying evidence gaps and scoring criteria strength.

%s
COMPREHENSIVE ANALYSIS EXCERPT:
%s

NUMBER OF URLS PROVIDED: %d
NUMBER OF FILES PROVIDED: %d

Generate an EVIDENCE GAP ANALYSIS that:
1. Lists each criterion for %s
2. Scores current evidence strength (1-10) for each criterion
3. Identifies specific gaps in documentation
4. Recommends additional evidence to obtain
5. Prioritizes gaps by importance
6. Provides actionable next steps
7. Estimates overall case strength

Be specific and practical in recommendations.`,
		caseHeader(pc),
		leadingExcerpt(pc.Upstream[1], 5000),
		len(pc.Evidence.Sources),
		len(pc.Evidence.Files),
		pc.Evidence.Case.CaseType,
	)
}

func coverLetterPrompt(pc Context) string {
	c := pc.Evidence.Case
	petitioner := c.PetitionerName
	if petitioner == "" {
		petitioner = "Self-petitioned"
	}
	org := c.PetitionerOrg
	if org == "" {
		org = "N/A"
	}
	return fmt.Sprintf(`Draft a professional USCIS COVER LETTER for this %s petition.

%sPETITIONER: %s
ORGANIZATION: %s

CASE SUMMARY:
%s

Generate a COVER LETTER that:
1. Is addressed to USCIS
2. Introduces the petition and beneficiary
3. Summarizes qualifications in 2-3 paragraphs
4. Lists enclosed exhibits/evidence
5. Requests approval of the petition
6. Includes professional closing

Format as a formal business letter ready for submission.`,
		c.CaseType,
		caseHeader(pc),
		petitioner,
		org,
		leadingExcerpt(pc.Upstream[1], 3000),
	)
}

func checklistPrompt(pc Context) string {
	return fmt.Sprintf(`Create a VISA PETITION FILING CHECKLIST for this %s case.

%s
COMPREHENSIVE ANALYSIS EXCERPT:
%s

Generate a comprehensive CHECKLIST that includes:
1. Required forms and fees
2. Identity documents needed
3. Evidence checklist by criterion
4. Status of each item (gathered/needed/in progress)
5. Filing timeline recommendations
6. Quick reference scorecard
7. Contact information sections to fill

Format as a practical, actionable checklist document.`,
		pc.Evidence.Case.CaseType,
		caseHeader(pc),
		leadingExcerpt(pc.Upstream[1], 4000),
	)
}

func exhibitGuidePrompt(pc Context) string {
	var exhibits strings.Builder
	for i, s := range pc.Evidence.Sources {
		fmt.Fprintf(&exhibits, "Exhibit %d: %s\n", i+1, s.Title)
	}
	return fmt.Sprintf(`Create an EXHIBIT ASSEMBLY GUIDE for this %s petition.

%s
LEGAL BRIEF EXCERPT:
%s

EVIDENCE URLS:
%s
Generate an EXHIBIT ASSEMBLY GUIDE that:
1. Lists all exhibits in recommended order
2. Provides exhibit labels and tab numbers
3. Explains the purpose of each exhibit
4. Gives assembly instructions
5. Notes any exhibits that need to be printed/obtained
6. Includes a table of contents for the exhibit binder

Format as step-by-step assembly instructions.`,
		pc.Evidence.Case.CaseType,
		caseHeader(pc),
		leadingExcerpt(pc.Upstream[4], 3000),
		exhibits.String(),
	)
}
