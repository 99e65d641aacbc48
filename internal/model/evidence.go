// Package model defines the shared value types for the generation pipeline.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// EvidenceSource is one fetched evidence URL. Immutable once created;
// a failed fetch is recorded with FetchSucceeded=false rather than dropped.
type EvidenceSource struct {
	URL            string    `json:"url"`
	Domain         string    `json:"domain"`
	Title          string    `json:"title"`
	BodyText       string    `json:"body_text"`
	Tier           int       `json:"tier"`
	FetchSucceeded bool      `json:"fetch_succeeded"`
	Error          string    `json:"error,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// TierLabel returns the human-readable credibility label for the source tier.
func (s EvidenceSource) TierLabel() string {
	switch s.Tier {
	case 1:
		return "Major Media"
	case 2:
		return "Trade/Official"
	default:
		return "Supplementary"
	}
}

// FileKind identifies which extraction ladder produced an ExtractedFile.
type FileKind string

const (
	FileKindPDF         FileKind = "pdf"
	FileKindImage       FileKind = "image"
	FileKindDocx        FileKind = "docx"
	FileKindSpreadsheet FileKind = "xlsx"
	FileKindText        FileKind = "text"
	FileKindUnknown     FileKind = "unknown"
)

// ExtractedFile is the text extracted from one uploaded evidence file.
// Immutable; consumed read-only by the document producers.
type ExtractedFile struct {
	Filename      string   `json:"filename"`
	Kind          FileKind `json:"kind"`
	ExtractedText string   `json:"extracted_text"`
	WordCount     int      `json:"word_count"`
	PageCount     int      `json:"page_count"`
	ByteSize      int      `json:"byte_size"`
}

// CaseInfo holds the beneficiary and petition facts supplied by the caller.
type CaseInfo struct {
	CaseID         string `json:"case_id"`
	FullName       string `json:"full_name"`
	CaseType       string `json:"case_type"` // visa classification, e.g. "O-1A"
	Field          string `json:"field"`
	Background     string `json:"background"`
	AdditionalInfo string `json:"additional_info,omitempty"`
	PetitionerName string `json:"petitioner_name,omitempty"`
	PetitionerOrg  string `json:"petitioner_org,omitempty"`
}

// EvidenceContext aggregates everything a document producer may read.
// Built once per run during preparation and shared read-only afterwards;
// no producer mutates it.
type EvidenceContext struct {
	Case            CaseInfo
	Sources         []EvidenceSource
	Files           []ExtractedFile
	KnowledgeCorpus string
}

// SourceDigest renders the fetched sources as a prompt context block,
// capping each source's body at maxChars characters.
func (ec *EvidenceContext) SourceDigest(maxChars int) string {
	if len(ec.Sources) == 0 {
		return "No evidence URLs provided"
	}
	var b strings.Builder
	for i, s := range ec.Sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "URL %d: %s\n", i+1, s.URL)
		fmt.Fprintf(&b, "Domain: %s (Tier %d - %s)\n", s.Domain, s.Tier, s.TierLabel())
		if !s.FetchSucceeded {
			fmt.Fprintf(&b, "Status: fetch failed (%s)", s.Error)
			continue
		}
		fmt.Fprintf(&b, "Title: %s\n", s.Title)
		body := s.BodyText
		if maxChars > 0 && len(body) > maxChars {
			cut := maxChars
			for cut > 0 && !utf8.RuneStart(body[cut]) {
				cut--
			}
			body = body[:cut] + "..."
		}
		fmt.Fprintf(&b, "Content: %s", body)
	}
	return b.String()
}

// SourceIndex renders a compact one-line-per-source listing.
func (ec *EvidenceContext) SourceIndex() string {
	var b strings.Builder
	for i, s := range ec.Sources {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, s.URL, s.Title)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// FileDigest renders the extracted files as a prompt context block.
func (ec *EvidenceContext) FileDigest() string {
	if len(ec.Files) == 0 {
		return "No documents uploaded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total documents uploaded: %d\n", len(ec.Files))
	for _, f := range ec.Files {
		fmt.Fprintf(&b, "\n## %s\n", f.Filename)
		fmt.Fprintf(&b, "- Type: %s\n- Words: %d\n", f.Kind, f.WordCount)
		if f.PageCount > 0 {
			fmt.Fprintf(&b, "- Pages: %d\n", f.PageCount)
		}
		fmt.Fprintf(&b, "\n%s\n\n---\n", f.ExtractedText)
	}
	return b.String()
}

// CountWords returns the whitespace-separated token count of s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// EstimatePages estimates page count from a word count at roughly 500
// words per page. Zero words is zero pages.
func EstimatePages(words int) int {
	if words <= 0 {
		return 0
	}
	pages := (words + 499) / 500
	if pages < 1 {
		pages = 1
	}
	return pages
}
