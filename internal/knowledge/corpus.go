// Package knowledge loads the reference corpus consulted by the
// document producers, keyed by case type.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Corpus loads markdown reference files from a directory. A yaml
// manifest maps each case type to an ordered list of filenames; order
// is priority order and survives into the rendered context.
type Corpus struct {
	dir string
}

// NewCorpus creates a Corpus rooted at dir.
func NewCorpus(dir string) *Corpus {
	return &Corpus{dir: dir}
}

type manifest struct {
	CaseTypes map[string][]string `yaml:"case_types"`
}

// Load renders the corpus context for the given case type. It never
// fails: a missing manifest, unknown case type, or missing files yield
// an empty string (with the gaps logged), not an error.
func (c *Corpus) Load(caseType string) string {
	m, err := c.readManifest()
	if err != nil {
		zap.L().Warn("knowledge manifest unavailable",
			zap.String("dir", c.dir),
			zap.Error(err),
		)
		return ""
	}

	names := m.CaseTypes[caseType]
	if names == nil {
		// Case-insensitive second chance.
		for k, v := range m.CaseTypes {
			if strings.EqualFold(k, caseType) {
				names = v
				break
			}
		}
	}
	if len(names) == 0 {
		zap.L().Debug("no knowledge files for case type",
			zap.String("case_type", caseType),
		)
		return ""
	}

	type loaded struct {
		name    string
		content string
	}
	var files []loaded
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(c.dir, name))
		if err != nil {
			zap.L().Warn("knowledge file not found, skipping",
				zap.String("file", name),
			)
			continue
		}
		files = append(files, loaded{name: name, content: string(content)})
	}
	if len(files) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# PETITION KNOWLEDGE BASE - %s\n\n", caseType)
	b.WriteString("Files loaded (in priority order):\n")
	for i, f := range files {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.name)
	}
	b.WriteString("\n---\n\n")
	for i, f := range files {
		fmt.Fprintf(&b, "## FILE %d: %s\n\n%s\n\n---\n\n", i+1, f.name, f.content)
	}
	return b.String()
}

func (c *Corpus) readManifest() (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, "manifest.yaml"))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
