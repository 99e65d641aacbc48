package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/extract"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

var (
	genInputPath  string
	genName       string
	genCaseType   string
	genField      string
	genBackground string
	genURLs       []string
	genFiles      []string
	genOutDir     string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the petition document set for one case",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		input, err := buildInput(ctx, env.extractor)
		if err != nil {
			return err
		}

		caseID, err := env.scheduler.Run(ctx, input)
		if err != nil {
			return eris.Wrap(err, "generation run")
		}

		result, err := env.registry.Get(ctx, caseID)
		if err != nil {
			return eris.Wrap(err, "read result")
		}

		if genOutDir != "" {
			if err := writeDocuments(genOutDir, result.Documents); err != nil {
				return err
			}
			zap.L().Info("documents written",
				zap.String("dir", genOutDir),
				zap.Int("count", len(result.Documents)))
		}

		zap.L().Info("generation complete",
			zap.String("case_id", caseID),
			zap.Int("documents", len(result.Documents)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// buildInput assembles the run input from --input or individual flags,
// extracting any local files named with --file.
func buildInput(ctx context.Context, extractor *extract.Extractor) (model.GenerationInput, error) {
	var input model.GenerationInput

	if genInputPath != "" {
		data, err := os.ReadFile(genInputPath)
		if err != nil {
			return input, eris.Wrap(err, "read input file")
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return input, eris.Wrap(err, "parse input file")
		}
	} else {
		if genName == "" || genCaseType == "" {
			return input, eris.New("either --input or both --name and --case-type are required")
		}
		input.Case = model.CaseInfo{
			FullName:   genName,
			CaseType:   genCaseType,
			Field:      genField,
			Background: genBackground,
		}
		input.URLs = genURLs
	}

	if len(genFiles) == 0 {
		return input, nil
	}

	contents := make(map[string][]byte, len(genFiles))
	for _, path := range genFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return input, eris.Wrapf(err, "read evidence file %s", path)
		}
		contents[filepath.Base(path)] = data
	}

	extracted, failed := extractor.ExtractAll(ctx, contents)
	if len(failed) > 0 {
		zap.L().Warn("some files could not be extracted", zap.Strings("files", failed))
	}
	for _, f := range extracted {
		input.Files = append(input.Files, model.UploadedFile{
			Filename:      f.Filename,
			Kind:          string(f.Kind),
			ExtractedText: f.ExtractedText,
			WordCount:     f.WordCount,
			PageCount:     f.PageCount,
		})
	}
	return input, nil
}

// writeDocuments saves each document as a markdown file, ordered by
// sequence number.
func writeDocuments(dir string, documents []model.GeneratedDocument) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "create output dir")
	}
	for _, d := range documents {
		name := fmt.Sprintf("%02d-%s.md", d.Seq, slugify(d.Name))
		if err := os.WriteFile(filepath.Join(dir, name), []byte(d.Content), 0o644); err != nil {
			return eris.Wrapf(err, "write %s", name)
		}
	}
	return nil
}

func slugify(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}

func init() {
	generateCmd.Flags().StringVar(&genInputPath, "input", "", "JSON file with case, urls, and pre-extracted files")
	generateCmd.Flags().StringVar(&genName, "name", "", "beneficiary full name")
	generateCmd.Flags().StringVar(&genCaseType, "case-type", "", "visa classification (e.g. O-1A)")
	generateCmd.Flags().StringVar(&genField, "field", "", "beneficiary's field of endeavor")
	generateCmd.Flags().StringVar(&genBackground, "background", "", "beneficiary background summary")
	generateCmd.Flags().StringSliceVar(&genURLs, "url", nil, "evidence URL (repeatable)")
	generateCmd.Flags().StringSliceVar(&genFiles, "file", nil, "local evidence file to extract (repeatable)")
	generateCmd.Flags().StringVar(&genOutDir, "out", "", "directory to write the generated documents into")
	rootCmd.AddCommand(generateCmd)
}
