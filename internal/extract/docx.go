package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// extractDocx walks the OOXML body: paragraphs in document order, table
// rows with cells joined by " | ". Non-empty units are joined with
// blank lines.
func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrap(err, "extract: open docx archive")
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", eris.Wrap(err, "extract: open document.xml")
			}
			break
		}
	}
	if docXML == nil {
		return "", eris.New("extract: docx missing word/document.xml")
	}
	defer docXML.Close()

	return walkDocumentXML(docXML)
}

func walkDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var units []string
	var para strings.Builder
	var row []string
	var tableDepth int
	var inText bool

	flushPara := func() {
		text := strings.TrimSpace(para.String())
		para.Reset()
		if text == "" {
			return
		}
		if tableDepth > 0 {
			row = append(row, text)
		} else {
			units = append(units, text)
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "extract: parse document.xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br":
				para.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "t":
				inText = false
			case "p":
				flushPara()
			case "tc":
				flushPara()
			case "tr":
				if line := strings.TrimSpace(strings.Join(row, " | ")); line != "" {
					units = append(units, line)
				}
				row = nil
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}

	return strings.Join(units, "\n\n"), nil
}
