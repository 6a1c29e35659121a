package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
)

// TextExtractor turns raw document bytes into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)
}

type textExtractor struct{}

// NewTextExtractor handles pdf, docx and txt documents.
func NewTextExtractor() TextExtractor {
	return &textExtractor{}
}

var _ TextExtractor = (*textExtractor)(nil)

func (e *textExtractor) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	switch Extension(filename) {
	case "pdf":
		return extractPDF(ctx, filename, data)
	case "docx":
		return extractDOCX(data)
	case "txt":
		return strings.ToValidUTF8(string(data), ""), nil
	default:
		return "", fmt.Errorf("no text extractor for %q", filename)
	}
}

func extractPDF(ctx context.Context, filename string, data []byte) (string, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	if err != nil {
		return "", fmt.Errorf("failed to create pdf parser: %w", err)
	}
	docs, err := p.Parse(ctx, bytes.NewReader(data), parser.WithURI(filename))
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}

	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		if text := strings.TrimSpace(doc.Content); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}

const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// extractDOCX reads the paragraphs of word/document.xml, skipping blank ones.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("failed to open docx body: %w", err)
			}
			break
		}
	}
	if body == nil {
		return "", errors.New("docx has no word/document.xml part")
	}
	defer body.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	dec := xml.NewDecoder(body)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read docx body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := current.String(); strings.TrimSpace(text) != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
