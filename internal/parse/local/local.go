package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/parse"
	"github.com/docupipe/docupipe/pkg/logger_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

// Extractor is the offline parsing fallback: no upstream credit burned, but
// also no layout-aware markdown. PDFs go through dslipak/pdf page by page,
// docx/txt/rtf/odt through lu4p/cat.
type Extractor struct {
	logger *logger_i.Logger
}

func NewExtractor() parse.Parser {
	return &Extractor{logger: logger_i.NewLogger("Local Extractor")}
}

func (e *Extractor) Parse(ctx context.Context, filename string, raw []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	tmp, err := os.CreateTemp("", "extract-*"+ext)
	if err != nil {
		return "", fault.Storage(err, "staging %s for extraction", filename)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", fault.Storage(err, "staging %s for extraction", filename)
	}
	if err := tmp.Close(); err != nil {
		return "", fault.Storage(err, "staging %s for extraction", filename)
	}

	switch ext {
	case ".pdf":
		return e.extractPDF(tmpName)
	case ".docx", ".txt", ".rtf", ".odt", ".md":
		text, err := cat.File(tmpName)
		if err != nil {
			return "", fault.Upstream(err, false, "extracting %s", filename)
		}
		return text, nil
	default:
		return "", fault.Validation("unsupported file type %q", ext)
	}
}

func (e *Extractor) extractPDF(path string) (string, error) {
	f, err := pdf.Open(path)
	if err != nil {
		e.logger.Error("failed opening of pdf file", "error", err)
		return "", fault.Upstream(err, false, "opening pdf")
	}

	var sb strings.Builder
	numPages := f.NumPage()
	e.logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(page)
		if err != nil {
			// keep going, one broken page shouldn't sink the document
			e.logger.Error("Error parsing page content", "page", i, "error", err)
			continue
		}
		fmt.Fprintf(&sb, "## Page %d\n\n%s\n\n", i, content)
	}
	if sb.Len() == 0 {
		return "", fault.Upstream(nil, false, "pdf produced no extractable text")
	}
	return sb.String(), nil
}

// protectExtract guards GetPlainText, which can hang on malformed pages.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(time.Second * 10):
		return "", errors.New("timeout")
	}
}
