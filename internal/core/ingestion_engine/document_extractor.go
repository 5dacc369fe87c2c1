package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
)

// SupportedExtensions lists the upload types ExtractText accepts.
var SupportedExtensions = []string{"pdf", "docx", "html", "md", "txt"}

var docconvMimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DocconvExtractor parses uploads: pdf and docx through docconv, html
// through html-to-markdown, md and txt as UTF-8 text.
type DocconvExtractor struct {
	useReadability bool
	md             *converter.Converter
}

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{
		useReadability: useReadability,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	var (
		text string
		err  error
	)
	switch ext {
	case "pdf", "docx":
		var res *docconv.Response
		res, err = docconv.Convert(bytes.NewReader(data), docconvMimeTypes[ext], e.useReadability)
		if err == nil {
			text = res.Body
		}
	case "html", "htm":
		text, err = e.md.ConvertString(string(data))
	case "md", "markdown", "txt":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s file is not valid UTF-8", apperrors.ErrParse, ext)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", apperrors.ErrValidation, ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", apperrors.ErrParse, ext, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no text found in %s file", apperrors.ErrParse, ext)
	}
	return text, nil
}
