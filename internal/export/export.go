// Package export turns a story into the files and clipboard text the user
// can take away.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"quill/internal/models"
)

const Attribution = "*Generated by Quill*"

var (
	ErrNothingToExport = errors.New("no story to export")
	ErrUnknownFormat   = errors.New("unknown export format")
)

// writeClipboard is swapped out in tests; CI machines have no clipboard.
var writeClipboard = clipboard.WriteAll

// Markdown renders the downloadable document for it.
func Markdown(it models.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Story\n\n", it.Genre)
	fmt.Fprintf(&b, "**Genre:** %s\n", it.Genre)
	fmt.Fprintf(&b, "**Tone:** %s\n", it.Tone)
	fmt.Fprintf(&b, "**Language:** %s\n", it.Language)
	fmt.Fprintf(&b, "**Words:** %d\n\n", it.WordCount)
	b.WriteString("---\n\n")
	b.WriteString(it.Content)
	b.WriteString("\n\n---\n")
	b.WriteString(Attribution)
	b.WriteString("\n")
	return b.String()
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML renders the Markdown document as a standalone HTML page.
func HTML(it models.Item) (string, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(it)), &body); err != nil {
		return "", err
	}
	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s Story</title>\n", it.Genre)
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}

// Filename is story_{genre}_{unix millis}.{ext}.
func Filename(genre, ext string, now time.Time) string {
	return fmt.Sprintf("story_%s_%d.%s", strings.ToLower(genre), now.UnixMilli(), ext)
}

// Save writes it to dir in format ("md" or "html") and returns the path.
func Save(dir, format string, it models.Item, now time.Time) (string, error) {
	if strings.TrimSpace(it.Content) == "" {
		return "", ErrNothingToExport
	}

	var doc string
	switch format {
	case "", "md":
		format = "md"
		doc = Markdown(it)
	case "html":
		var err error
		if doc, err = HTML(it); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, Filename(it.Genre, format, now))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Copy puts the raw story text on the system clipboard.
func Copy(it models.Item) error {
	if strings.TrimSpace(it.Content) == "" {
		return ErrNothingToExport
	}
	return writeClipboard(it.Content)
}
