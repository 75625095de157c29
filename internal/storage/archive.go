package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"cvetracker/internal/models"
	"cvetracker/pkg/utils"
)

const (
	// textMaxLength bounds archived titles and snippets.
	textMaxLength = 500

	defaultFileMode = 0o644
)

// ToArchiveEntry returns the archived projection of an article. Title and
// snippet are sanitized; link and raw date pass through unchanged.
func ToArchiveEntry(a models.Article) models.ArchiveEntry {
	return models.ArchiveEntry{
		Title:          utils.Sanitize(a.Title, textMaxLength),
		Link:           a.Link,
		Snippet:        utils.Sanitize(a.Snippet, textMaxLength),
		PublishDateRaw: a.PublishDateRaw,
	}
}

// WriteArchive replaces the archive at path with the sanitized articles,
// in harvest order, as an indented JSON array.
func WriteArchive(path string, articles []models.Article) error {
	entries := make([]models.ArchiveEntry, 0, len(articles))
	for _, a := range articles {
		entries = append(entries, ToArchiveEntry(a))
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	if err := WriteFileAtomic(path, buf.Bytes(), existingMode(path, defaultFileMode)); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	return nil
}

// ReadArchive loads an archive written by WriteArchive.
func ReadArchive(path string) ([]models.ArchiveEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	var entries []models.ArchiveEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}

	return entries, nil
}
