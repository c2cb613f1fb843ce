// Package review maintains the metadata-review queue: a human-editable CSV
// file where tracks with missing or suspicious metadata wait for an operator
// to fill in corrections, which are then applied back to the files.
package review

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"

	"github.com/amalgan/trackman/dedupe"
	"github.com/amalgan/trackman/tags"
)

var csvHeaders = []string{
	"file_path",
	"current_artist",
	"current_title",
	"suggested_artist",
	"suggested_title",
	"source_url",
	"notes",
}

// Entry is one row of the review queue. SuggestedArtist and SuggestedTitle
// are filled in by the operator editing the CSV; a row is ready to apply once
// both are non-empty.
type Entry struct {
	FilePath        string
	CurrentArtist   string
	CurrentTitle    string
	SuggestedArtist string
	SuggestedTitle  string
	SourceURL       string
	Notes           string
}

func (e Entry) ready() bool {
	return strings.TrimSpace(e.SuggestedArtist) != "" && strings.TrimSpace(e.SuggestedTitle) != ""
}

// Queue is the CSV-backed review queue. The CSV stays the storage format so
// operators can edit it with any spreadsheet tool.
type Queue struct {
	logger zerolog.Logger
	reader tags.Reader
	path   string
}

func NewQueue(logger zerolog.Logger, reader tags.Reader, path string) *Queue {
	return &Queue{logger: logger, reader: reader, path: path}
}

// Flag appends the file to the queue with its current metadata and the reason
// it needs attention. The CSV is created on first use.
func (q *Queue) Flag(filePath, reason, sourceURL string) error {
	artist, title := dedupe.ExtractMetadata(q.reader, filePath)

	entries, err := q.load()
	if nil != err {
		return err
	}

	entries = append(entries, Entry{
		FilePath:      filePath,
		CurrentArtist: artist,
		CurrentTitle:  title,
		SourceURL:     sourceURL,
		Notes:         reason,
	})

	if err := q.store(entries); nil != err {
		return err
	}

	q.logger.
		Warn().
		Str("file", filepath.Base(filePath)).
		Str("reason", reason).
		Msg("Flagged for metadata review")

	return nil
}

// Pending returns the queued rows. A missing CSV means an empty queue.
func (q *Queue) Pending() ([]Entry, error) {
	return q.load()
}

// Result summarizes one Apply run.
type Result struct {
	Processed int
	Remaining int
	Errors    int
}

// Apply processes every row whose suggested fields are filled in: it rewrites
// the file's tags, renames it to "Artist - Title.ext", and removes the row.
// Rows that are not ready, or whose file fails to update, stay queued. With
// dryRun set nothing is modified and the would-be outcome is returned.
func (q *Queue) Apply(ctx context.Context, dryRun bool) (Result, error) {
	var result Result

	entries, err := q.load()
	if nil != err {
		return result, err
	}

	var remaining []Entry
	for _, entry := range entries {
		if !entry.ready() {
			remaining = append(remaining, entry)
			result.Remaining++
			continue
		}

		artist := strings.TrimSpace(entry.SuggestedArtist)
		title := strings.TrimSpace(entry.SuggestedTitle)

		if _, err := os.Stat(entry.FilePath); nil != err {
			q.logger.Warn().Str("file", entry.FilePath).Msg("Flagged file no longer exists")
			result.Errors++
			continue
		}

		if dryRun {
			q.logger.
				Info().
				Str("file", filepath.Base(entry.FilePath)).
				Str("artist", artist).
				Str("title", title).
				Msg("Would apply metadata")
			result.Processed++
			continue
		}

		if err := q.apply(ctx, entry.FilePath, artist, title); nil != err {
			q.logger.Error().Err(err).Str("file", entry.FilePath).Msg("Failed to apply metadata")
			remaining = append(remaining, entry)
			result.Errors++
			continue
		}

		result.Processed++
	}

	if dryRun {
		return result, nil
	}

	if len(remaining) == 0 {
		if err := os.Remove(q.path); nil != err && !errors.Is(err, os.ErrNotExist) {
			return result, fmt.Errorf("failed to remove drained review file: %v", err)
		}

		return result, nil
	}

	if err := q.store(remaining); nil != err {
		return result, err
	}

	return result, nil
}

func (q *Queue) apply(ctx context.Context, path, artist, title string) error {
	if err := tags.WriteMetadata(ctx, path, artist, title); nil != err {
		return fmt.Errorf("failed to update tags: %v", err)
	}

	newName := fmt.Sprintf(
		"%s - %s%s",
		SanitizeFilename(artist),
		SanitizeFilename(title),
		filepath.Ext(path),
	)
	newPath := filepath.Join(filepath.Dir(path), newName)
	if newPath == path {
		return nil
	}

	if _, err := os.Stat(newPath); nil == err {
		// The corrected name is taken by another file. Tags are already
		// fixed; keeping the old name is the safe outcome.
		q.logger.
			Warn().
			Str("target", newName).
			Msg("Rename target already exists, keeping original name")

		return nil
	}

	if err := os.Rename(path, newPath); nil != err {
		return fmt.Errorf("failed to rename to %s: %v", newName, err)
	}

	return nil
}

// SanitizeFilename replaces path-hostile characters with dashes and trims
// trailing dots and spaces, which some filesystems reject.
func SanitizeFilename(text string) string {
	const unsafe = `/\:*?"<>|`
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafe, r) {
			return '-'
		}

		return r
	}, text)

	return strings.Trim(text, ". ")
}

// RenderPending writes the queue as a table for the pending-reviews listing.
func RenderPending(w io.Writer, entries []Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "File", "Current", "Suggested", "Notes"})
	for i, e := range entries {
		current := fmt.Sprintf("%s - %s", e.CurrentArtist, e.CurrentTitle)
		suggested := "(empty)"
		if e.ready() {
			suggested = fmt.Sprintf("%s - %s", e.SuggestedArtist, e.SuggestedTitle)
		}
		t.AppendRow(table.Row{i + 1, filepath.Base(e.FilePath), current, suggested, e.Notes})
	}
	t.Render()
}

func (q *Queue) load() ([]Entry, error) {
	f, err := os.Open(q.path)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to open review file %s: %v", q.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if nil != err {
		return nil, fmt.Errorf("failed to parse review file %s: %v", q.path, err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(csvHeaders) {
			return nil, fmt.Errorf("malformed review row in %s: expected %d fields, got %d", q.path, len(csvHeaders), len(rec))
		}

		entries = append(entries, Entry{
			FilePath:        rec[0],
			CurrentArtist:   rec[1],
			CurrentTitle:    rec[2],
			SuggestedArtist: rec[3],
			SuggestedTitle:  rec[4],
			SourceURL:       rec[5],
			Notes:           rec[6],
		})
	}

	return entries, nil
}

func (q *Queue) store(entries []Entry) error {
	if dir := filepath.Dir(q.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); nil != err {
			return fmt.Errorf("failed to create review file directory: %v", err)
		}
	}

	f, err := os.Create(q.path)
	if nil != err {
		return fmt.Errorf("failed to create review file %s: %v", q.path, err)
	}

	if err := writeRows(f, entries); nil != err {
		_ = f.Close()
		return err
	}

	if err := f.Close(); nil != err {
		return fmt.Errorf("failed to close review file: %v", err)
	}

	return nil
}

func writeRows(f io.Writer, entries []Entry) error {
	w := csv.NewWriter(f)
	if err := w.Write(csvHeaders); nil != err {
		return fmt.Errorf("failed to write review file header: %v", err)
	}

	for _, e := range entries {
		record := []string{
			e.FilePath,
			e.CurrentArtist,
			e.CurrentTitle,
			e.SuggestedArtist,
			e.SuggestedTitle,
			e.SourceURL,
			e.Notes,
		}
		if err := w.Write(record); nil != err {
			return fmt.Errorf("failed to write review row: %v", err)
		}
	}

	w.Flush()
	if err := w.Error(); nil != err {
		return fmt.Errorf("failed to flush review file: %v", err)
	}

	return nil
}
