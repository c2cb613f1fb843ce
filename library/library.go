// Package library renders operator-facing reports over a music directory:
// duplicate groups and metadata health.
package library

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/amalgan/trackman/dedupe"
	"github.com/amalgan/trackman/tags"
)

// DuplicateGroup is one set of files judged to be the same track.
type DuplicateGroup struct {
	Artist string
	Title  string
	Paths  []string
}

// FindDuplicates scans dir and returns the duplicate groups in deterministic
// order, artist then title.
func FindDuplicates(reader tags.Reader, dir string) ([]DuplicateGroup, error) {
	groups, err := dedupe.ScanLibrary(reader, dir)
	if nil != err {
		return nil, fmt.Errorf("failed to scan library for duplicates: %v", err)
	}

	out := make([]DuplicateGroup, 0, len(groups))
	for key, paths := range groups {
		artist, title, ok := strings.Cut(key, dedupe.GroupKeySeparator)
		if !ok {
			return nil, fmt.Errorf("malformed duplicate group key: %q", key)
		}

		sort.Strings(paths)
		out = append(out, DuplicateGroup{Artist: artist, Title: title, Paths: paths})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Artist != out[j].Artist {
			return out[i].Artist < out[j].Artist
		}

		return out[i].Title < out[j].Title
	})

	return out, nil
}

// RenderDuplicates writes the duplicate-group report.
func RenderDuplicates(w io.Writer, groups []DuplicateGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No duplicates found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Artist", "Title", "Files"})
	for i, g := range groups {
		names := make([]string, 0, len(g.Paths))
		for _, p := range g.Paths {
			names = append(names, filepath.Base(p))
		}
		t.AppendRow(table.Row{i + 1, g.Artist, g.Title, strings.Join(names, "\n")})
	}
	t.Render()
}

// Problem is one file flagged by Verify, with the metadata it carries.
type Problem struct {
	Path   string
	Artist string
	Title  string
}

// Report is the outcome of a metadata verification pass.
type Report struct {
	Total   int
	Missing []Problem
	Junk    []Problem
}

// Clean reports whether every scanned file has complete, junk-free metadata.
func (r Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Junk) == 0
}

// Verify checks every supported file in dir for missing artist/title and for
// junk annotations left over from careless rips.
func Verify(reader tags.Reader, dir string) (Report, error) {
	files, err := tags.ListAudioFiles(dir)
	if nil != err {
		return Report{}, fmt.Errorf("failed to list library files: %v", err)
	}

	report := Report{Total: len(files)} //nolint:exhaustruct
	for _, path := range files {
		artist, title := dedupe.ExtractMetadata(reader, path)

		switch {
		case artist == "" || title == "":
			report.Missing = append(report.Missing, Problem{Path: path, Artist: artist, Title: title})
		case dedupe.HasJunk(artist) || dedupe.HasJunk(title):
			report.Junk = append(report.Junk, Problem{Path: path, Artist: artist, Title: title})
		}
	}

	return report, nil
}

// RenderReport writes the verification outcome.
func RenderReport(w io.Writer, report Report) {
	if report.Clean() {
		fmt.Fprintf(w, "All %d tracks have clean metadata.\n", report.Total)
		return
	}

	if len(report.Missing) > 0 {
		fmt.Fprintf(w, "%d files with missing metadata:\n", len(report.Missing))
		renderProblems(w, report.Missing, "(missing)")
	}

	if len(report.Junk) > 0 {
		fmt.Fprintf(w, "%d files with junk in metadata:\n", len(report.Junk))
		renderProblems(w, report.Junk, "")
	}
}

func renderProblems(w io.Writer, problems []Problem, placeholder string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"File", "Artist", "Title"})
	for _, p := range problems {
		artist, title := p.Artist, p.Title
		if artist == "" {
			artist = placeholder
		}
		if title == "" {
			title = placeholder
		}
		t.AppendRow(table.Row{filepath.Base(p.Path), artist, title})
	}
	t.Render()
}
