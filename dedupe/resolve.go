package dedupe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amalgan/trackman/tags"
)

// Policy governs how a detected duplicate is handled.
type Policy string

const (
	// PolicySkip discards the candidate without asking.
	PolicySkip Policy = "skip"
	// PolicyKeep retains both the candidate and the existing files.
	PolicyKeep Policy = "keep"
	// PolicyInteractive defers the decision to the configured Decider.
	PolicyInteractive Policy = "interactive"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySkip, PolicyKeep, PolicyInteractive:
		return p, nil
	default:
		return "", fmt.Errorf("invalid duplicate handling policy: %q", s)
	}
}

// Choice is an operator's disposition for one detected duplicate.
type Choice int

const (
	// ChoiceSkip discards the new file and keeps the existing ones.
	ChoiceSkip Choice = iota
	// ChoiceKeepBoth keeps the new file alongside the existing ones.
	ChoiceKeepBoth
	// ChoiceReplace deletes the existing files and keeps the new one.
	ChoiceReplace
)

// Track is a file presented to a Decider: its path plus the raw artist and
// title read from its tags.
type Track struct {
	Path   string
	Artist string
	Title  string
}

// Decider picks what to do with a candidate that duplicates existing library
// files. Implementations may block on operator input.
type Decider interface {
	Decide(candidate Track, existing []Track) (Choice, error)
}

// Resolver decides whether a candidate file duplicates the library and
// performs the deletions the chosen policy selects. It is the only component
// allowed to delete files as part of duplicate handling.
type Resolver struct {
	logger  zerolog.Logger
	reader  tags.Reader
	fs      FS
	dir     string
	policy  Policy
	decider Decider
}

// FS is the slice of filesystem behavior the resolver mutates through,
// injectable for tests.
type FS interface {
	Remove(path string) error
}

func NewResolver(
	logger zerolog.Logger,
	reader tags.Reader,
	fs FS,
	dir string,
	policy Policy,
	decider Decider,
) *Resolver {
	return &Resolver{
		logger:  logger,
		reader:  reader,
		fs:      fs,
		dir:     dir,
		policy:  policy,
		decider: decider,
	}
}

// Resolve reports whether the candidate should be treated as a duplicate and
// discarded by the caller (true) or retained (false). Under the interactive
// policy with a "replace" choice it deletes the matched existing files;
// deletion failures are joined per file and never abort the remaining
// deletions, nor change the disposition.
func (r *Resolver) Resolve(candidatePath string) (bool, error) {
	artist, title := ExtractMetadata(r.reader, candidatePath)
	if artist == "" || title == "" {
		// A file with no identifiable metadata can never be judged a
		// duplicate; flagging it for review is the caller's job.
		return false, nil
	}

	matches, err := NewMatcher(r.reader, r.dir).FindByMetadata(artist, title)
	if nil != err {
		return false, fmt.Errorf("failed to match candidate against library: %v", err)
	}

	matches = excludeSelf(matches, candidatePath)
	if len(matches) == 0 {
		return false, nil
	}

	switch r.policy {
	case PolicySkip:
		r.logger.
			Warn().
			Str("candidate", filepath.Base(candidatePath)).
			Int("existing", len(matches)).
			Msg("Duplicate found, skipping new file")

		return true, nil
	case PolicyKeep:
		r.logger.
			Info().
			Str("candidate", filepath.Base(candidatePath)).
			Int("existing", len(matches)).
			Msg("Duplicate found, keeping both")

		return false, nil
	case PolicyInteractive:
		return r.resolveInteractively(candidatePath, artist, title, matches)
	default:
		return false, fmt.Errorf("invalid duplicate handling policy: %q", r.policy)
	}
}

func (r *Resolver) resolveInteractively(
	candidatePath, artist, title string,
	matches []string,
) (bool, error) {
	existing := make([]Track, 0, len(matches))
	for _, path := range matches {
		a, t := ExtractMetadata(r.reader, path)
		existing = append(existing, Track{Path: path, Artist: a, Title: t})
	}

	choice, err := r.decider.Decide(
		Track{Path: candidatePath, Artist: artist, Title: title},
		existing,
	)
	if nil != err {
		return false, fmt.Errorf("failed to obtain duplicate resolution choice: %v", err)
	}

	switch choice {
	case ChoiceSkip:
		return true, nil
	case ChoiceKeepBoth:
		return false, nil
	case ChoiceReplace:
		// Each deletion is independent and best-effort: one failure must not
		// leave the rest of the batch untouched.
		var errs []error
		for _, path := range matches {
			r.logger.Info().Str("path", filepath.Base(path)).Msg("Removing superseded file")
			if err := r.fs.Remove(path); nil != err {
				errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
			}
		}

		return false, errors.Join(errs...)
	default:
		return false, fmt.Errorf("invalid duplicate resolution choice: %d", choice)
	}
}

// excludeSelf drops the candidate's own path from its match set: a file is
// never its own duplicate. Paths are compared in resolved form so differing
// spellings of the same file still collapse.
func excludeSelf(matches []string, candidatePath string) []string {
	self := resolvePath(candidatePath)

	kept := matches[:0]
	for _, m := range matches {
		if resolvePath(m) != self {
			kept = append(kept, m)
		}
	}

	return kept
}

func resolvePath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); nil == err {
		path = resolved
	}

	if abs, err := filepath.Abs(path); nil == err {
		return abs
	}

	return filepath.Clean(path)
}

// OSRemover is the production FS backed by the real filesystem.
type OSRemover struct{}

func (OSRemover) Remove(path string) error {
	return os.Remove(path)
}

// ConsoleDecider implements Decider over a line-based operator dialog: it
// prints the candidate and every matched file, then loops until one of the
// tokens s (skip), k (keep both), or r (replace) is entered, in either case,
// with surrounding whitespace ignored. There is no default and no timeout.
type ConsoleDecider struct {
	In  io.Reader
	Out io.Writer
}

func (d *ConsoleDecider) Decide(candidate Track, existing []Track) (Choice, error) {
	fmt.Fprintf(d.Out, "\nDuplicate track detected!\n")
	fmt.Fprintf(d.Out, "New file: %s\n", filepath.Base(candidate.Path))
	fmt.Fprintf(d.Out, "  Artist: %s\n", candidate.Artist)
	fmt.Fprintf(d.Out, "  Title: %s\n", candidate.Title)
	fmt.Fprintf(d.Out, "\nExisting files:\n")
	for i, t := range existing {
		fmt.Fprintf(d.Out, "  %d. %s\n", i+1, filepath.Base(t.Path))
		fmt.Fprintf(d.Out, "     Artist: %s\n", t.Artist)
		fmt.Fprintf(d.Out, "     Title: %s\n", t.Title)
	}
	fmt.Fprintf(d.Out, "\nWhat would you like to do?\n")
	fmt.Fprintf(d.Out, "  [s] Skip new file (keep existing)\n")
	fmt.Fprintf(d.Out, "  [k] Keep both\n")
	fmt.Fprintf(d.Out, "  [r] Replace existing with new file\n")

	scanner := bufio.NewScanner(d.In)
	for {
		fmt.Fprint(d.Out, "Choice [s/k/r]: ")

		if !scanner.Scan() {
			if err := scanner.Err(); nil != err {
				return 0, fmt.Errorf("failed to read choice: %v", err)
			}

			return 0, errors.New("input closed before a choice was made")
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "s":
			return ChoiceSkip, nil
		case "k":
			return ChoiceKeepBoth, nil
		case "r":
			return ChoiceReplace, nil
		default:
			fmt.Fprintln(d.Out, "Invalid choice. Please enter s, k, or r.")
		}
	}
}
