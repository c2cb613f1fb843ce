// Package dedupe decides whether two audio files represent the same musical
// work. It matches on normalized textual metadata and on exact external
// identifiers (ISRC, canonicalized source URL); it never looks at the audio
// itself.
package dedupe

import (
	"regexp"
	"strings"
)

// junkPatterns remove cosmetic annotations that have no bearing on track
// identity. They run in order against an already-lowercased string; order
// matters because categories nest ("Song [Official Video] [4K] [Lyrics]"
// must collapse fully). Version qualifiers like (Live), (Acoustic), (Remix)
// and the artist separators "&" and standalone "x" are deliberately left
// alone: a remix is not a duplicate of the original.
var junkPatterns = []*regexp.Regexp{
	// official/video/audio annotations
	regexp.MustCompile(`\[official.*?\]`),
	regexp.MustCompile(`\(official.*?\)`),
	regexp.MustCompile(`\[.*?video.*?\]`),
	regexp.MustCompile(`\(.*?video.*?\)`),
	regexp.MustCompile(`\[.*?audio.*?\]`),
	regexp.MustCompile(`\(.*?audio.*?\)`),

	// lyrics/visualizer annotations
	regexp.MustCompile(`[\[(].*?lyric.*?[\])]`),
	regexp.MustCompile(`[\[(]visuali[sz]er.*?[\])]`),

	// quality/resolution annotations
	regexp.MustCompile(`[\[(]hd[\])]`),
	regexp.MustCompile(`[\[(]4k[\])]`),
	regexp.MustCompile(`[\[(]8k[\])]`),
	regexp.MustCompile(`[\[(]uhd[\])]`),
	regexp.MustCompile(`[\[(]hq[\])]`),
	regexp.MustCompile(`[\[(]lq[\])]`),
	regexp.MustCompile(`[\[(].*?quality.*?[\])]`),

	// platform/source annotations ("Artist - Topic" auto-channels, [Premium])
	regexp.MustCompile(`\s*-\s*topic\s*$`),
	regexp.MustCompile(`[\[(]premium[\])]`),

	// promotional annotations
	regexp.MustCompile(`[\[(]free\s*download[\])]`),
	regexp.MustCompile(`[\[(]download.*?[\])]`),
	regexp.MustCompile(`[\[(]out\s*now[\])]`),
	regexp.MustCompile(`[\[(]new[\])]`),
}

var (
	// (ft. X), (feat. X), (featuring X) -> " feat. X"; matching the whole
	// parenthesized group avoids leaving orphaned parens behind.
	featParenPattern = regexp.MustCompile(`\s*\(\s*(?:ft\.?|feat\.?|featuring)\s+([^)]+)\)`)
	featBarePattern  = regexp.MustCompile(`\s+(?:ft\.?|feat\.?|featuring)\s+`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// Normalize maps a raw metadata string to its canonical comparison form:
// lowercase, junk annotations stripped, featuring variants rewritten to
// "feat.", whitespace collapsed. It is deterministic and idempotent. The
// result is only ever a comparison key, never a display title.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(text)

	for _, p := range junkPatterns {
		text = p.ReplaceAllString(text, "")
	}

	text = featParenPattern.ReplaceAllString(text, " feat. $1")
	text = featBarePattern.ReplaceAllString(text, " feat. ")

	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(text, " "))
}

// NormalizeMetadata normalizes an (artist, title) pair field by field. Absent
// input is represented by the empty string and passes through unchanged.
func NormalizeMetadata(artist, title string) (string, string) {
	return Normalize(artist), Normalize(title)
}

// flagPatterns is the looser set used only to FLAG metadata as dirty for human
// review; unlike junkPatterns it also catches unbracketed forms.
var flagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[official.*?\]`),
	regexp.MustCompile(`(?i)\(official.*?\)`),
	regexp.MustCompile(`(?i)\[.*?video.*?\]`),
	regexp.MustCompile(`(?i)\(.*?video.*?\)`),
	regexp.MustCompile(`(?i)\[.*?audio.*?\]`),
	regexp.MustCompile(`(?i)\(.*?audio.*?\)`),
	regexp.MustCompile(`(?i)[\[(]hd[\])]`),
	regexp.MustCompile(`(?i)official video`),
	regexp.MustCompile(`(?i)official audio`),
	regexp.MustCompile(`(?i)music video`),
}

// HasJunk reports whether a raw metadata field carries annotations that
// should never appear in a curated library. It never modifies anything;
// cleanup goes through the review queue.
func HasJunk(text string) bool {
	if text == "" {
		return false
	}

	for _, p := range flagPatterns {
		if p.MatchString(text) {
			return true
		}
	}

	return false
}
