package dedupe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amalgan/trackman/dedupe"
	"github.com/amalgan/trackman/tags"
)

func TestScanLibrary(t *testing.T) {
	t.Parallel()

	t.Run("groups of two or more, cross format", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		one := touch(t, dir, "one.mp3")
		two := touch(t, dir, "two.m4a")
		three := touch(t, dir, "three.mp3")
		four := touch(t, dir, "four.m4a")
		lone := touch(t, dir, "lone.mp3")
		untagged := touch(t, dir, "untagged.mp3")
		_ = untagged

		reader := fakeReader{
			one:   tags.NewFile("Artist", "Song [Official Video]", nil),
			two:   tags.NewFile("Artist", "Song", nil),
			three: tags.NewFile("Other Artist", "Ballad (Lyrics)", nil),
			four:  tags.NewFile("Other Artist", "Ballad", nil),
			lone:  tags.NewFile("Artist", "Single", nil),
		}

		groups, err := dedupe.ScanLibrary(reader, dir)
		require.NoError(t, err)

		require.Len(t, groups, 2)
		assert.ElementsMatch(t, []string{one, two}, groups[dedupe.GroupKey("artist", "song")])
		assert.ElementsMatch(t, []string{three, four}, groups[dedupe.GroupKey("other artist", "ballad")])
	})

	t.Run("no duplicates yields empty mapping", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		one := touch(t, dir, "one.mp3")
		two := touch(t, dir, "two.mp3")

		reader := fakeReader{
			one: tags.NewFile("Artist", "Song A", nil),
			two: tags.NewFile("Artist", "Song B", nil),
		}

		groups, err := dedupe.ScanLibrary(reader, dir)
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("metadata-less files never group on the empty key", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		one := touch(t, dir, "one.mp3")
		two := touch(t, dir, "two.mp3")
		three := touch(t, dir, "three.mp3")

		reader := fakeReader{
			one: tags.NewFile("", "", nil),
			two: tags.NewFile("", "", nil),
			three: tags.NewFile("Artist", "", nil),
		}

		groups, err := dedupe.ScanLibrary(reader, dir)
		require.NoError(t, err)
		assert.Empty(t, groups)
	})
}

func TestCheckFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	candidate := touch(t, dir, "candidate.mp3")
	duplicate := touch(t, dir, "duplicate.m4a")
	unrelated := touch(t, dir, "unrelated.mp3")

	reader := fakeReader{
		candidate: tags.NewFile("Artist", "Song", nil),
		duplicate: tags.NewFile("Artist", "Song (Official Video)", nil),
		unrelated: tags.NewFile("Artist", "Other", nil),
	}

	t.Run("reports duplicates excluding the file itself", func(t *testing.T) {
		t.Parallel()

		got, err := dedupe.CheckFile(reader, candidate, dir)
		require.NoError(t, err)
		assert.Exactly(t, []string{duplicate}, got)
	})

	t.Run("file without metadata has no duplicates", func(t *testing.T) {
		t.Parallel()

		got, err := dedupe.CheckFile(reader, "missing.mp3", dir)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
