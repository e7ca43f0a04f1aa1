package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(mods ...BlockedMod) *Registry {
	return New(mods, nil)
}

func TestNew_NormalizesEntries(t *testing.T) {
	r := newTestRegistry(BlockedMod{
		Name:      "  Foo.jar ",
		Hash:      "ABC123",
		URL:       " https://example.com/foo ",
		Matched:   true,
		LocalPath: "/stale",
	})

	mods := r.Snapshot()
	require.Len(t, mods, 1)
	assert.Equal(t, "Foo.jar", mods[0].Name)
	assert.Equal(t, "abc123", mods[0].Hash)
	assert.Equal(t, "https://example.com/foo", mods[0].URL)
	assert.False(t, mods[0].Matched, "pre-set match state must be discarded")
	assert.Empty(t, mods[0].LocalPath)
}

func TestConfirm_Match(t *testing.T) {
	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})

	outcome := r.Confirm("abc123", "/downloads/Foo.jar")
	require.True(t, outcome.Matched)
	assert.Equal(t, "Foo.jar", outcome.Mod.Name)
	assert.Equal(t, "/downloads/Foo.jar", outcome.Mod.LocalPath)

	mods := r.Snapshot()
	assert.True(t, mods[0].Matched)
	assert.Equal(t, "/downloads/Foo.jar", mods[0].LocalPath)
	assert.True(t, r.AllMatched())
}

func TestConfirm_CaseInsensitiveHash(t *testing.T) {
	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "ABC123DEf"})

	outcome := r.Confirm("abc123def", "/p")
	assert.True(t, outcome.Matched)

	r = newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123def"})
	outcome = r.Confirm("ABC123DEF", "/p")
	assert.True(t, outcome.Matched)
}

func TestConfirm_NoMatch(t *testing.T) {
	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})

	outcome := r.Confirm("zzz999", "/downloads/Foo.jar")
	assert.False(t, outcome.Matched)
	assert.False(t, r.Snapshot()[0].Matched)
	assert.False(t, r.AllMatched())
}

func TestConfirm_FirstWriterWins(t *testing.T) {
	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})

	first := r.Confirm("abc123", "/a/Foo.jar")
	second := r.Confirm("abc123", "/b/Foo.jar")

	assert.True(t, first.Matched)
	assert.False(t, second.Matched, "matched entries must never be overwritten")
	assert.Equal(t, "/a/Foo.jar", r.Snapshot()[0].LocalPath)
}

func TestConfirm_DuplicateExpectedHashes(t *testing.T) {
	r := newTestRegistry(
		BlockedMod{Name: "A.jar", Hash: "dup1"},
		BlockedMod{Name: "B.jar", Hash: "dup1"},
	)

	first := r.Confirm("dup1", "/files/one")
	require.True(t, first.Matched)

	second := r.Confirm("dup1", "/files/two")
	require.True(t, second.Matched)
	assert.NotEqual(t, first.Mod.Name, second.Mod.Name)

	third := r.Confirm("dup1", "/files/three")
	assert.False(t, third.Matched)

	// Both entries matched, each to a distinct file.
	paths := map[string]bool{}
	for _, mod := range r.Snapshot() {
		assert.True(t, mod.Matched)
		paths[mod.LocalPath] = true
	}
	assert.Len(t, paths, 2)
}

func TestNameRelevant(t *testing.T) {
	r := newTestRegistry(
		BlockedMod{Name: "Foo.jar", Hash: "abc"},
		BlockedMod{Name: "Bar.zip", Hash: "def"},
	)

	assert.True(t, r.NameRelevant("Foo.jar"))
	assert.True(t, r.NameRelevant("foo.JAR"))
	assert.True(t, r.NameRelevant("bar.zip"))
	assert.False(t, r.NameRelevant("Baz.jar"))
	assert.False(t, r.NameRelevant(""))
}

func TestNameRelevant_IgnoresMatchState(t *testing.T) {
	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})
	require.True(t, r.Confirm("abc123", "/p/Foo.jar").Matched)

	assert.True(t, r.NameRelevant("Foo.jar"), "matched entries still count for the prefilter")
}

func TestRevalidate_FileStillExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Foo.jar")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})
	require.True(t, r.Confirm("abc123", path).Matched)

	assert.False(t, r.Revalidate())
	assert.True(t, r.Snapshot()[0].Matched)
}

func TestRevalidate_FileDeleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Foo.jar")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})
	require.True(t, r.Confirm("abc123", path).Matched)
	require.NoError(t, os.Remove(path))

	assert.True(t, r.Revalidate())

	mod := r.Snapshot()[0]
	assert.False(t, mod.Matched)
	assert.Empty(t, mod.LocalPath)

	// Nothing left to invalidate on the second pass.
	assert.False(t, r.Revalidate())
}

func TestRevalidate_PathBecameDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Foo.jar")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})
	require.True(t, r.Confirm("abc123", path).Matched)

	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	assert.True(t, r.Revalidate(), "a directory is not a regular file")
	assert.False(t, r.Snapshot()[0].Matched)
}

func TestAllMatched_EmptySet(t *testing.T) {
	r := newTestRegistry()
	assert.True(t, r.AllMatched())
	assert.Equal(t, 0, r.Len())
}

func TestMatchedPath(t *testing.T) {
	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})

	assert.False(t, r.MatchedPath("/p/Foo.jar"))
	require.True(t, r.Confirm("abc123", "/p/Foo.jar").Matched)
	assert.True(t, r.MatchedPath("/p/Foo.jar"))
	assert.False(t, r.MatchedPath("/q/Foo.jar"))
}

func TestSnapshot_IsACopy(t *testing.T) {
	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})

	snap := r.Snapshot()
	snap[0].Matched = true
	snap[0].LocalPath = "/tampered"

	assert.False(t, r.Snapshot()[0].Matched)
	assert.Empty(t, r.Snapshot()[0].LocalPath)
}

func TestGeneration_BumpsOnEffectiveChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Foo.jar")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	r := newTestRegistry(BlockedMod{Name: "Foo.jar", Hash: "abc123"})
	start := r.Generation()

	r.Confirm("nope", "/p")
	assert.Equal(t, start, r.Generation(), "failed confirm must not bump the generation")

	r.Confirm("abc123", path)
	afterMatch := r.Generation()
	assert.Greater(t, afterMatch, start)

	r.Revalidate()
	assert.Equal(t, afterMatch, r.Generation(), "no-op revalidate must not bump the generation")

	require.NoError(t, os.Remove(path))
	r.Revalidate()
	assert.Greater(t, r.Generation(), afterMatch)
}

func TestMatchedCount(t *testing.T) {
	r := newTestRegistry(
		BlockedMod{Name: "A.jar", Hash: "aaa"},
		BlockedMod{Name: "B.jar", Hash: "bbb"},
	)

	assert.Equal(t, 0, r.MatchedCount())
	r.Confirm("aaa", "/a")
	assert.Equal(t, 1, r.MatchedCount())
	r.Confirm("bbb", "/b")
	assert.Equal(t, 2, r.MatchedCount())
	assert.Equal(t, 2, r.Len())
}
