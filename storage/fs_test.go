package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
)

func TestFilesystemCreatesRoot(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "not", "yet", "there")
	filesystem, err := NewFilesystem(root)
	assert.NilError(t, err)

	info, err := os.Stat(filesystem.Root())
	assert.NilError(t, err)
	assert.Assert(t, info.IsDir())
}

func TestFilesystemPutListDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	filesystem, err := NewFilesystem(t.TempDir())
	assert.NilError(t, err)

	assert.NilError(t, filesystem.Put(ctx, "noarch/a-1.0-0.tar.bz2", []byte("archive-a")))
	assert.NilError(t, filesystem.Put(ctx, "noarch/b-2.0-0.conda", []byte("archive-b")))

	entries, err := filesystem.List(ctx, "noarch")
	assert.NilError(t, err)

	var names []string
	for _, entry := range entries {
		assert.Assert(t, !entry.IsDir)
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	assert.DeepEqual(t, names, []string{"a-1.0-0.tar.bz2", "b-2.0-0.conda"})

	content, err := os.ReadFile(filepath.Join(filesystem.Root(), "noarch", "a-1.0-0.tar.bz2"))
	assert.NilError(t, err)
	assert.Equal(t, string(content), "archive-a")

	assert.NilError(t, filesystem.Delete(ctx, "noarch/a-1.0-0.tar.bz2"))

	entries, err = filesystem.List(ctx, "noarch")
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 1)
}

func TestFilesystemPutOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	filesystem, err := NewFilesystem(t.TempDir())
	assert.NilError(t, err)

	assert.NilError(t, filesystem.Put(ctx, "noarch/repodata.json", []byte("old")))
	assert.NilError(t, filesystem.Put(ctx, "noarch/repodata.json", []byte("new")))

	content, err := os.ReadFile(filepath.Join(filesystem.Root(), "noarch", "repodata.json"))
	assert.NilError(t, err)
	assert.Equal(t, string(content), "new")
}

func TestFilesystemPutLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	filesystem, err := NewFilesystem(t.TempDir())
	assert.NilError(t, err)

	assert.NilError(t, filesystem.Put(ctx, "noarch/a-1.0-0.tar.bz2", []byte("archive-a")))

	dirents, err := os.ReadDir(filepath.Join(filesystem.Root(), "noarch"))
	assert.NilError(t, err)
	assert.Equal(t, len(dirents), 1)
	assert.Equal(t, dirents[0].Name(), "a-1.0-0.tar.bz2")
}

func TestFilesystemDeleteAbsentSucceeds(t *testing.T) {
	t.Parallel()

	filesystem, err := NewFilesystem(t.TempDir())
	assert.NilError(t, err)

	assert.NilError(t, filesystem.Delete(context.Background(), "noarch/never-there.tar.bz2"))
}

func TestFilesystemListMissingPrefix(t *testing.T) {
	t.Parallel()

	filesystem, err := NewFilesystem(t.TempDir())
	assert.NilError(t, err)

	entries, err := filesystem.List(context.Background(), "linux-64")
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 0)
}

func TestFilesystemListMarksDirectories(t *testing.T) {
	t.Parallel()

	dir := fs.NewDir(t, "channel",
		fs.WithDir("noarch",
			fs.WithFile("a-1.0-0.tar.bz2", "archive-a"),
			fs.WithDir("nested"),
		),
	)
	defer dir.Remove()

	filesystem, err := NewFilesystem(dir.Path())
	assert.NilError(t, err)

	entries, err := filesystem.List(context.Background(), "noarch")
	assert.NilError(t, err)

	byName := map[string]bool{}
	for _, entry := range entries {
		byName[entry.Name] = entry.IsDir
	}
	assert.Equal(t, byName["a-1.0-0.tar.bz2"], false)
	assert.Equal(t, byName["nested"], true)
}
