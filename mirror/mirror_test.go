package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/condaops/conda-mirror/channel"
	errorpkg "github.com/condaops/conda-mirror/error"
	"github.com/condaops/conda-mirror/filter"
	"github.com/condaops/conda-mirror/repodata"
)

var (
	archiveA = []byte("archive-a-bytes")
	archiveB = []byte("archive-b-bytes")
)

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// writeSourceChannel lays out a file channel with a noarch subdir holding
// a-1.0-0.tar.bz2 (sha256 declared) and b-2.0-0.conda (no sha256).
func writeSourceChannel(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeSubdir(t, root, "noarch", map[string]repodata.PackageRecord{
		"a-1.0-0.tar.bz2": {Name: "a", Version: "1.0", Build: "0", SHA256: digest(archiveA)},
		"b-2.0-0.conda":   {Name: "b", Version: "2.0", Build: "0"},
	}, map[string][]byte{
		"a-1.0-0.tar.bz2": archiveA,
		"b-2.0-0.conda":   archiveB,
	})
	return root
}

func writeSubdir(t *testing.T, root, subdir string, records map[string]repodata.PackageRecord, bodies map[string][]byte) {
	t.Helper()

	dir := filepath.Join(root, subdir)
	assert.NilError(t, os.MkdirAll(dir, 0755))

	rd := repodata.RepoData{
		Info:          json.RawMessage(`{"subdir": "` + subdir + `"}`),
		Packages:      map[string]repodata.PackageRecord{},
		CondaPackages: map[string]repodata.PackageRecord{},
		Version:       1,
	}
	for filename, record := range records {
		switch repodata.ParseArchiveType(filename) {
		case repodata.ArchiveTarBz2:
			rd.Packages[filename] = record
		case repodata.ArchiveConda:
			rd.CondaPackages[filename] = record
		}
	}

	raw, err := rd.Marshal()
	assert.NilError(t, err)
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "repodata.json"), raw, 0644))

	for filename, body := range bodies {
		assert.NilError(t, os.WriteFile(filepath.Join(dir, filename), body, 0644))
	}
}

func fileJob(t *testing.T, src, dst string, subdirs []channel.Platform, mode filter.Mode) *Job {
	t.Helper()

	srcRef, err := channel.ParseRef(src)
	assert.NilError(t, err)
	dstRef, err := channel.ParseRef(dst)
	assert.NilError(t, err)

	return &Job{
		Source:      srcRef,
		Destination: dstRef,
		Subdirs:     subdirs,
		Mode:        mode,
	}
}

func readDestRepodata(t *testing.T, dst, subdir string) *repodata.RepoData {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join(dst, subdir, "repodata.json"))
	assert.NilError(t, err)
	rd, err := repodata.Parse(raw, "")
	assert.NilError(t, err)
	return rd
}

func TestMirrorCleanFileToFile(t *testing.T) {
	t.Parallel()

	src := writeSourceChannel(t)
	dst := t.TempDir()

	job := fileJob(t, src, dst, []channel.Platform{channel.PlatformNoArch}, filter.Mode{})
	assert.NilError(t, Mirror(context.Background(), job))

	copiedA, err := os.ReadFile(filepath.Join(dst, "noarch", "a-1.0-0.tar.bz2"))
	assert.NilError(t, err)
	assert.DeepEqual(t, copiedA, archiveA)

	copiedB, err := os.ReadFile(filepath.Join(dst, "noarch", "b-2.0-0.conda"))
	assert.NilError(t, err)
	assert.DeepEqual(t, copiedB, archiveB)

	rd := readDestRepodata(t, dst, "noarch")

	if _, ok := rd.Packages["a-1.0-0.tar.bz2"]; !ok {
		t.Error("a-1.0-0.tar.bz2 missing from packages")
	}
	if _, ok := rd.CondaPackages["b-2.0-0.conda"]; !ok {
		t.Error("b-2.0-0.conda missing from packages.conda")
	}
	if rd.Version != 1 {
		t.Errorf("repodata_version not preserved: %d", rd.Version)
	}

	// every manifest entry exists at the destination
	for filename := range rd.AllPackages() {
		_, err := os.Stat(filepath.Join(dst, "noarch", filename))
		assert.NilError(t, err)
	}
}

func TestMirrorIdempotentRerun(t *testing.T) {
	t.Parallel()

	src := writeSourceChannel(t)
	dst := t.TempDir()

	job := fileJob(t, src, dst, []channel.Platform{channel.PlatformNoArch}, filter.Mode{})
	assert.NilError(t, Mirror(context.Background(), job))

	first := readDestRepodata(t, dst, "noarch")
	statA, err := os.Stat(filepath.Join(dst, "noarch", "a-1.0-0.tar.bz2"))
	assert.NilError(t, err)

	// make any rewrite observable
	time.Sleep(10 * time.Millisecond)

	assert.NilError(t, Mirror(context.Background(), job))

	second := readDestRepodata(t, dst, "noarch")
	raw1, err := first.Marshal()
	assert.NilError(t, err)
	raw2, err := second.Marshal()
	assert.NilError(t, err)
	assert.DeepEqual(t, raw1, raw2)

	statAAgain, err := os.Stat(filepath.Join(dst, "noarch", "a-1.0-0.tar.bz2"))
	assert.NilError(t, err)
	assert.Equal(t, statA.ModTime(), statAAgain.ModTime())
}

func TestMirrorExcludeByGlob(t *testing.T) {
	t.Parallel()

	src := writeSourceChannel(t)
	dst := t.TempDir()

	rule, err := filter.NewGlobRule("a*", "")
	assert.NilError(t, err)

	job := fileJob(t, src, dst, []channel.Platform{channel.PlatformNoArch}, filter.NewMode(nil, []filter.Rule{rule}))
	assert.NilError(t, Mirror(context.Background(), job))

	if _, err := os.Stat(filepath.Join(dst, "noarch", "a-1.0-0.tar.bz2")); !errors.Is(err, os.ErrNotExist) {
		t.Error("excluded archive was mirrored")
	}
	if _, err := os.Stat(filepath.Join(dst, "noarch", "b-2.0-0.conda")); err != nil {
		t.Error("non-excluded archive missing")
	}

	rd := readDestRepodata(t, dst, "noarch")
	if _, ok := rd.Packages["a-1.0-0.tar.bz2"]; ok {
		t.Error("excluded archive still referenced by the manifest")
	}
	if _, ok := rd.CondaPackages["b-2.0-0.conda"]; !ok {
		t.Error("kept archive missing from the manifest")
	}
}

func TestMirrorPrunesStaleArchives(t *testing.T) {
	t.Parallel()

	src := writeSourceChannel(t)
	dst := t.TempDir()

	assert.NilError(t, os.MkdirAll(filepath.Join(dst, "noarch"), 0755))
	assert.NilError(t, os.WriteFile(filepath.Join(dst, "noarch", "c-9.9-0.tar.bz2"), []byte("stale"), 0644))
	// non-archive files are invisible to the planner
	assert.NilError(t, os.WriteFile(filepath.Join(dst, "noarch", "notes.txt"), []byte("keep me"), 0644))

	job := fileJob(t, src, dst, []channel.Platform{channel.PlatformNoArch}, filter.Mode{})
	assert.NilError(t, Mirror(context.Background(), job))

	if _, err := os.Stat(filepath.Join(dst, "noarch", "c-9.9-0.tar.bz2")); !errors.Is(err, os.ErrNotExist) {
		t.Error("stale archive not deleted")
	}
	if _, err := os.Stat(filepath.Join(dst, "noarch", "notes.txt")); err != nil {
		t.Error("non-archive file was touched")
	}

	rd := readDestRepodata(t, dst, "noarch")
	if _, ok := rd.Packages["c-9.9-0.tar.bz2"]; ok {
		t.Error("stale archive referenced by the manifest")
	}
}

func TestMirrorEmptySourceManifest(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeSubdir(t, src, "noarch", nil, nil)

	dst := t.TempDir()
	assert.NilError(t, os.MkdirAll(filepath.Join(dst, "noarch"), 0755))
	assert.NilError(t, os.WriteFile(filepath.Join(dst, "noarch", "c-9.9-0.tar.bz2"), []byte("stale"), 0644))

	job := fileJob(t, src, dst, []channel.Platform{channel.PlatformNoArch}, filter.Mode{})
	assert.NilError(t, Mirror(context.Background(), job))

	if _, err := os.Stat(filepath.Join(dst, "noarch", "c-9.9-0.tar.bz2")); !errors.Is(err, os.ErrNotExist) {
		t.Error("destination archive kept despite empty source manifest")
	}

	rd := readDestRepodata(t, dst, "noarch")
	assert.Equal(t, len(rd.Packages), 0)
	assert.Equal(t, len(rd.CondaPackages), 0)
}

func TestMirrorIntegrityFailure(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeSubdir(t, src, "noarch", map[string]repodata.PackageRecord{
		"a-1.0-0.tar.bz2": {Name: "a", Version: "1.0", Build: "0", SHA256: digest([]byte("advertised-bytes"))},
	}, map[string][]byte{
		"a-1.0-0.tar.bz2": []byte("served-bytes"),
	})

	dst := t.TempDir()
	job := fileJob(t, src, dst, []channel.Platform{channel.PlatformNoArch}, filter.Mode{})

	err := Mirror(context.Background(), job)
	assert.Assert(t, err != nil)

	var ierr *errorpkg.IntegrityError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected IntegrityError, got %T: %v", err, err)
	}
	assert.Equal(t, ierr.Filename, "a-1.0-0.tar.bz2")

	// the manifest must not be written for a failed subdir
	if _, err := os.Stat(filepath.Join(dst, "noarch", "repodata.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("manifest written despite integrity failure")
	}
}

func TestMirrorDiscoversSubdirsOverHTTP(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeSubdir(t, src, "noarch", map[string]repodata.PackageRecord{
		"b-2.0-0.conda": {Name: "b", Version: "2.0", Build: "0"},
	}, map[string][]byte{
		"b-2.0-0.conda": archiveB,
	})
	writeSubdir(t, src, "linux-64", map[string]repodata.PackageRecord{
		"a-1.0-0.tar.bz2": {Name: "a", Version: "1.0", Build: "0", SHA256: digest(archiveA)},
	}, map[string][]byte{
		"a-1.0-0.tar.bz2": archiveA,
	})

	server := httptest.NewServer(http.FileServer(http.Dir(src)))
	defer server.Close()

	dst := t.TempDir()
	job := fileJob(t, server.URL, dst, nil, filter.Mode{})
	assert.NilError(t, Mirror(context.Background(), job))

	var mirrored []string
	dirents, err := os.ReadDir(dst)
	assert.NilError(t, err)
	for _, dirent := range dirents {
		mirrored = append(mirrored, dirent.Name())
	}
	sort.Strings(mirrored)
	assert.DeepEqual(t, mirrored, []string{"linux-64", "noarch"})

	if _, err := os.Stat(filepath.Join(dst, "linux-64", "a-1.0-0.tar.bz2")); err != nil {
		t.Error("linux-64 archive missing")
	}
	if _, err := os.Stat(filepath.Join(dst, "noarch", "b-2.0-0.conda")); err != nil {
		t.Error("noarch archive missing")
	}
}
