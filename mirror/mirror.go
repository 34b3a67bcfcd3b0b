// Package mirror implements the channel mirroring engine: per-subdir
// reconciliation, bounded-parallel verified transfer and manifest rewrite.
package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/condaops/conda-mirror/channel"
	errorpkg "github.com/condaops/conda-mirror/error"
	"github.com/condaops/conda-mirror/fetch"
	"github.com/condaops/conda-mirror/log"
	"github.com/condaops/conda-mirror/progressbar"
	"github.com/condaops/conda-mirror/repodata"
	"github.com/condaops/conda-mirror/storage"
)

// maxParallel is the process-wide permit pool size gating package-level
// operations. It bounds open sockets and file handles regardless of how
// many subdirs are active.
const maxParallel = 32

// Mirror runs one mirror job to completion. The first failing subdir
// cancels the remaining ones and its error is returned; subdirs that
// finished earlier keep their updated manifests.
func Mirror(ctx context.Context, job *Job) error {
	client := fetch.NewClient(fetch.Config{
		S3Options:     job.S3Source,
		S3Credentials: job.SourceCredentials,
		Auth:          job.Auth,
	})

	dstCreds := job.DestinationCredentials
	if dstCreds == nil && job.Auth != nil {
		if creds, ok := job.Auth.Lookup(job.Destination.BaseURL().String()); ok {
			dstCreds = creds
		}
	}
	store, err := storage.NewClient(ctx, job.Destination, job.S3Destination, dstCreds)
	if err != nil {
		return err
	}

	subdirs, err := discoverSubdirs(ctx, job, client)
	if err != nil {
		return err
	}
	log.Info(log.InfoMessage{
		Operation: "mirror",
		Subdir:    fmt.Sprintf("%d subdirs", len(subdirs)),
	})

	progress := job.Progress
	if progress == nil {
		progress = progressbar.NoOp{}
	}
	progress.Start()
	defer progress.Finish()

	permits := semaphore.NewWeighted(maxParallel)

	g, ctx := errgroup.WithContext(ctx)
	for _, subdir := range subdirs {
		subdir := subdir
		g.Go(func() error {
			return mirrorSubdir(ctx, job, client, store, subdir, permits, progress)
		})
	}
	return g.Wait()
}

// mirrorSubdir runs the pipeline of one platform subdirectory: fetch and
// parse the source manifest, list the destination, plan, delete, add, and
// write the rewritten manifest last so a reader that sees the new manifest
// sees all referenced archives.
func mirrorSubdir(
	ctx context.Context,
	job *Job,
	client *fetch.Client,
	store storage.Storage,
	subdir channel.Platform,
	permits *semaphore.Weighted,
	progress progressbar.ProgressBar,
) error {
	repodataURL := job.Source.RepodataURL(subdir)
	raw, err := client.Get(ctx, repodataURL)
	if err != nil {
		return &errorpkg.Error{Op: "fetch repodata", Subdir: subdir.String(), URL: repodataURL.String(), Err: err}
	}

	rd, err := repodata.Parse(raw, repodataURL.String())
	if err != nil {
		return err
	}
	log.Debug(log.DebugMessage{
		Operation: "repodata",
		Subdir:    subdir.String(),
		Msg:       fmt.Sprintf("fetched repodata for %s", subdir),
	})

	existing, err := store.List(ctx, subdir.String())
	if err != nil {
		return &errorpkg.Error{Op: "list", Subdir: subdir.String(), Err: err}
	}

	kept := job.Mode.Apply(rd.AllPackages())
	plan := NewPlan(kept, existing)
	progress.AddTotalObjects(len(plan.ToDelete) + len(plan.ToAdd))

	log.Info(log.InfoMessage{
		Operation: "plan",
		Subdir:    subdir.String(),
		Object:    fmt.Sprintf("%d to add, %d to delete, %d kept", len(plan.ToAdd), len(plan.ToDelete), len(kept)),
	})

	// Deletions complete before any addition starts.
	if err := runDeletes(ctx, store, subdir, plan.ToDelete, permits, progress); err != nil {
		return err
	}
	if err := runAdds(ctx, job, client, store, subdir, plan.ToAdd, permits, progress); err != nil {
		return err
	}

	out, err := rd.Rebuild(kept).Marshal()
	if err != nil {
		return &errorpkg.Error{Op: "marshal repodata", Subdir: subdir.String(), Err: err}
	}
	if err := store.Put(ctx, subdir.String()+"/"+repodata.FileName, out); err != nil {
		return &errorpkg.Error{Op: "write repodata", Subdir: subdir.String(), Err: err}
	}

	log.Info(log.InfoMessage{Operation: "done", Subdir: subdir.String()})
	return nil
}

// runDeletes removes stale archives. The first failure cancels the
// in-flight siblings of this subdir.
func runDeletes(
	ctx context.Context,
	store storage.Storage,
	subdir channel.Platform,
	filenames []string,
	permits *semaphore.Weighted,
	progress progressbar.ProgressBar,
) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, filename := range filenames {
		filename := filename
		g.Go(func() error {
			if err := permits.Acquire(ctx, 1); err != nil {
				return err
			}
			defer permits.Release(1)

			if err := store.Delete(ctx, subdir.String()+"/"+filename); err != nil {
				return &errorpkg.Error{Op: "delete", Subdir: subdir.String(), Filename: filename, Err: err}
			}

			log.Trace(log.InfoMessage{Operation: "delete", Subdir: subdir.String(), Object: filename})
			progress.IncrementCompletedObjects()
			return nil
		})
	}
	return g.Wait()
}

// runAdds transfers missing archives: fetch, verify against the declared
// sha256 when present, write. The permit is held from fetch through write.
func runAdds(
	ctx context.Context,
	job *Job,
	client *fetch.Client,
	store storage.Storage,
	subdir channel.Platform,
	packages map[string]repodata.PackageRecord,
	permits *semaphore.Weighted,
	progress progressbar.ProgressBar,
) error {
	g, ctx := errgroup.WithContext(ctx)
	for filename, record := range packages {
		filename, record := filename, record
		g.Go(func() error {
			if err := permits.Acquire(ctx, 1); err != nil {
				return err
			}
			defer permits.Release(1)

			packageURL := job.Source.PackageURL(subdir, filename)
			body, err := client.Get(ctx, packageURL)
			if err != nil {
				return &errorpkg.Error{Op: "fetch", Subdir: subdir.String(), Filename: filename, URL: packageURL.String(), Err: err}
			}

			if record.SHA256 != "" {
				digest := sha256.Sum256(body)
				got := hex.EncodeToString(digest[:])
				if !strings.EqualFold(got, record.SHA256) {
					return &errorpkg.IntegrityError{
						Filename: filename,
						Want:     strings.ToLower(record.SHA256),
						Got:      got,
					}
				}
			}

			if err := store.Put(ctx, subdir.String()+"/"+filename, body); err != nil {
				return &errorpkg.Error{Op: "put", Subdir: subdir.String(), Filename: filename, Err: err}
			}

			log.Trace(log.InfoMessage{Operation: "add", Subdir: subdir.String(), Object: filename})
			progress.IncrementCompletedObjects()
			return nil
		})
	}
	return g.Wait()
}
