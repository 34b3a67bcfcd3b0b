package mirror

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/condaops/conda-mirror/channel"
	"github.com/condaops/conda-mirror/fetch"
	"github.com/condaops/conda-mirror/log"
)

// discoverSubdirs determines the platforms to mirror. An explicit list on
// the job short-circuits; otherwise every known platform is probed for a
// repodata.json at the source. Probes run concurrently; the returned order
// is stable but carries no meaning.
func discoverSubdirs(ctx context.Context, job *Job, client *fetch.Client) ([]channel.Platform, error) {
	if len(job.Subdirs) > 0 {
		return job.Subdirs, nil
	}

	var (
		mu    sync.Mutex
		found []channel.Platform
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, platform := range channel.AllPlatforms() {
		platform := platform
		g.Go(func() error {
			exists, err := client.Head(ctx, job.Source.RepodataURL(platform))
			if err != nil {
				return err
			}
			if exists {
				mu.Lock()
				found = append(found, platform)
				mu.Unlock()
			} else {
				log.Debug(log.DebugMessage{
					Operation: "discover",
					Subdir:    platform.String(),
					Msg:       "no repodata at source, skipping " + platform.String(),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	return found, nil
}
