package mirror

import (
	"github.com/condaops/conda-mirror/auth"
	"github.com/condaops/conda-mirror/channel"
	"github.com/condaops/conda-mirror/filter"
	"github.com/condaops/conda-mirror/progressbar"
	"github.com/condaops/conda-mirror/storage"
)

// Job is the immutable configuration of one mirror invocation. It is
// constructed once at launch and shared read-only across all worker tasks.
type Job struct {
	// Source is the channel to mirror from.
	Source *channel.Ref

	// Destination is the channel to mirror to. Its scheme must be file or
	// s3.
	Destination *channel.Ref

	// Subdirs lists the platforms to mirror. Empty means discover them by
	// probing the source.
	Subdirs []channel.Platform

	// Mode is the include/exclude filter policy.
	Mode filter.Mode

	// S3Source and S3Destination carry per-side endpoint settings for s3
	// channels.
	S3Source      *storage.Options
	S3Destination *storage.Options

	// SourceCredentials and DestinationCredentials are explicit static
	// credentials. When nil, Auth and then the SDK default chain apply.
	SourceCredentials      *storage.Credentials
	DestinationCredentials *storage.Credentials

	// Auth is consulted for credentials when the explicit ones are absent.
	Auth auth.Store

	// Progress renders operation counts. Defaults to a no-op renderer.
	Progress progressbar.ProgressBar
}
