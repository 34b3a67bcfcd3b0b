package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/condaops/conda-mirror/auth"
	"github.com/condaops/conda-mirror/channel"
	errorpkg "github.com/condaops/conda-mirror/error"
	"github.com/condaops/conda-mirror/filter"
	"github.com/condaops/conda-mirror/log"
	"github.com/condaops/conda-mirror/mirror"
	"github.com/condaops/conda-mirror/progressbar"
	"github.com/condaops/conda-mirror/storage"
)

// MirrorCommand holds one invocation's flags and states.
type MirrorCommand struct {
	src        string
	dst        string
	subdirs    []string
	configPath string
	json       bool

	srcS3       sideS3Flags
	dstS3       sideS3Flags
	fullCommand string
}

// sideS3Flags carries one side's S3 flags as given on the command line.
type sideS3Flags struct {
	endpointURL    string
	region         string
	forcePathStyle bool

	accessKeyID     string
	secretAccessKey string
	sessionToken    string
}

// NewMirrorCommand creates MirrorCommand from cli.Context.
func NewMirrorCommand(c *cli.Context) MirrorCommand {
	return MirrorCommand{
		src:        c.String("source"),
		dst:        c.String("destination"),
		subdirs:    c.StringSlice("subdir"),
		configPath: c.String("config"),
		json:       c.Bool("json"),

		srcS3: sideS3Flags{
			endpointURL:     c.String("s3-endpoint-url-source"),
			region:          c.String("s3-region-source"),
			forcePathStyle:  c.Bool("s3-force-path-style-source"),
			accessKeyID:     c.String("s3-access-key-id-source"),
			secretAccessKey: c.String("s3-secret-access-key-source"),
			sessionToken:    c.String("s3-session-token-source"),
		},
		dstS3: sideS3Flags{
			endpointURL:     c.String("s3-endpoint-url-destination"),
			region:          c.String("s3-region-destination"),
			forcePathStyle:  c.Bool("s3-force-path-style-destination"),
			accessKeyID:     c.String("s3-access-key-id-destination"),
			secretAccessKey: c.String("s3-secret-access-key-destination"),
			sessionToken:    c.String("s3-session-token-destination"),
		},
		fullCommand: commandFromContext(c),
	}
}

// Run assembles the mirror job from flags and configuration and executes
// it.
func (m MirrorCommand) Run(ctx context.Context) error {
	job, err := m.buildJob()
	if err != nil {
		printError(m.fullCommand, "mirror", err)
		return err
	}

	log.Info(log.InfoMessage{
		Operation: "mirror",
		Subdir:    fmt.Sprintf("%v -> %v", job.Source, job.Destination),
	})

	if err := mirror.Mirror(ctx, job); err != nil {
		if !errorpkg.IsCancelation(err) {
			printError(m.fullCommand, "mirror", err)
		}
		return err
	}
	return nil
}

func (m MirrorCommand) buildJob() (*mirror.Job, error) {
	config := &YamlConfig{}
	if m.configPath != "" {
		loaded, err := ReadConfig(m.configPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errorpkg.ErrConfig, err)
		}
		config = loaded
	}

	src, dst := m.src, m.dst
	switch {
	case src != "" && dst != "":
	case src == "" && dst == "":
		src, dst = config.Source, config.Destination
		if src == "" || dst == "" {
			return nil, fmt.Errorf("%w: source and destination must be specified", errorpkg.ErrConfig)
		}
	default:
		return nil, fmt.Errorf("%w: source and destination must be given together", errorpkg.ErrConfig)
	}

	srcRef, err := channel.ParseRef(src)
	if err != nil {
		return nil, err
	}
	dstRef, err := channel.ParseRef(dst)
	if err != nil {
		return nil, err
	}

	subdirNames := m.subdirs
	if len(subdirNames) == 0 {
		subdirNames = config.Subdirs
	}
	var subdirs []channel.Platform
	for _, name := range subdirNames {
		platform, err := channel.ParsePlatform(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errorpkg.ErrConfig, err)
		}
		subdirs = append(subdirs, platform)
	}

	include, err := Rules(config.Include)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errorpkg.ErrConfig, err)
	}
	exclude, err := Rules(config.Exclude)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errorpkg.ErrConfig, err)
	}

	srcOpts, err := m.srcS3.options("source", config.S3Config.source())
	if err != nil {
		return nil, err
	}
	dstOpts, err := m.dstS3.options("destination", config.S3Config.destination())
	if err != nil {
		return nil, err
	}

	srcCreds, err := m.srcS3.credentials("source")
	if err != nil {
		return nil, err
	}
	dstCreds, err := m.dstS3.credentials("destination")
	if err != nil {
		return nil, err
	}

	var progress progressbar.ProgressBar = &progressbar.Mirror{}
	if m.json {
		progress = progressbar.NoOp{}
	}

	return &mirror.Job{
		Source:                 srcRef,
		Destination:            dstRef,
		Subdirs:                subdirs,
		Mode:                   filter.NewMode(include, exclude),
		S3Source:               srcOpts,
		S3Destination:          dstOpts,
		SourceCredentials:      srcCreds,
		DestinationCredentials: dstCreds,
		Auth:                   auth.Chain{auth.Env{}},
		Progress:               progress,
	}, nil
}

// options merges one side's CLI endpoint flags with the configuration file.
// The endpoint URL and region flags are given together or not at all; the
// path-style flag takes effect only alongside them. CLI wins over YAML.
func (f sideS3Flags) options(side string, fromConfig *S3Config) (*storage.Options, error) {
	given := 0
	if f.endpointURL != "" {
		given++
	}
	if f.region != "" {
		given++
	}

	switch {
	case f.endpointURL != "" && f.region != "":
		return &storage.Options{
			Endpoint:       f.endpointURL,
			Region:         f.region,
			ForcePathStyle: f.forcePathStyle,
		}, nil
	case given != 0:
		return nil, fmt.Errorf("%w: the S3 endpoint URL and region of the %s must be given together", errorpkg.ErrConfig, side)
	default:
		return fromConfig.Options(), nil
	}
}

// credentials validates one side's static credential flags.
func (f sideS3Flags) credentials(side string) (*storage.Credentials, error) {
	switch {
	case f.accessKeyID != "" && f.secretAccessKey != "":
		return &storage.Credentials{
			AccessKeyID:     f.accessKeyID,
			SecretAccessKey: f.secretAccessKey,
			SessionToken:    f.sessionToken,
		}, nil
	case f.accessKeyID != "" || f.secretAccessKey != "" || f.sessionToken != "":
		return nil, fmt.Errorf("%w: the S3 access key ID and secret access key of the %s must be given together", errorpkg.ErrConfig, side)
	default:
		return nil, nil
	}
}

func (s *S3ConfigSourceDest) source() *S3Config {
	if s == nil {
		return nil
	}
	return s.Source
}

func (s *S3ConfigSourceDest) destination() *S3Config {
	if s == nil {
		return nil
	}
	return s.Destination
}
