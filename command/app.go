// Package command implements the conda-mirror command line interface.
package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/condaops/conda-mirror/log"
	"github.com/condaops/conda-mirror/version"
)

const appName = "conda-mirror"

var appHelpTemplate = `Name:
	{{.Name}} - {{.Usage}}

Usage:
	{{.Name}} [options]

Options:
	{{range .VisibleFlags}}{{.}}
	{{end}}
Examples:
	01. Mirror a channel to a local directory
		> conda-mirror --source conda-forge --destination ./mirror

	02. Mirror selected subdirs to an S3 bucket
		> conda-mirror --source https://conda.anaconda.org/bioconda --destination s3://bucket/bioconda \
			--subdir linux-64 --subdir noarch \
			--s3-endpoint-url-destination https://s3.example.com --s3-region-destination eu-central-1 \
			--s3-force-path-style-destination

	03. Mirror with a configuration file
		> conda-mirror -c mirror.yaml

`

var app = &cli.App{
	Name:                 appName,
	Usage:                "mirror conda channels between filesystems, HTTP servers and S3 buckets",
	CustomAppHelpTemplate: appHelpTemplate,
	Version:              version.GitSummary,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Usage: "the channel to mirror from (name, path or URL)",
		},
		&cli.StringFlag{
			Name:  "destination",
			Usage: "the channel to mirror to (path or file/s3 URL)",
		},
		&cli.StringSliceFlag{
			Name:  "subdir",
			Usage: "platform subdirectory to mirror; repeat for several (default: probe the source)",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "the YAML configuration file to use",
		},
		&cli.StringFlag{
			Name:  "s3-endpoint-url-source",
			Usage: "the S3 endpoint URL of the source channel",
		},
		&cli.StringFlag{
			Name:  "s3-region-source",
			Usage: "the S3 region of the source channel",
		},
		&cli.BoolFlag{
			Name:  "s3-force-path-style-source",
			Usage: "use path style instead of virtual host style for the source",
		},
		&cli.StringFlag{
			Name:  "s3-endpoint-url-destination",
			Usage: "the S3 endpoint URL of the destination channel",
		},
		&cli.StringFlag{
			Name:  "s3-region-destination",
			Usage: "the S3 region of the destination channel",
		},
		&cli.BoolFlag{
			Name:  "s3-force-path-style-destination",
			Usage: "use path style instead of virtual host style for the destination",
		},
		&cli.StringFlag{
			Name:    "s3-access-key-id-source",
			Usage:   "the access key ID for the source bucket",
			EnvVars: []string{"S3_ACCESS_KEY_ID_SOURCE"},
		},
		&cli.StringFlag{
			Name:    "s3-secret-access-key-source",
			Usage:   "the secret access key for the source bucket",
			EnvVars: []string{"S3_SECRET_ACCESS_KEY_SOURCE"},
		},
		&cli.StringFlag{
			Name:    "s3-session-token-source",
			Usage:   "the session token for the source bucket",
			EnvVars: []string{"S3_SESSION_TOKEN_SOURCE"},
		},
		&cli.StringFlag{
			Name:    "s3-access-key-id-destination",
			Usage:   "the access key ID for the destination bucket",
			EnvVars: []string{"S3_ACCESS_KEY_ID_DESTINATION"},
		},
		&cli.StringFlag{
			Name:    "s3-secret-access-key-destination",
			Usage:   "the secret access key for the destination bucket",
			EnvVars: []string{"S3_SECRET_ACCESS_KEY_DESTINATION"},
		},
		&cli.StringFlag{
			Name:    "s3-session-token-destination",
			Usage:   "the session token for the destination bucket",
			EnvVars: []string{"S3_SESSION_TOKEN_DESTINATION"},
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "enable JSON formatted output",
		},
		&cli.GenericFlag{
			Name: "log",
			Value: &EnumValue{
				Enum:    []string{"trace", "debug", "info", "error"},
				Default: "info",
			},
			Usage: "log level: (trace, debug, info, error)",
		},
	},
	Before: func(c *cli.Context) error {
		log.Init(c.String("log"), c.Bool("json"))
		return nil
	},
	OnUsageError: func(c *cli.Context, err error, isSubcommand bool) error {
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", "Incorrect Usage:", err.Error())
			_, _ = fmt.Fprintf(os.Stderr, "See '%s --help' for usage\n", appName)
			return err
		}
		return nil
	},
	Action: func(c *cli.Context) error {
		return NewMirrorCommand(c).Run(c.Context)
	},
	After: func(c *cli.Context) error {
		log.Close()
		return nil
	},
}

// Main is the entrypoint function to run the application.
func Main(ctx context.Context, args []string) error {
	return app.RunContext(ctx, args)
}
