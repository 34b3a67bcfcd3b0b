// Package channel abstracts conda channel references and their URL layout.
package channel

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	errorpkg "github.com/condaops/conda-mirror/error"
)

// defaultAliasRoot is the base URL against which bare channel names are
// resolved.
const defaultAliasRoot = "https://conda.anaconda.org/"

// repodataFile is the manifest filename within each platform subdirectory.
const repodataFile = "repodata.json"

// Ref is a resolved reference to a conda channel. Its base URL always ends
// with a slash so that subdir and package URLs join below it.
type Ref struct {
	raw  string
	base *url.URL
}

// ParseRef resolves given string into a channel reference. Accepted forms
// are URLs with file, http, https or s3 schemes, bare channel names resolved
// against the default channel alias, and local paths which resolve to
// absolute file URLs.
func ParseRef(s string) (*Ref, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty channel reference", errorpkg.ErrResolve)
	}

	if scheme, _, found := strings.Cut(s, "://"); found {
		switch scheme {
		case "file", "http", "https", "s3":
		default:
			return nil, fmt.Errorf("%w: scheme %q in %q", errorpkg.ErrResolve, scheme, s)
		}

		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errorpkg.ErrResolve, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		return &Ref{raw: s, base: u}, nil
	}

	// Relative and absolute paths become file URLs.
	if strings.ContainsAny(s, "/\\") || s == "." || s == ".." {
		abs, err := filepath.Abs(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errorpkg.ErrResolve, err)
		}
		u := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs) + "/"}
		return &Ref{raw: s, base: u}, nil
	}

	// Bare names resolve against the channel alias.
	u, err := url.Parse(defaultAliasRoot + s + "/")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errorpkg.ErrResolve, err)
	}
	return &Ref{raw: s, base: u}, nil
}

// Scheme returns the URL scheme of the resolved channel.
func (r *Ref) Scheme() string {
	return r.base.Scheme
}

// BaseURL returns the channel base URL. It always ends with a slash.
func (r *Ref) BaseURL() *url.URL {
	clone := *r.base
	return &clone
}

// IsLocal reports whether the channel is on the local filesystem.
func (r *Ref) IsLocal() bool {
	return r.base.Scheme == "file"
}

// LocalPath returns the filesystem path of a file channel.
func (r *Ref) LocalPath() (string, error) {
	if !r.IsLocal() {
		return "", fmt.Errorf("%w: %q is not a file channel", errorpkg.ErrResolve, r.raw)
	}
	return filepath.FromSlash(strings.TrimSuffix(r.base.Path, "/")), nil
}

// SubdirURL returns the URL of given platform subdirectory, with a trailing
// slash.
func (r *Ref) SubdirURL(platform Platform) *url.URL {
	return r.join(string(platform) + "/")
}

// RepodataURL returns the URL of the repodata.json manifest for given
// platform.
func (r *Ref) RepodataURL(platform Platform) *url.URL {
	return r.join(string(platform) + "/" + repodataFile)
}

// PackageURL returns the URL of given package archive within a platform
// subdirectory.
func (r *Ref) PackageURL(platform Platform, filename string) *url.URL {
	return r.join(string(platform) + "/" + filename)
}

func (r *Ref) join(rel string) *url.URL {
	clone := *r.base
	clone.Path = clone.Path + rel
	return &clone
}

// String is the fmt.Stringer implementation of Ref. It prints the reference
// as given on the command line.
func (r *Ref) String() string {
	return r.raw
}
