// Package storage implements destination object store operations for s3 and
// fs.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/condaops/conda-mirror/channel"
	errorpkg "github.com/condaops/conda-mirror/error"
)

// Storage is the interface for destination store operations. Implementations
// must be safe for concurrent use.
type Storage interface {
	// List returns the entries directly under given prefix. A missing
	// prefix yields an empty listing, not an error.
	List(ctx context.Context, prefix string) ([]*Entry, error)

	// Put writes body under given key, overwriting any existing object.
	// The write is atomic from a reader's perspective where the backend
	// supports it.
	Put(ctx context.Context, key string, body []byte) error

	// Delete removes the object under given key. Deleting an absent key
	// succeeds.
	Delete(ctx context.Context, key string) error
}

// Entry is a single listing result, named relative to the listed prefix.
type Entry struct {
	Name  string
	IsDir bool
}

// Options carries the S3 endpoint settings of one side, source or
// destination.
type Options struct {
	Endpoint       string
	Region         string
	ForcePathStyle bool
}

// Credentials is a static S3 credential set. Its formatted representations
// are redacted; secrets must never reach logs or error contexts.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// String is the fmt.Stringer implementation of Credentials. It redacts all
// fields.
func (c Credentials) String() string {
	token := "none"
	if c.SessionToken != "" {
		token = "***"
	}
	return fmt.Sprintf("Credentials{access_key_id: ***, secret_access_key: ***, session_token: %s}", token)
}

// GoString redacts %#v formatting as well.
func (c Credentials) GoString() string {
	return c.String()
}

// NewClient returns a Storage for given destination channel. The storage
// implementation is inferred from the channel scheme.
func NewClient(ctx context.Context, dst *channel.Ref, opts *Options, creds *Credentials) (Storage, error) {
	switch dst.Scheme() {
	case "file":
		root, err := dst.LocalPath()
		if err != nil {
			return nil, err
		}
		return NewFilesystem(root)
	case "s3":
		base := dst.BaseURL()
		bucket := base.Host
		if bucket == "" {
			return nil, fmt.Errorf("no bucket in destination %q", dst)
		}
		prefix := strings.Trim(base.Path, "/")
		return newS3Storage(ctx, bucket, prefix, opts, creds)
	default:
		return nil, fmt.Errorf("%w: %q", errorpkg.ErrUnsupportedScheme, dst.Scheme())
	}
}
