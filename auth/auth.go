// Package auth provides credential lookup for channels whose invocation
// carries no explicit credentials.
package auth

import (
	"net/url"
	"os"

	"github.com/condaops/conda-mirror/storage"
)

// Store looks up credentials for a channel URL. Implementations return
// ok=false when they hold nothing for the URL; the caller then falls back to
// the SDK default credential chain.
type Store interface {
	Lookup(rawURL string) (*storage.Credentials, bool)
}

// Static is a Store backed by a fixed host-to-credentials map.
type Static map[string]*storage.Credentials

// Lookup implements Store.
func (s Static) Lookup(rawURL string) (*storage.Credentials, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	creds, ok := s[u.Host]
	return creds, ok
}

// Env is a Store reading the ambient S3 credential environment variables.
type Env struct{}

// Lookup implements Store. The same credentials are returned for every URL.
func (Env) Lookup(string) (*storage.Credentials, bool) {
	accessKeyID := os.Getenv("S3_ACCESS_KEY_ID")
	secretAccessKey := os.Getenv("S3_SECRET_ACCESS_KEY")
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, false
	}
	return &storage.Credentials{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    os.Getenv("S3_SESSION_TOKEN"),
	}, true
}

// Chain is a Store trying each member in order.
type Chain []Store

// Lookup implements Store.
func (c Chain) Lookup(rawURL string) (*storage.Credentials, bool) {
	for _, store := range c {
		if creds, ok := store.Lookup(rawURL); ok {
			return creds, ok
		}
	}
	return nil, false
}
