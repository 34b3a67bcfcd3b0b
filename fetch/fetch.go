// Package fetch implements integrity-preserving byte retrieval from file,
// http(s) and s3 sources.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/cenkalti/backoff/v4"

	"github.com/condaops/conda-mirror/auth"
	"github.com/condaops/conda-mirror/log"
	"github.com/condaops/conda-mirror/storage"
	"github.com/condaops/conda-mirror/version"
)

const (
	// requestTimeout bounds every single HTTP request, body read included.
	requestTimeout = 30 * time.Second

	// maxRetries is the retry budget for transient HTTP failures.
	maxRetries = 3

	// maxIdleConnsPerHost bounds the connection pool.
	maxIdleConnsPerHost = 20
)

// Config carries the source-side settings of a Client.
type Config struct {
	// S3Options applies to s3 scheme URLs.
	S3Options *storage.Options

	// S3Credentials, when set, signs s3 requests. When nil the auth store
	// and then the SDK default chain are consulted.
	S3Credentials *storage.Credentials

	// Auth is the ambient credential store, consulted only when explicit
	// credentials are absent.
	Auth auth.Store
}

// Client retrieves objects by URL, dispatching on the scheme. It is safe for
// concurrent use.
type Client struct {
	config Config
	http   *http.Client

	mu    sync.Mutex
	s3api s3iface.S3API
}

// NewClient builds a Client with a pooled HTTP transport, an identifying
// user agent and per-request timeouts.
func NewClient(config Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = maxIdleConnsPerHost

	return &Client{
		config: config,
		http: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
	}
}

// UserAgent identifies the client on the wire.
func UserAgent() string {
	return "conda-mirror/" + version.GitSummary
}

// Get returns the full object bytes of given URL.
func (c *Client) Get(ctx context.Context, u *url.URL) ([]byte, error) {
	switch u.Scheme {
	case "file":
		return os.ReadFile(filePath(u))
	case "http", "https":
		return c.httpGet(ctx, u.String())
	case "s3":
		return c.s3Get(ctx, u)
	default:
		return nil, fmt.Errorf("fetch %q: unsupported scheme %q", u, u.Scheme)
	}
}

// Head probes given URL for existence without retrieving the body.
func (c *Client) Head(ctx context.Context, u *url.URL) (bool, error) {
	switch u.Scheme {
	case "file":
		_, err := os.Stat(filePath(u))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	case "http", "https":
		return c.httpHead(ctx, u.String())
	case "s3":
		return c.s3Head(ctx, u)
	default:
		return false, fmt.Errorf("probe %q: unsupported scheme %q", u, u.Scheme)
	}
}

func filePath(u *url.URL) string {
	return filepath.FromSlash(u.Path)
}

func (c *Client) httpGet(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", UserAgent())

		resp, err := c.http.Do(req)
		if err != nil {
			// Connect and read timeouts are worth another attempt.
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("GET %s: %s", rawURL, resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("GET %s: %s", rawURL, resp.Status))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	notify := func(err error, _ time.Duration) {
		log.Debug(log.DebugMessage{Err: fmt.Sprintf("retrying: %v", err)})
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) httpHead(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// api returns the lazily-built S3 client for s3 scheme sources.
func (c *Client) api(rawURL string) (s3iface.S3API, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.s3api != nil {
		return c.s3api, nil
	}

	creds := c.config.S3Credentials
	if creds == nil && c.config.Auth != nil {
		if found, ok := c.config.Auth.Lookup(rawURL); ok {
			creds = found
		}
	}

	sess, err := storage.NewSession(c.config.S3Options, creds)
	if err != nil {
		return nil, err
	}
	c.s3api = s3.New(sess)
	return c.s3api, nil
}

func (c *Client) s3Get(ctx context.Context, u *url.URL) ([]byte, error) {
	api, err := c.api(u.String())
	if err != nil {
		return nil, err
	}

	out, err := api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (c *Client) s3Head(ctx context.Context, u *url.URL) (bool, error) {
	api, err := c.api(u.String())
	if err != nil {
		return false, err
	}

	_, err = api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		var awsErr awserr.RequestFailure
		if errors.As(err, &awsErr) && (awsErr.StatusCode() == http.StatusNotFound || awsErr.StatusCode() == http.StatusForbidden) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
