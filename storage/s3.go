package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/endpoints"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/condaops/conda-mirror/log"
)

// s3MaxRetries is the retry budget of the SDK retryer for store operations.
const s3MaxRetries = 5

// Re-used AWS sessions dramatically improve performance.
var globalSessionCache = &sessionCache{
	sessions: map[sessionKey]*session.Session{},
}

// S3 is the Storage implementation backed by an S3 bucket plus key prefix.
type S3 struct {
	api    s3iface.S3API
	bucket string
	prefix string
}

// newS3Storage creates a new S3 storage client rooted at bucket and prefix.
func newS3Storage(ctx context.Context, bucket, prefix string, opts *Options, creds *Credentials) (*S3, error) {
	sess, err := NewSession(opts, creds)
	if err != nil {
		return nil, err
	}

	return &S3{
		api:    s3.New(sess),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// key returns the full object key of given store key.
func (s *S3) key(storeKey string) string {
	if s.prefix == "" {
		return storeKey
	}
	return s.prefix + "/" + storeKey
}

// List returns the entries directly under given prefix.
func (s *S3) List(ctx context.Context, prefix string) ([]*Entry, error) {
	listPrefix := s.key(prefix)
	if !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	var entries []*Entry
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	}

	err := s.api.ListObjectsV2PagesWithContext(ctx, input, func(p *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, c := range p.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(c.Prefix), listPrefix), "/")
			entries = append(entries, &Entry{Name: name, IsDir: true})
		}
		for _, c := range p.Contents {
			name := strings.TrimPrefix(aws.StringValue(c.Key), listPrefix)
			if name == "" {
				continue
			}
			entries = append(entries, &Entry{Name: name})
		}
		return !lastPage
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Put writes body under given key. S3 object writes are atomic; readers see
// either the previous object or the new one.
func (s *S3) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(body),
	})
	return err
}

// Delete removes the object under given key. S3 DeleteObject succeeds for
// absent keys.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	return err
}

type sessionKey struct {
	opts  Options
	creds Credentials
}

type sessionCache struct {
	sync.Mutex
	sessions map[sessionKey]*session.Session
}

// NewSession initializes an AWS session for given S3 settings and optional
// static credentials. When credentials are nil the SDK default chain
// applies. Sessions are cached per settings/credentials pair.
func NewSession(opts *Options, creds *Credentials) (*session.Session, error) {
	if opts == nil {
		opts = &Options{}
	}

	key := sessionKey{opts: *opts}
	if creds != nil {
		key.creds = *creds
	}

	globalSessionCache.Lock()
	defer globalSessionCache.Unlock()

	if sess, ok := globalSessionCache.sessions[key]; ok {
		return sess, nil
	}

	awsCfg := aws.NewConfig()

	if creds != nil {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		))
	}

	region := opts.Region
	if region == "" {
		region = endpoints.UsEast1RegionID
	}

	awsCfg = awsCfg.
		WithEndpoint(opts.Endpoint).
		WithRegion(region).
		WithS3ForcePathStyle(opts.ForcePathStyle)

	awsCfg.Retryer = newCustomRetryer(s3MaxRetries)

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}

	globalSessionCache.sessions[key] = sess
	return sess, nil
}

// customRetryer wraps the SDK's built in DefaultRetryer adding additional
// error codes. Such as, retry for S3 InternalError code.
type customRetryer struct {
	client.DefaultRetryer
}

func newCustomRetryer(maxRetries int) *customRetryer {
	return &customRetryer{
		DefaultRetryer: client.DefaultRetryer{
			NumMaxRetries: maxRetries,
		},
	}
}

// ShouldRetry overrides SDK's built in DefaultRetryer, adding custom retry
// logics that are not included in the SDK.
func (c *customRetryer) ShouldRetry(req *request.Request) bool {
	shouldRetry := errHasCode(req.Error, "InternalError") ||
		errHasCode(req.Error, "RequestTimeTooSkewed") ||
		errHasCode(req.Error, "SlowDown") ||
		strings.Contains(req.Error.Error(), "connection reset") ||
		strings.Contains(req.Error.Error(), "connection timed out")
	if !shouldRetry {
		shouldRetry = c.DefaultRetryer.ShouldRetry(req)
	}

	// Errors related to tokens
	if errHasCode(req.Error, "ExpiredToken") || errHasCode(req.Error, "ExpiredTokenException") || errHasCode(req.Error, "InvalidToken") {
		return false
	}

	if shouldRetry && req.Error != nil {
		err := fmt.Errorf("retryable error: %v", req.Error)
		log.Debug(log.DebugMessage{Err: err.Error()})
	}

	return shouldRetry
}

func errHasCode(err error, code string) bool {
	if err == nil || code == "" {
		return false
	}

	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		return awsErr.Code() == code
	}
	return false
}
