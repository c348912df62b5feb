// Package source fetches the raw bytes of a dataset from a local path, an
// HTTP(S) URL, an S3 object or a browser upload.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/KaramelBytes/labelsift/internal/cache"
)

// DefaultMaxBytes bounds remote downloads and uploads.
const DefaultMaxBytes int64 = 100 << 20

// Source is a fetched dataset source.
type Source struct {
	// Name is the base file name, used for format detection and export names.
	Name string
	// Key identifies the content for caching.
	Key  string
	Data []byte
}

// ObjectGetter is the subset of the S3 client used here.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures an Opener.
type Options struct {
	S3Region   string
	S3Endpoint string
	// HTTPTimeout applies to http(s) downloads.
	HTTPTimeout time.Duration
	MaxBytes    int64
}

// Opener resolves source references. The S3 client is created on first use.
type Opener struct {
	opts Options
	http *http.Client

	s3Once sync.Once
	s3     ObjectGetter
	s3Err  error
}

func NewOpener(opts Options) *Opener {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 2 * time.Minute
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Opener{opts: opts, http: &http.Client{Timeout: opts.HTTPTimeout}}
}

// WithS3Client injects the S3 client, mainly for tests.
func (o *Opener) WithS3Client(c ObjectGetter) *Opener {
	o.s3Once.Do(func() {})
	o.s3 = c
	return o
}

// Open fetches ref: s3://bucket/key, http(s)://..., or a local path.
func (o *Opener) Open(ctx context.Context, ref string) (*Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("open source: no source given")
	}
	u, err := url.Parse(ref)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "s3":
			return o.openS3(ctx, u)
		case "http", "https":
			return o.openHTTP(ctx, u)
		}
	}
	return o.openFile(ref)
}

// Identity returns the cache key Open would give ref, without reading or
// downloading it. Local files are only stat'ed. Remote references are keyed by
// the reference itself, so their content is fetched once per cache lifetime.
func (o *Opener) Identity(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("open source: no source given")
	}
	if isRemote(ref) {
		return cache.RefKey(ref), nil
	}
	key, err := cache.FileKey(ref)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	return key, nil
}

func isRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "s3", "http", "https":
		return true
	}
	return false
}

func (o *Opener) openFile(p string) (*Source, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	name := filepath.Base(p)
	key, err := cache.FileKey(p)
	if err != nil {
		key = cache.SourceKey(name, data)
	}
	return &Source{Name: name, Key: key, Data: data}, nil
}

func (o *Opener) openHTTP(ctx context.Context, u *url.URL) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open source: download %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open source: download %s failed with status %d", u.Redacted(), resp.StatusCode)
	}
	data, err := readLimited(resp.Body, o.opts.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	name := nameFromPath(u.Path, "download.csv")
	return &Source{Name: name, Key: cache.SourceKey(name, data), Data: data}, nil
}

func (o *Opener) s3Client(ctx context.Context) (ObjectGetter, error) {
	o.s3Once.Do(func() {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(o.opts.S3Region))
		if err != nil {
			o.s3Err = fmt.Errorf("load AWS config: %w", err)
			return
		}
		var opts []func(*s3.Options)
		if o.opts.S3Endpoint != "" {
			// MinIO and other S3-compatible stores
			endpoint := o.opts.S3Endpoint
			opts = append(opts, func(so *s3.Options) {
				so.BaseEndpoint = aws.String(endpoint)
				so.UsePathStyle = true
			})
		}
		o.s3 = s3.NewFromConfig(awsCfg, opts...)
	})
	return o.s3, o.s3Err
}

func (o *Opener) openS3(ctx context.Context, u *url.URL) (*Source, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("open source: %q is not of the form s3://bucket/key", u.String())
	}
	client, err := o.s3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("open source: get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := readLimited(out.Body, o.opts.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	name := nameFromPath(key, key)
	return &Source{Name: name, Key: cache.SourceKey(name, data), Data: data}, nil
}

// FromUpload reads an uploaded file, at most maxBytes long.
func FromUpload(name string, r io.Reader, maxBytes int64) (*Source, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := readLimited(r, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	name = nameFromPath(name, "upload.csv")
	return &Source{Name: name, Key: cache.SourceKey(name, data), Data: data}, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("source is larger than %d bytes", max)
	}
	return data, nil
}

func nameFromPath(p, fallback string) string {
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		return fallback
	}
	return base
}
