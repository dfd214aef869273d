package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Environment variables holding object storage settings.
const (
	EndpointVar  = "FLOWLOG_S3_ENDPOINT"
	AccessKeyVar = "FLOWLOG_S3_ACCESS_KEY_ID"
	SecretKeyVar = "FLOWLOG_S3_SECRET_ACCESS_KEY"
)

const s3Scheme = "s3://"

// ErrNoEndpoint is returned when an s3:// location is used without an
// object storage endpoint configured.
var ErrNoEndpoint = errors.New("no object storage endpoint configured (set --s3.endpoint or " + EndpointVar + ")")

// Location is a parsed resource location: either a local path or an
// object in a bucket.
type Location struct {
	Path   string
	Bucket string
	Key    string
}

// IsObject reports whether the location refers to object storage.
func (l Location) IsObject() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsObject() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation accepts a local path or s3://bucket/key.
func ParseLocation(loc string) (Location, error) {
	if loc == "" {
		return Location{}, errors.New("empty location")
	}
	if !strings.HasPrefix(loc, s3Scheme) {
		return Location{Path: loc}, nil
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(loc, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, fmt.Errorf("invalid object location %q: want s3://bucket/key", loc)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// S3Config describes how to reach an S3 compatible object store.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Insecure        bool
}

// S3ConfigFromEnv reads endpoint and credentials from the environment.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Endpoint:        os.Getenv(EndpointVar),
		AccessKeyID:     os.Getenv(AccessKeyVar),
		SecretAccessKey: os.Getenv(SecretKeyVar),
	}
}

// Store opens local files and objects. The object storage client is only
// created when an s3:// location is first used.
type Store struct {
	cfg    S3Config
	client *minio.Client
}

func NewStore(cfg S3Config) *Store {
	return &Store{cfg: cfg}
}

// Open returns a reader for loc. Missing files and missing objects are
// reported as errors here rather than on first read.
func (s *Store) Open(ctx context.Context, loc string) (io.ReadCloser, error) {
	l, err := ParseLocation(loc)
	if err != nil {
		return nil, err
	}
	if !l.IsObject() {
		return os.Open(l.Path)
	}

	c, err := s.objectClient()
	if err != nil {
		return nil, err
	}
	obj, err := c.GetObject(ctx, l.Bucket, l.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", l, err)
	}
	// GetObject is lazy; Stat surfaces NoSuchKey and access errors now.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat %s: %w", l, err)
	}
	return obj, nil
}

// Upload copies the local file at path to the object location loc.
func (s *Store) Upload(ctx context.Context, loc, path string) error {
	l, err := ParseLocation(loc)
	if err != nil {
		return err
	}
	if !l.IsObject() {
		return fmt.Errorf("upload destination %q is not an s3:// location", loc)
	}

	c, err := s.objectClient()
	if err != nil {
		return err
	}
	_, err = c.FPutObject(ctx, l.Bucket, l.Key, path, minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return fmt.Errorf("put %s: %w", l, err)
	}
	return nil
}

func (s *Store) objectClient() (*minio.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if s.cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}

	c, err := minio.New(s.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.cfg.AccessKeyID, s.cfg.SecretAccessKey, ""),
		Secure: !s.cfg.Insecure,
		Region: s.cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage client: %w", err)
	}
	s.client = c
	return c, nil
}
