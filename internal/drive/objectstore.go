// Package drive implements the drive monitor (spec.md §4.6): one
// instance per bot that polls an object store, classifies paths into the
// scripts/config/KB streams, debounces by ETag, and triggers
// compile/config-sync/KB-index/website-crawl. Grounded on the teacher's
// internal/artifacts/s3_store.go (bucket/prefix/credential wiring) and
// internal/debounce/inbound.go (debounce shape).
package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fsnotify/fsnotify"

	"github.com/generalbots/botcore/pkg/models"
)

// ObjectStore is the minimal object-store transport the monitor depends
// on: list a bucket's contents with ETags, fetch an object's content.
type ObjectStore interface {
	List(ctx context.Context, bucket string) ([]models.DriveObject, error)
	Get(ctx context.Context, bucket, path string) ([]byte, error)
	HealthCheck(ctx context.Context) error
}

// S3Store is the S3-compatible ObjectStore, adapted from the teacher's
// bucket/prefix/path-style config and credential-provider wiring.
type S3Store struct {
	client     *s3.Client
	pathStyle  bool
}

// S3Config configures the S3-compatible endpoint.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3Store builds an S3Store against an S3-compatible endpoint,
// mirroring the teacher's explicit-credentials-plus-custom-endpoint
// resolver pattern rather than relying on ambient AWS config.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: cfg.AccessKeyID, SecretAccessKey: cfg.SecretAccessKey}, nil
		})),
	)
	if err != nil {
		return nil, fmt.Errorf("drive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Store{client: client, pathStyle: cfg.UsePathStyle}, nil
}

func (st *S3Store) List(ctx context.Context, bucket string) ([]models.DriveObject, error) {
	var out []models.DriveObject
	var token *string
	for {
		resp, err := st.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("drive: list %s: %w", bucket, err)
		}
		for _, obj := range resp.Contents {
			out = append(out, models.DriveObject{
				Path: aws.ToString(obj.Key),
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
				Size: aws.ToInt64(obj.Size),
			})
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return out, nil
}

func (st *S3Store) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	resp, err := st.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(path)})
	if err != nil {
		return nil, fmt.Errorf("drive: get %s/%s: %w", bucket, path, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (st *S3Store) HealthCheck(ctx context.Context) error {
	_, err := st.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err
}

// Put writes an object, used by the Files & archives verb group
// (spec.md §4.4) rather than the read-only drive monitor.
func (st *S3Store) Put(ctx context.Context, bucket, path string, data []byte) error {
	_, err := st.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("drive: put %s/%s: %w", bucket, path, err)
	}
	return nil
}

// Delete removes an object, used by the Files & archives verb group.
func (st *S3Store) Delete(ctx context.Context, bucket, path string) error {
	_, err := st.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(path)})
	if err != nil {
		return fmt.Errorf("drive: delete %s/%s: %w", bucket, path, err)
	}
	return nil
}

// LocalFileStore implements ObjectStore over a local directory tree, for
// development/single-node deployments not running against real S3
// (spec.md §9's supplemented local-filesystem drive monitor). The drive
// monitor polls it on its ticker like any other store; the
// github.com/fsnotify/fsnotify watch it opens on the root directory is
// exposed through Events, which nothing in this module reads.
type LocalFileStore struct {
	root    string
	watcher *fsnotify.Watcher
}

// NewLocalFileStore roots the store at dir (one directory per bucket
// name under it) and starts an fsnotify watch.
func NewLocalFileStore(dir string) (*LocalFileStore, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("drive: fsnotify: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		return nil, err
	}
	return &LocalFileStore{root: dir, watcher: w}, nil
}

// Events exposes the fsnotify event channel so a caller can trigger an
// immediate tick instead of waiting for the next poll interval.
func (l *LocalFileStore) Events() <-chan fsnotify.Event { return l.watcher.Events }

func (l *LocalFileStore) Close() error { return l.watcher.Close() }

func (l *LocalFileStore) List(_ context.Context, bucket string) ([]models.DriveObject, error) {
	var out []models.DriveObject
	base := filepath.Join(l.root, bucket)
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(base, path)
		rel = filepath.ToSlash(rel)
		out = append(out, models.DriveObject{
			Path: rel,
			ETag: fmt.Sprintf("%x-%d", info.ModTime().UnixNano(), info.Size()),
			Size: info.Size(),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return out, err
}

func (l *LocalFileStore) Get(_ context.Context, bucket, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.root, bucket, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("drive: read %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

func (l *LocalFileStore) HealthCheck(_ context.Context) error {
	_, err := os.Stat(l.root)
	return err
}

// Put writes an object, used by the Files & archives verb group
// (spec.md §4.4) rather than the read-only drive monitor.
func (l *LocalFileStore) Put(_ context.Context, bucket, path string, data []byte) error {
	full := filepath.Join(l.root, bucket, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("drive: put %s/%s: %w", bucket, path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("drive: put %s/%s: %w", bucket, path, err)
	}
	return nil
}

// Delete removes an object, used by the Files & archives verb group.
func (l *LocalFileStore) Delete(_ context.Context, bucket, path string) error {
	full := filepath.Join(l.root, bucket, filepath.FromSlash(path))
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("drive: delete %s/%s: %w", bucket, path, err)
	}
	return nil
}

// WriteLocal materializes an object into the local work tree, used by
// the monitor to write fetched scripts/config/KB files before compiling
// or indexing them.
func WriteLocal(workRoot, botID, relPath string, data []byte) (string, error) {
	full := filepath.Join(workRoot, botID, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return full, nil
}
