// Package s3 implements core.Store on an S3-compatible bucket (AWS S3 or
// MinIO). Each record is one JSON object at <prefix><escaped id>.json; ids
// are path-escaped so every record key sits directly under the prefix.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/juju/errors"

	"taskbridge/internal/infra/awsutil"
	"taskbridge/internal/store/core"
	"taskbridge/pkg/domain"
)

const (
	defaultPrefix = "tasks/"
	objectSuffix  = ".json"
)

// Config holds explicit construction parameters.
type Config struct {
	Bucket    string
	Prefix    string // default "tasks/"
	PathStyle bool
	AWS       awsutil.Config
}

// Store implements core.Store using a single bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3 record store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.NotValidf("empty s3 bucket")
	}
	awsCfg, err := awsutil.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if ep := cfg.AWS.BaseEndpoint(); ep != nil {
			o.BaseEndpoint = ep
		}
	})
	return newWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func newWithClient(client *s3.Client, bucket, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Driver returns the store driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

func (s *Store) key(id string) string { return s.prefix + url.PathEscape(id) + objectSuffix }

// idFromKey accepts only keys directly under the prefix.
func (s *Store) idFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, s.prefix) || !strings.HasSuffix(key, objectSuffix) {
		return "", false
	}
	escaped := strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), objectSuffix)
	if escaped == "" || strings.Contains(escaped, "/") {
		return "", false
	}
	id, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	return id, true
}

// Put writes the record object, overwriting any previous version.
func (s *Store) Put(ctx context.Context, rec domain.Record) error {
	if err := core.ValidateRecord(rec); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return core.Unavailable(core.DriverS3, "put", rec.ID, err)
	}
	key := s.key(rec.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return core.Unavailable(core.DriverS3, "put", rec.ID, awsutil.Describe(err))
}

// Delete removes the record object. S3 deletes are silent for missing keys,
// so existence is checked with a HEAD first.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	key := s.key(id)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, core.Unavailable(core.DriverS3, "delete", id, awsutil.Describe(err))
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, core.Unavailable(core.DriverS3, "delete", id, awsutil.Describe(err))
	}
	return true, nil
}

// List reads every record object under the prefix.
func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	out := []domain.Record{}
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &s.prefix, ContinuationToken: token})
		if err != nil {
			return nil, core.Unavailable(core.DriverS3, "list", "", awsutil.Describe(err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id, ok := s.idFromKey(key)
			if !ok {
				continue
			}
			rec, err := s.get(ctx, key, id)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if page.IsTruncated != nil && *page.IsTruncated && page.NextContinuationToken != nil {
			token = page.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) get(ctx context.Context, key, id string) (domain.Record, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return domain.Record{}, core.Unavailable(core.DriverS3, "list", id, awsutil.Describe(err))
	}
	defer func() { _ = obj.Body.Close() }()
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return domain.Record{}, core.Unavailable(core.DriverS3, "list", id, err)
	}
	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Record{}, core.Unavailable(core.DriverS3, "list", id, errors.Annotate(err, "decode object"))
	}
	rec.ID = id
	return rec, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	switch awsutil.ErrorCode(err) {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
