// Package uploader mirrors local event shards into an object store, one
// gzipped object per shard.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"

	"github.com/transitmatters/gobble/foundation/servicedate"
)

// keyPrefix is where mirrored shards land in the bucket.
const keyPrefix = "Events-live"

// ObjectStore is the destination for mirrored shards.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string, contentEncoding string) error
}

// S3Store uploads to one S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store wraps an S3 client targeting bucket.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Put implements ObjectStore.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string, contentEncoding string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String(contentType),
		ContentEncoding: aws.String(contentEncoding),
	})
	return err
}

// ShardPaths returns the shard files for one service date, relative to
// dataRoot.
func ShardPaths(dataRoot string, date servicedate.Date) ([]string, error) {
	partition := fmt.Sprintf("Year=%d/Month=%d/Day=%d", date.Year, date.Month, date.Day)
	patterns := []string{
		filepath.Join(dataRoot, "daily-rapid-data", "*", partition, "events.csv"),
		filepath.Join(dataRoot, "daily-cr-data", "*", partition, "events.csv"),
		filepath.Join(dataRoot, "daily-bus-data", "*", partition, "events.csv"),
	}
	var relative []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("scanning shards: %w", err)
		}
		for _, match := range matches {
			rel, err := filepath.Rel(dataRoot, match)
			if err != nil {
				return nil, err
			}
			relative = append(relative, rel)
		}
	}
	return relative, nil
}

// ObjectKey maps a shard's relative path to its bucket key.
func ObjectKey(relativePath string) string {
	return keyPrefix + "/" + filepath.ToSlash(relativePath) + ".gz"
}

// MirrorDate uploads every shard for date, returning how many were sent.
// Whole files are re-uploaded each run, which also repairs any trailing
// partial row a previous upload caught mid-write.
func MirrorDate(ctx context.Context, log *log.Logger, store ObjectStore, dataRoot string, date servicedate.Date) (int, error) {
	paths, err := ShardPaths(dataRoot, date)
	if err != nil {
		return 0, err
	}
	uploaded := 0
	for _, relativePath := range paths {
		contents, err := os.ReadFile(filepath.Join(dataRoot, relativePath))
		if err != nil {
			return uploaded, fmt.Errorf("reading shard %s: %w", relativePath, err)
		}
		compressed, err := gzipBytes(contents)
		if err != nil {
			return uploaded, fmt.Errorf("compressing shard %s: %w", relativePath, err)
		}
		key := ObjectKey(relativePath)
		if err := store.Put(ctx, key, compressed, "text/csv", "gzip"); err != nil {
			return uploaded, fmt.Errorf("uploading %s: %w", key, err)
		}
		log.Printf("uploaded %s (%d -> %d bytes)", key, len(contents), len(compressed))
		uploaded++
	}
	return uploaded, nil
}

func gzipBytes(contents []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(contents); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
