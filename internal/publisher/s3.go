// Package publisher republishes the reconciled post list as a public JSON
// snapshot in object storage.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"telefeed-sync/internal/feed"
)

// S3SnapshotPublisher uploads the snapshot to an S3 bucket and marks it
// publicly readable.
type S3SnapshotPublisher struct {
	bucket   string
	key      string
	region   string
	uploader *s3manager.Uploader
}

// NewS3SnapshotPublisher creates a publisher for bucket/key in region.
func NewS3SnapshotPublisher(bucket, key, region string) (*S3SnapshotPublisher, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3SnapshotPublisher{
		bucket:   bucket,
		key:      key,
		region:   region,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// Publish serializes the ordered posts to a temporary file, uploads it
// with a public-read ACL, and returns the public URL. The temp file is
// removed regardless of the upload outcome.
func (p *S3SnapshotPublisher) Publish(ctx context.Context, posts []feed.Post) (string, error) {
	if posts == nil {
		posts = []feed.Post{}
	}

	tmp, err := os.CreateTemp("", "posts-*.json")
	if err != nil {
		return "", fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: failed to remove snapshot temp file %s: %v", tmp.Name(), err)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(posts); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind snapshot temp file: %w", err)
	}

	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		ACL:         aws.String("public-read"),
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.key),
		Body:        tmp,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot to s3: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, p.key), nil
}
