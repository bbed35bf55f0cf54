package chunkstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/clipvault/clipvault/internal/common"
	"github.com/clipvault/clipvault/internal/limiter"
	"github.com/clipvault/clipvault/internal/logging"
)

// S3Options carries the settings for an S3-compatible chunk backend,
// typically MinIO in development.
type S3Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// S3Store keeps chunks as objects under chunks/{uploadID}/chunk_{index}.
// It mirrors LocalStore's semantics so the assembler does not care which
// backend it reads from.
type S3Store struct {
	client *s3.Client
	bucket string
	del    *limiter.Limiter
	log    logging.Logger
}

func NewS3Store(ctx context.Context, opts S3Options, log logging.Logger) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey, opts.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{client: client, bucket: opts.Bucket, del: limiter.New(deleteBound), log: log}, nil
}

func chunkKey(uploadID string, index int) string {
	return fmt.Sprintf("chunks/%s/chunk_%d", uploadID, index)
}

func (s *S3Store) Put(ctx context.Context, uploadID string, index int, data []byte) (string, error) {
	key := chunkKey(uploadID, index)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *S3Store) Get(ctx context.Context, uploadID string, index int) ([]byte, error) {
	key := chunkKey(uploadID, index)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) DeleteAll(ctx context.Context, uploadID string, totalChunks int) (DeleteResult, error) {
	var successful, failed int64
	var wg sync.WaitGroup

	for i := 0; i < totalChunks; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = s.del.Run(func() error {
				_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    aws.String(chunkKey(uploadID, i)),
				})
				if err != nil {
					s.log.Warn(ctx, "chunk delete failed", "upload_id", uploadID, "index", i, "error", err)
					atomic.AddInt64(&failed, 1)
					return err
				}
				atomic.AddInt64(&successful, 1)
				return nil
			})
		}()
	}
	wg.Wait()

	// No directory concept on S3; the prefix disappears with its objects.
	return DeleteResult{Successful: int(successful), Failed: int(failed)}, nil
}
