package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/routedata/pkg/events"
)

// ObjectAPI is the subset of *s3.Client the S3 store uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the event document in one S3 object.
type S3Store struct {
	client ObjectAPI
	bucket string
	key    string
}

// NewS3Store returns a store writing bucket/key through client.
func NewS3Store(client ObjectAPI, bucket, key string) *S3Store {
	if key == "" {
		key = "events.json"
	}
	return &S3Store{client: client, bucket: bucket, key: key}
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region   string
	Endpoint string

	// AccessKey and SecretKey are static credentials. When empty the
	// client is anonymous, which suits local S3-compatible servers.
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client. A custom endpoint switches to
// path-style addressing.
func NewS3Client(o S3Options) *s3.Client {
	opts := s3.Options{Region: o.Region}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if o.Endpoint != "" {
		opts.BaseEndpoint = aws.String(o.Endpoint)
		opts.UsePathStyle = true
	}
	if o.AccessKey != "" {
		creds := aws.Credentials{AccessKeyID: o.AccessKey, SecretAccessKey: o.SecretKey, Source: "routedata"}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	return s3.New(opts)
}

func (s *S3Store) Load(ctx context.Context) ([]events.Event, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("backend: s3 get %s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: s3 read: %w", err)
	}
	return decodeDocument(b)
}

func (s *S3Store) Save(ctx context.Context, list []events.Event) error {
	b, err := encodeDocument(list)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("backend: s3 put %s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
