package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jwalitptl/capd-api/pkg/circuitbreaker"
)

type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Store writes objects to an S3 compatible bucket.
type Store struct {
	client *s3.Client
	cfg    Config
	cb     *circuitbreaker.CircuitBreaker
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		client: client,
		cfg:    cfg,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "s3-store",
			MaxFailures: 3,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
		}),
	}, nil
}

func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	err := s.cb.Execute(func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
			ACL:         types.ObjectCannedACLPrivate,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.URL(key), nil
}

// URL locates key the way the bucket is addressed.
func (s *Store) URL(key string) string {
	if s.cfg.Endpoint != "" {
		base := strings.TrimRight(s.cfg.Endpoint, "/")
		if s.cfg.UsePathStyle {
			return fmt.Sprintf("%s/%s/%s", base, s.cfg.Bucket, key)
		}
		return fmt.Sprintf("%s/%s", base, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
