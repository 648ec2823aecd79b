package alerts

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

type S3Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
	PresignTTL   time.Duration
}

// S3Snapshots stores alert frames in an S3-compatible bucket under
// alerts/yyyy/mm/dd/<id>.jpg.
type S3Snapshots struct {
	bucket    string
	ttl       time.Duration
	put       objectPutter
	presigner getPresigner
	now       func() time.Time
}

func NewS3Snapshots(ctx context.Context, cfg S3Config) (*S3Snapshots, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Snapshots(cfg.Bucket, cfg.PresignTTL, client, s3.NewPresignClient(client)), nil
}

func newS3Snapshots(bucket string, ttl time.Duration, put objectPutter, presigner getPresigner) *S3Snapshots {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &S3Snapshots{bucket: bucket, ttl: ttl, put: put, presigner: presigner, now: time.Now}
}

func (s *S3Snapshots) key(id string) string {
	d := s.now().UTC()
	return fmt.Sprintf("alerts/%04d/%02d/%02d/%s.jpg", d.Year(), int(d.Month()), d.Day(), id)
}

func (s *S3Snapshots) Store(ctx context.Context, id string, image []byte) (string, string, error) {
	key := s.key(id)

	_, err := s.put.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", "", fmt.Errorf("put %s: %w", key, err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		// the object is stored; the alert still carries its key
		return key, "", fmt.Errorf("presign %s: %w", key, err)
	}
	return key, req.URL, nil
}
