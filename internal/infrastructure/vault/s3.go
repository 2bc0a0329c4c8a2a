package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

// s3API is the subset of the S3 client the vault uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores objects in a bucket with AES256 server-side encryption.
type S3 struct {
	client s3API
	bucket string
	keys   keyBuilder
}

func NewS3(ctx context.Context, cfg config.S3Config, keyPrefix string) (*S3, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, errs.Wrap(err, "load aws config")
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3WithClient(client, cfg.Bucket, keyPrefix), nil
}

func newS3WithClient(client s3API, bucket string, keyPrefix string) *S3 {
	return &S3{client: client, bucket: bucket, keys: newKeyBuilder(keyPrefix)}
}

func (s *S3) Put(ctx context.Context, input ports.VaultPutInput) (ports.VaultObject, error) {
	return s.put(ctx, input.OwnerID, input.FolderPath, input.FileName, input.MimeType, bytes.NewReader(input.Data), int64(len(input.Data)))
}

func (s *S3) PutFile(ctx context.Context, input ports.VaultPutFileInput) (ports.VaultObject, error) {
	f, err := os.Open(input.Path)
	if err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "open source file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "stat source file")
	}
	return s.put(ctx, input.OwnerID, input.FolderPath, input.FileName, input.MimeType, f, info.Size())
}

func (s *S3) put(ctx context.Context, ownerID, folder, name, mime string, body io.Reader, size int64) (ports.VaultObject, error) {
	if ctx == nil {
		return ports.VaultObject{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "check context")
	}

	key, err := s.keys.build(ownerID, folder, name)
	if err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "build vault key")
	}
	contentType := mimeOrDefault(mime)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 body,
		ContentType:          aws.String(contentType),
		ContentLength:        aws.Int64(size),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return ports.VaultObject{}, errs.Wrapf(err, "put object %s", key)
	}

	return ports.VaultObject{Key: key, SizeBytes: size, MimeType: contentType}, nil
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, ports.VaultObject, error) {
	if ctx == nil {
		return nil, ports.VaultObject{}, errors.New("context is required")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ports.VaultObject{}, ErrObjectNotFound
		}
		return nil, ports.VaultObject{}, errs.Wrapf(err, "get object %s", key)
	}

	obj := ports.VaultObject{Key: key, MimeType: aws.ToString(out.ContentType)}
	if out.ContentLength != nil {
		obj.SizeBytes = *out.ContentLength
	}
	return out.Body, obj, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return errs.Wrapf(err, "delete object %s", key)
	}
	return nil
}
