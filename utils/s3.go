package utils

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3-compatible media storage (AWS S3, Cloudflare R2, MinIO). Env:
//
//	S3_ENDPOINT           optional custom endpoint for R2/MinIO
//	S3_REGION             defaults to "auto"
//	S3_ACCESS_KEY_ID
//	S3_SECRET_ACCESS_KEY
//	S3_BUCKET
//	S3_PUBLIC_BASE_URL    optional CDN/public prefix; presigned URLs otherwise

func storageClient() (*s3.Client, error) {
	accessKey := os.Getenv("S3_ACCESS_KEY_ID")
	secretKey := os.Getenv("S3_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("S3_ACCESS_KEY_ID or S3_SECRET_ACCESS_KEY is not set")
	}
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "auto"
	}
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("S3_ENDPOINT"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	})
	return client, nil
}

func storageBucket() (string, error) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return "", fmt.Errorf("S3_BUCKET is not set")
	}
	return bucket, nil
}

// UploadToStorage writes an object to the media bucket.
func UploadToStorage(objectName string, file io.Reader) error {
	bucket, err := storageBucket()
	if err != nil {
		return err
	}
	client, err := storageClient()
	if err != nil {
		return err
	}
	contentType := mime.TypeByExtension(path.Ext(objectName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectName),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage upload failed: %w", err)
	}
	return nil
}

// PresignObjectURL returns a presigned GET URL for the given object.
func PresignObjectURL(objectName string, expiry time.Duration) (string, error) {
	bucket, err := storageBucket()
	if err != nil {
		return "", err
	}
	client, err := storageClient()
	if err != nil {
		return "", err
	}
	presigner := s3.NewPresignClient(client)
	presigned, err := presigner.PresignGetObject(context.TODO(),
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(objectName),
		},
		func(po *s3.PresignOptions) {
			po.Expires = expiry
		},
	)
	if err != nil {
		return "", fmt.Errorf("presign storage URL: %w", err)
	}
	return presigned.URL, nil
}

// PublicObjectURL prefers a configured public prefix, falling back to a
// week-long presigned URL.
func PublicObjectURL(objectName string) (string, error) {
	if base := os.Getenv("S3_PUBLIC_BASE_URL"); base != "" {
		return strings.TrimRight(base, "/") + "/" + objectName, nil
	}
	return PresignObjectURL(objectName, 7*24*time.Hour)
}

// DeleteFromStorage removes an object from the media bucket.
func DeleteFromStorage(objectName string) error {
	bucket, err := storageBucket()
	if err != nil {
		return err
	}
	client, err := storageClient()
	if err != nil {
		return err
	}
	_, err = client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return fmt.Errorf("storage delete failed: %w", err)
	}
	return nil
}
