// Package storage はプロフィール写真のオブジェクトストレージを提供する。
// S3互換エンドポイント（MinIO等）を前提としたaws-sdk-go-v2の薄いラッパー。
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PhotoStore はプロフィール写真のS3互換ストレージクライアント。
// 写真本体のアップロードはクライアントが署名付きPUT URLで直接行い、
// サーバーはURLの発行とオブジェクトキーの管理のみを担う。
type PhotoStore struct {
	api     *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// Options はPhotoStoreの接続設定。
type Options struct {
	Endpoint  string // host:port または完全なURL
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

// NewPhotoStore はPhotoStoreを生成する。
// MinIO等の自前エンドポイントを想定し、path-style addressingを使う。
func NewPhotoStore(opts Options) (*PhotoStore, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("endpoint is required")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, errors.New("access key and secret key are required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	endpoint := opts.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	cfg, err := awsconfig.LoadDefaultConfig(
		context.Background(),
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &PhotoStore{
		api:     client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
	}, nil
}

// PhotoKey はユーザーの写真のオブジェクトキーを返す。
// ユーザーごとに1枚で、新しいアップロードは前の写真を上書きする。
func PhotoKey(tgID int64) string {
	return fmt.Sprintf("users/%d/photo.jpg", tgID)
}

// PresignUpload は写真アップロード用の署名付きPUT URLを発行する。
func (s *PhotoStore) PresignUpload(ctx context.Context, tgID int64, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(PhotoKey(tgID)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, nil
}

// PresignDownload は写真取得用の署名付きGET URLを発行する。
func (s *PhotoStore) PresignDownload(ctx context.Context, tgID int64, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(PhotoKey(tgID)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

// DeletePhoto はユーザーの写真を削除する。
func (s *PhotoStore) DeletePhoto(ctx context.Context, tgID int64) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(PhotoKey(tgID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}
