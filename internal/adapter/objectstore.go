package adapter

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/webitel/document-exporter/internal/model"
)

// ObjectStorage uploads into an S3 compatible bucket. The site URL is the
// endpoint ("https://s3.example.com"), the folder path is "bucket/prefix".
//
// Credentials: "access_key", "secret_key" and optional "region".
type ObjectStorage struct {
	mu      sync.Mutex
	clients map[string]*minio.Client
}

func NewObjectStorage() *ObjectStorage {
	return &ObjectStorage{clients: make(map[string]*minio.Client)}
}

func (o *ObjectStorage) Type() model.IntegrationType { return model.IntegrationObjectStorage }

// Error codes after which no further object can be written to the bucket.
var fatalS3Codes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"NoSuchBucket":          true,
	"AccountProblem":        true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
	"SlowDown":              true,
	"ServiceUnavailable":    true,
}

func (o *ObjectStorage) Connect(ctx context.Context, cfg model.IntegrationConfig) error {
	client, bucket, _, err := o.open(cfg)
	if err != nil {
		return err
	}
	ok, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return Fatal(o.target(cfg), err)
	}
	if !ok {
		return Fatal(o.target(cfg), fmt.Errorf("bucket %q does not exist", bucket))
	}
	return nil
}

func (o *ObjectStorage) Transfer(ctx context.Context, file model.File, cfg model.IntegrationConfig) (string, error) {
	client, bucket, prefix, err := o.open(cfg)
	if err != nil {
		return "", err
	}
	key := path.Join(prefix, file.Name)
	_, err = client.PutObject(ctx, bucket, key, bytes.NewReader(file.Data), int64(len(file.Data)), minio.PutObjectOptions{
		ContentType: file.MimeType,
		UserMetadata: map[string]string{
			"document-id": file.DocumentID,
		},
	})
	if err != nil {
		return "", o.classify(ctx, cfg, err)
	}
	return strings.TrimRight(client.EndpointURL().String(), "/") + "/" + bucket + "/" + escapePath(key), nil
}

func (o *ObjectStorage) Stat(ctx context.Context, cfg model.IntegrationConfig) (model.SyncStats, error) {
	client, bucket, prefix, err := o.open(cfg)
	if err != nil {
		return model.SyncStats{}, err
	}
	if prefix != "" {
		prefix += "/"
	}
	var stats model.SyncStats
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return model.SyncStats{}, o.classify(ctx, cfg, obj.Err)
		}
		stats.Documents++
		stats.StorageUsed += obj.Size
	}
	return stats, nil
}

func (o *ObjectStorage) classify(ctx context.Context, cfg model.IntegrationConfig, err error) error {
	if ctx.Err() != nil {
		return Fatal(o.target(cfg), ctx.Err())
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case fatalS3Codes[resp.Code]:
		return Fatal(o.target(cfg), err)
	case resp.StatusCode == 0 && resp.Code == "":
		// not an S3 answer at all: the endpoint is unreachable
		return Fatal(o.target(cfg), err)
	case fatalStatus(resp.StatusCode):
		return Fatal(o.target(cfg), err)
	}
	return err
}

// open returns a client for the endpoint, the bucket and the key prefix.
func (o *ObjectStorage) open(cfg model.IntegrationConfig) (*minio.Client, string, string, error) {
	endpoint, err := url.Parse(cfg.SiteURL)
	if err != nil || endpoint.Host == "" {
		return nil, "", "", Fatal(o.target(cfg), fmt.Errorf("invalid endpoint %q", cfg.SiteURL))
	}
	bucket, prefix, _ := strings.Cut(strings.Trim(cfg.FolderPath, "/"), "/")
	if bucket == "" {
		return nil, "", "", Fatal(o.target(cfg), stderrors.New("bucket is not configured"))
	}

	accessKey := credential(cfg.Credentials, "access_key")
	secretKey := credential(cfg.Credentials, "secret_key")
	region := credential(cfg.Credentials, "region")
	if region == "" {
		region = "us-east-1"
	}
	cacheKey := strings.Join([]string{endpoint.Scheme, endpoint.Host, accessKey, secretKey, region}, "|")

	o.mu.Lock()
	defer o.mu.Unlock()
	if client, ok := o.clients[cacheKey]; ok {
		return client, bucket, prefix, nil
	}
	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: endpoint.Scheme == "https",
		Region: region,
	})
	if err != nil {
		return nil, "", "", Fatal(o.target(cfg), fmt.Errorf("failed to create object storage client: %w", err))
	}
	o.clients[cacheKey] = client
	return client, bucket, prefix, nil
}

func (o *ObjectStorage) target(cfg model.IntegrationConfig) string {
	return "object-storage " + cfg.SiteURL
}
