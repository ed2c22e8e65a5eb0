package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
)

// Compile-time interface check.
var _ Reader = (*s3Reader)(nil)

type s3Reader struct {
	client         *s3.Client
	bucket         string
	discoveryPaths []string
}

// NewS3Reader creates a Reader backed by S3-compatible storage.
func NewS3Reader(cfg *config.S3Config) Reader {
	client := newS3Client(cfg)

	paths := make([]string, 0, len(cfg.DiscoveryPaths))
	for _, p := range cfg.DiscoveryPaths {
		paths = append(paths, strings.TrimRight(p, "/"))
	}

	sort.Strings(paths)

	return &s3Reader{
		client:         client,
		bucket:         cfg.Bucket,
		discoveryPaths: paths,
	}
}

// DiscoveryPaths returns the configured S3 discovery paths.
func (r *s3Reader) DiscoveryPaths() []string {
	return r.discoveryPaths
}

// ListBuildIDs lists build IDs (common prefixes) under {dp}/builds/.
func (r *s3Reader) ListBuildIDs(
	ctx context.Context, discoveryPath string,
) ([]string, error) {
	prefix := discoveryPath + "/builds/"

	var ids []string

	err := r.list(ctx, prefix, func(page *s3.ListObjectsV2Output) {
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				// "dp/builds/42/" -> "42"
				ids = append(ids, path.Base(strings.TrimRight(*cp.Prefix, "/")))
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// ListBuildFiles lists object names directly under {dp}/builds/{buildID}/.
func (r *s3Reader) ListBuildFiles(
	ctx context.Context, discoveryPath, buildID string,
) ([]string, error) {
	prefix := discoveryPath + "/builds/" + buildID + "/"

	var names []string

	err := r.list(ctx, prefix, func(page *s3.ListObjectsV2Output) {
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			name := strings.TrimPrefix(*obj.Key, prefix)
			if name != "" {
				names = append(names, name)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	return names, nil
}

func (r *s3Reader) list(
	ctx context.Context, prefix string, fn func(*s3.ListObjectsV2Output),
) error {
	paginator := s3.NewListObjectsV2Paginator(
		r.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(r.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		},
	)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing objects under %q: %w", prefix, err)
		}

		fn(page)
	}

	return nil
}

// GetBuildFile reads {dp}/builds/{buildID}/{filename} from S3.
// Returns (nil, nil) when the key does not exist.
func (r *s3Reader) GetBuildFile(
	ctx context.Context, discoveryPath, buildID, filename string,
) ([]byte, error) {
	key := discoveryPath + "/" + Key(buildID, filename)

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return data, nil
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}

func newS3Client(cfg *config.S3Config) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
