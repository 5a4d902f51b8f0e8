package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mlflow-migrate/internal/config"
	ports "mlflow-migrate/internal/core/ports/output"
)

// Open returns the export store for a local path or an s3://bucket/prefix URI.
func Open(ctx context.Context, uri string, cfg *config.S3Config) (ports.Filesystem, error) {
	if uri == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if !strings.HasPrefix(uri, "s3://") {
		return NewLocal(uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", uri, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing bucket in %q", uri)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewS3(ctx, client, u.Host, u.Path), nil
}
