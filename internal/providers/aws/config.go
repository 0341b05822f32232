// Package aws builds the shared SDK configuration used by the Cognito and S3
// adapters.
package aws

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/smallbiznis/portal/internal/config"
)

// Loader resolves the SDK configuration once and hands the same value to
// every client. aws.Config is safe to share.
type Loader struct {
	cfg config.AWSConfig

	once   sync.Once
	loaded aws.Config
	err    error
}

func NewLoader(cfg config.Config) *Loader {
	return &Loader{cfg: cfg.AWS}
}

func (l *Loader) Settings() config.AWSConfig { return l.cfg }

func (l *Loader) Load(ctx context.Context) (aws.Config, error) {
	l.once.Do(func() {
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(l.cfg.Region),
		}
		if l.cfg.AccessKeyID != "" && l.cfg.SecretAccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(l.cfg.AccessKeyID, l.cfg.SecretAccessKey, ""),
			))
		}
		l.loaded, l.err = awsconfig.LoadDefaultConfig(ctx, opts...)
	})
	return l.loaded, l.err
}

// Endpoint returns the override endpoint, or nil for the regional default.
func (l *Loader) Endpoint() *string {
	if l.cfg.Endpoint == "" {
		return nil
	}
	return aws.String(l.cfg.Endpoint)
}
