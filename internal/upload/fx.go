package upload

import (
	"github.com/smallbiznis/portal/internal/config"
	awsprovider "github.com/smallbiznis/portal/internal/providers/aws"
	"github.com/smallbiznis/portal/internal/upload/domain"
	"github.com/smallbiznis/portal/internal/upload/memstore"
	"github.com/smallbiznis/portal/internal/upload/s3store"
	"github.com/smallbiznis/portal/internal/upload/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("upload.service",
	fx.Provide(NewStore),
	fx.Provide(service.New),
)

// NewStore uses S3 when a bucket is configured. Development builds without a
// bucket keep files in memory.
func NewStore(cfg config.Config, loader *awsprovider.Loader, log *zap.Logger) (domain.Store, error) {
	store, err := s3store.New(loader, log)
	if err == nil {
		return store, nil
	}
	if cfg.IsProduction() {
		return nil, err
	}
	log.Warn("S3 bucket not configured, keeping uploads in memory")
	return memstore.New(), nil
}
