package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/upload/domain"
	usagedomain "github.com/smallbiznis/portal/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Store  domain.Store
	Usage  usagedomain.Service
	Policy *config.PolicyHolder
}

type Service struct {
	log    *zap.Logger
	store  domain.Store
	usage  usagedomain.Service
	policy *config.PolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("upload.service"),
		store:  p.Store,
		usage:  p.Usage,
		policy: p.Policy,
	}
}

func (s *Service) UploadSupport(ctx context.Context, req domain.SupportRequest) (*domain.Result, error) {
	limits := s.policy.Get().Upload
	if err := checkBatch(req.Files, limits.MaxFiles); err != nil {
		return nil, err
	}
	// Validate the path segments once so a bad request fails as a whole.
	if _, err := domain.SupportKey(req.CustomerID, req.RequestID, req.ReplyID, "file"); err != nil {
		return nil, err
	}

	return s.putAll(ctx, req.Files, limits.MaxGenericBytes, func(name string) (string, error) {
		return domain.SupportKey(req.CustomerID, req.RequestID, req.ReplyID, name)
	}, nil), nil
}

// UploadService stores processing input files. Uploads are refused while a
// restricting usage limit is exceeded, and each stored file is recorded as
// storage usage.
func (s *Service) UploadService(ctx context.Context, req domain.ServiceRequest) (*domain.Result, error) {
	limits := s.policy.Get().Upload
	if err := checkBatch(req.Files, limits.MaxFiles); err != nil {
		return nil, err
	}
	if _, err := domain.ServiceKey(req.FileType, req.CustomerID, req.ProcessingHistoryID, "file"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, usagedomain.ErrInvalidUser
	}

	eval, err := s.usage.Evaluate(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if eval.Restricted {
		return nil, usagedomain.ErrUsageRestricted
	}

	record := func(file domain.UploadedFile) {
		_, err := s.usage.RecordUsage(ctx, usagedomain.RecordUsageRequest{
			CustomerID:          req.CustomerID,
			UserID:              req.UserID,
			ProcessingHistoryID: req.ProcessingHistoryID,
			PolicyID:            req.PolicyID,
			UsageAmountBytes:    file.Size,
			UsageType:           string(usagedomain.UsageTypeStorage),
		})
		if err != nil {
			s.log.Warn("storage usage not recorded",
				zap.String("customer_id", req.CustomerID),
				zap.String("key", file.Key),
				zap.Error(err),
			)
		}
	}

	return s.putAll(ctx, req.Files, limits.MaxServiceBytes, func(name string) (string, error) {
		return domain.ServiceKey(req.FileType, req.CustomerID, req.ProcessingHistoryID, name)
	}, record), nil
}

func (s *Service) putAll(
	ctx context.Context,
	files []domain.File,
	maxBytes int64,
	keyFor func(string) (string, error),
	onStored func(domain.UploadedFile),
) *domain.Result {
	result := &domain.Result{Uploaded: []domain.UploadedFile{}}
	for _, file := range files {
		if file.Size > maxBytes {
			result.Errors = append(result.Errors, domain.ItemError{Name: file.Name, Kind: domain.KindFileTooLarge})
			continue
		}
		key, err := keyFor(file.Name)
		if err != nil {
			result.Errors = append(result.Errors, domain.ItemError{Name: file.Name, Kind: domain.KindUnknown})
			continue
		}
		if err := s.putOne(ctx, key, file); err != nil {
			kind := domain.KindUnknown
			if errors.Is(err, domain.ErrStorage) {
				kind = domain.KindStorageUnavailable
			}
			s.log.Warn("upload failed", zap.String("key", key), zap.Error(err))
			result.Errors = append(result.Errors, domain.ItemError{Name: file.Name, Kind: kind})
			continue
		}

		stored := domain.UploadedFile{Name: file.Name, Key: key, Size: file.Size}
		result.Uploaded = append(result.Uploaded, stored)
		if onStored != nil {
			onStored(stored)
		}
	}
	return result
}

func (s *Service) putOne(ctx context.Context, key string, file domain.File) error {
	if file.Open == nil {
		return errors.New("file has no content")
	}
	body, err := file.Open()
	if err != nil {
		return err
	}
	defer body.Close()
	return s.store.Put(ctx, key, body, file.Size, file.ContentType)
}

func checkBatch(files []domain.File, maxFiles int) error {
	if len(files) == 0 {
		return domain.ErrNoFiles
	}
	if maxFiles > 0 && len(files) > maxFiles {
		return domain.ErrTooManyFiles
	}
	return nil
}
