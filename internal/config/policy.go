package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	ZeroThresholdUnlimited = "unlimited"
	ZeroThresholdBlock     = "block"
)

// Policy holds business constants that may be tuned without a redeploy.
type Policy struct {
	Deletion DeletionPolicy `mapstructure:"deletion"`
	Usage    UsagePolicy    `mapstructure:"usage"`
	Upload   UploadPolicy   `mapstructure:"upload"`
}

type DeletionPolicy struct {
	GraceDays int `mapstructure:"graceDays"`
}

type UsagePolicy struct {
	ProcessingRatePerByte float64 `mapstructure:"processingRatePerByte"`
	// ZeroThreshold decides what a limit of exactly 0 means: unlimited or block.
	ZeroThreshold string `mapstructure:"zeroThreshold"`
}

type UploadPolicy struct {
	MaxFiles        int   `mapstructure:"maxFiles"`
	MaxGenericBytes int64 `mapstructure:"maxGenericBytes"`
	MaxServiceBytes int64 `mapstructure:"maxServiceBytes"`
}

func DefaultPolicy() Policy {
	return Policy{
		Deletion: DeletionPolicy{GraceDays: 90},
		Usage: UsagePolicy{
			ProcessingRatePerByte: 0.00001,
			ZeroThreshold:         ZeroThresholdUnlimited,
		},
		Upload: UploadPolicy{
			MaxFiles:        5,
			MaxGenericBytes: 10 * 1024 * 1024,
			MaxServiceBytes: 100 * 1024 * 1024,
		},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("portal")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/portal")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("policy.deletion.graceDays", defaults.Deletion.GraceDays)
	v.SetDefault("policy.usage.processingRatePerByte", defaults.Usage.ProcessingRatePerByte)
	v.SetDefault("policy.usage.zeroThreshold", defaults.Usage.ZeroThreshold)
	v.SetDefault("policy.upload.maxFiles", defaults.Upload.MaxFiles)
	v.SetDefault("policy.upload.maxGenericBytes", defaults.Upload.MaxGenericBytes)
	v.SetDefault("policy.upload.maxServiceBytes", defaults.Upload.MaxServiceBytes)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg Policy
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := ValidatePolicy(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Policy
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Warn("policy reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := ValidatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	return h.current.Load().(Policy)
}

func ValidatePolicy(p Policy) error {
	if p.Deletion.GraceDays <= 0 {
		return errors.New("policy.deletion.graceDays must be positive")
	}
	if p.Usage.ProcessingRatePerByte <= 0 {
		return errors.New("policy.usage.processingRatePerByte must be positive")
	}
	switch p.Usage.ZeroThreshold {
	case ZeroThresholdUnlimited, ZeroThresholdBlock:
	default:
		return errors.New("policy.usage.zeroThreshold must be unlimited or block")
	}
	if p.Upload.MaxFiles <= 0 {
		return errors.New("policy.upload.maxFiles must be positive")
	}
	if p.Upload.MaxGenericBytes <= 0 || p.Upload.MaxServiceBytes <= 0 {
		return errors.New("policy.upload ceilings must be positive")
	}
	return nil
}
