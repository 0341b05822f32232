package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/portal/internal/config"
)

const keyAuthAction = "portal:auth:%s:%s"

// AuthLimiter throttles credential-bearing actions per client IP. A nil or
// disabled limiter allows everything.
type AuthLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewAuthLimiter(cfg config.Config, bucket *TokenBucket) *AuthLimiter {
	if !cfg.RateLimit.Enabled || bucket == nil {
		return nil
	}
	return &AuthLimiter{
		bucket: bucket,
		rate:   cfg.RateLimit.AuthRate,
		burst:  cfg.RateLimit.AuthBurst,
	}
}

func (l *AuthLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *AuthLimiter) Allow(ctx context.Context, action, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyAuthAction, strings.TrimSpace(action), strings.TrimSpace(clientIP))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
