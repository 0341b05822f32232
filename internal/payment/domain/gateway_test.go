package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBillingAnchor(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 15, 8, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		// 2024-03-01 02:00 in Tokyo is still February in UTC.
		{time.Date(2024, 3, 1, 2, 0, 0, 0, time.FixedZone("JST", 9*3600)), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NextBillingAnchor(tc.now))
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError("subscribe", KindCardDeclined, errors.New("declined")))
	assert.Equal(t, KindCardDeclined, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
