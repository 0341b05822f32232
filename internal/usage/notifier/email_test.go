package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/portal/internal/providers/email"
	"github.com/smallbiznis/portal/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type mockMail struct {
	mock.Mock
}

func (m *mockMail) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockMail) SendTemplate(ctx context.Context, to []string, subject, name string, data any) error {
	return m.Called(ctx, to, subject, name, data).Error(0)
}

func TestNotifyLimitExceeded(t *testing.T) {
	mail := &mockMail{}
	mail.On("SendTemplate", mock.Anything, []string{"ops@acme.test"}, "Usage limit exceeded: 1 MB", "usage_limit_exceeded",
		mock.MatchedBy(func(data map[string]any) bool {
			return data["Usage"] == "3.0 MB" && data["Restricted"] == false && data["CustomerID"] == "cus_1"
		})).Return(nil).Once()
	n := NewEmail(mail)

	limit := domain.UsageLimit{
		UsageLimitValue: domain.Float64Ptr(1),
		UsageUnit:       domain.UnitPtr(domain.UnitMB),
		ExceedAction:    domain.ExceedActionNotify,
		Emails:          datatypes.JSONSlice[string]{"ops@acme.test"},
	}
	err := n.NotifyLimitExceeded(context.Background(), domain.ExceededNotice{
		CustomerID:  "cus_1",
		Limit:       limit,
		UsageBytes:  3 * 1024 * 1024,
		Description: domain.FormatLimit(limit),
	})
	require.NoError(t, err)
	mail.AssertExpectations(t)
}

func TestNotifyLimitExceededPropagatesSendError(t *testing.T) {
	mail := &mockMail{}
	mail.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))
	n := NewEmail(mail)

	limit := domain.UsageLimit{
		AmountLimitValue: domain.Float64Ptr(50),
		ExceedAction:     domain.ExceedActionRestrict,
		Emails:           datatypes.JSONSlice[string]{"ops@acme.test"},
	}
	err := n.NotifyLimitExceeded(context.Background(), domain.ExceededNotice{CustomerID: "cus_1", Limit: limit})
	assert.EqualError(t, err, "smtp down")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))
}
