// Package notifier delivers usage limit notices by email.
package notifier

import (
	"context"
	"fmt"

	"github.com/smallbiznis/portal/internal/providers/email"
	"github.com/smallbiznis/portal/internal/usage/domain"
)

const templateLimitExceeded = "usage_limit_exceeded"

type EmailNotifier struct {
	mail email.Provider
}

func NewEmail(mail email.Provider) domain.Notifier {
	return &EmailNotifier{mail: mail}
}

func (n *EmailNotifier) NotifyLimitExceeded(ctx context.Context, notice domain.ExceededNotice) error {
	subject := fmt.Sprintf("Usage limit exceeded: %s", notice.Description)
	return n.mail.SendTemplate(ctx, []string(notice.Limit.Emails), subject, templateLimitExceeded, map[string]any{
		"CustomerID": notice.CustomerID,
		"Limit":      notice.Description,
		"Usage":      FormatBytes(notice.UsageBytes),
		"Restricted": notice.Limit.ExceedAction == domain.ExceedActionRestrict,
	})
}

// FormatBytes renders a byte count in the largest whole binary unit.
func FormatBytes(n int64) string {
	units := []domain.Unit{domain.UnitTB, domain.UnitGB, domain.UnitMB, domain.UnitKB}
	for _, unit := range units {
		m, _ := domain.UnitMultiplier(unit)
		if float64(n) >= m {
			return fmt.Sprintf("%.1f %s", float64(n)/m, unit)
		}
	}
	return fmt.Sprintf("%d B", n)
}
