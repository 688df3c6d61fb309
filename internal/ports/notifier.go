package ports

import (
	"context"

	"github.com/alejandrodnm/breakbot/internal/domain"
)

// Notifier presents engine state to the user.
type Notifier interface {
	// NotifyCycle reports the end-of-cycle snapshot. The snapshot is a
	// value copy; implementations must not write back through it.
	NotifyCycle(ctx context.Context, snap domain.CycleSnapshot) error

	// NotifyTrade reports one realized trade.
	NotifyTrade(ctx context.Context, rec domain.TradeRecord) error
}
