package session

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/shared"
)

// Oracle answers whether any transfer currently protects the session.
//
// Implementations must not cache: every call is a fresh query.
type Oracle interface {
	HasActiveTransfers(ctx context.Context) bool
}

// OracleFunc adapts a function to [Oracle].
type OracleFunc func(ctx context.Context) bool

func (f OracleFunc) HasActiveTransfers(ctx context.Context) bool { return f(ctx) }

// ActiveQuerier is the transfer-service query an oracle is built on. [services.TransferService] implements it.
type ActiveQuerier interface {
	ActiveTransfers(ctx context.Context) (*models.ActiveSummary, error)
}

// TransferOracle is the [Oracle] backed by the transfer service.
//
// Query failures count as "no active transfer" so a broken service can never pin the connection open.
type TransferOracle struct {
	querier ActiveQuerier
	timeout time.Duration
	logger  *log.Logger
}

// NewTransferOracle creates an oracle whose queries are bounded by timeout.
func NewTransferOracle(querier ActiveQuerier, timeout time.Duration, logger *log.Logger) *TransferOracle {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TransferOracle{
		querier: querier,
		timeout: timeout,
		logger:  shared.WithLogger(logger, "component", "oracle"),
	}
}

func (o *TransferOracle) HasActiveTransfers(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	summary, err := o.querier.ActiveTransfers(ctx)
	if err != nil {
		o.logger.Warn("active transfer query failed, treating as idle", "err", err)
		return false
	}
	if summary == nil {
		return false
	}

	o.logger.Debug("active transfer query", "active", summary.Active, "count", summary.Count)
	return summary.Active
}
