// package services defines clients for the HTTP endpoints of the transfer service
package services

import (
	"context"

	"github.com/desertthunder/mediasync/internal/models"
)

// TransferLister defines the read-only view of the transfer service used by the session layer and the transfer board.
type TransferLister interface {
	// ListTransfers returns every transfer the service currently knows about.
	ListTransfers(ctx context.Context) ([]models.Transfer, error)

	// ActiveTransfers reports whether at least one transfer is queued or running.
	ActiveTransfers(ctx context.Context) (*models.ActiveSummary, error)
}

// APIClient defines the raw request surface of [APIService].
// This abstraction allows for easier testing and decoupling from concrete implementation.
type APIClient interface {
	Get(ctx context.Context, path string) (*APIResponse, error)
}
