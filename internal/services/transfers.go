package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/shared"
)

const (
	TransfersPath       = "/api/transfers"
	ActiveTransfersPath = "/api/transfers/active"
)

// TransferService implements [TransferLister] over the transfer service REST API.
type TransferService struct {
	api APIClient
}

// NewTransferService creates a TransferService backed by api.
func NewTransferService(api APIClient) *TransferService {
	return &TransferService{api: api}
}

// ListTransfers fetches the transfer listing.
//
// The service answers either a bare array or an object with a "transfers" field; both are accepted.
func (s *TransferService) ListTransfers(ctx context.Context) ([]models.Transfer, error) {
	resp, err := s.get(ctx, TransfersPath)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(string(resp.Body))
	if strings.HasPrefix(body, "[") {
		var transfers []models.Transfer
		if err := resp.Decode(&transfers); err != nil {
			return nil, fmt.Errorf("%w: failed to decode transfers: %v", shared.ErrAPIRequest, err)
		}
		return transfers, nil
	}

	var wrapped struct {
		Transfers []models.Transfer `json:"transfers"`
	}
	if err := resp.Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("%w: failed to decode transfers: %v", shared.ErrAPIRequest, err)
	}
	return wrapped.Transfers, nil
}

// ActiveTransfers queries whether any transfer is active.
func (s *TransferService) ActiveTransfers(ctx context.Context) (*models.ActiveSummary, error) {
	resp, err := s.get(ctx, ActiveTransfersPath)
	if err != nil {
		return nil, err
	}

	var summary models.ActiveSummary
	if err := resp.Decode(&summary); err != nil {
		return nil, fmt.Errorf("%w: failed to decode active summary: %v", shared.ErrAPIRequest, err)
	}
	if summary.Count > 0 {
		summary.Active = true
	}

	return &summary, nil
}

func (s *TransferService) get(ctx context.Context, path string) (*APIResponse, error) {
	if s.api == nil {
		return nil, fmt.Errorf("%w: API client not initialized", shared.ErrServiceUnavailable)
	}

	resp, err := s.api.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if !resp.OK() {
		return nil, fmt.Errorf("%w: GET %s returned status %d", shared.ErrAPIRequest, path, resp.StatusCode)
	}

	return resp, nil
}
