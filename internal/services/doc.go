// Package services implements clients for the external transfer service.
//
// # Raw API
//
// [APIService] performs authenticated GET requests against the service base URL and returns buffered [APIResponse]
// values. A configured API token is sent as a bearer Authorization header. Bodies are capped at 4 MiB.
//
// # Transfer Listing
//
// [TransferService] implements [TransferLister]:
//   - ListTransfers: GET /api/transfers, decoded into [models.Transfer]
//   - ActiveTransfers: GET /api/transfers/active, decoded into [models.ActiveSummary]
//
// The session layer builds its transfer-protection oracle on ActiveTransfers; the transfer board pulls ListTransfers
// periodically.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : request failed, non-2xx status, or undecodable body
//   - [shared.ErrServiceUnavailable] : client not configured
package services
