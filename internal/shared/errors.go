package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Connection errors
	ErrConnectFailed  = fmt.Errorf("push connection failed")
	ErrNotConnected   = fmt.Errorf("not connected")
	ErrConnectionLost = fmt.Errorf("push connection lost")
	ErrSendQueueFull  = fmt.Errorf("send queue full")
	ErrTimeout        = fmt.Errorf("operation timed out")
	ErrSessionClosed  = fmt.Errorf("session manager closed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTransferNotFound   = fmt.Errorf("transfer not found")

	// Input validation
	ErrInvalidInput = fmt.Errorf("invalid input")
)
