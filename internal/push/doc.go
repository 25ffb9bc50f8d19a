// Package push implements the websocket channel to the transfer service.
//
// A [Dialer] performs the handshake and returns a [Client] whose read pump decodes transfer notifications
// (transfer_progress, transfer_complete) onto [Client.Messages] and whose write pump sends queued activity frames and
// keepalive pings. Unknown or malformed frames are logged at debug level and skipped.
//
// Sends never block: [Client.SendActivity] fails with [shared.ErrSendQueueFull] when the buffer is full and with
// [shared.ErrNotConnected] after the connection has ended.
//
// The client never reconnects on its own. A lost connection closes [Client.Done] and reports a cause wrapping
// [shared.ErrConnectionLost] through [Client.Err]; a local [Client.Close] leaves Err nil.
package push
