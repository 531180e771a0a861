package gateway

// Messenger defines the interface for notification gateways (Telegram, etc.)
type Messenger interface {
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}
