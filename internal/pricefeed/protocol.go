package pricefeed

import "github.com/eaili5/eaili5/internal/domain"

// Frame types on the token price channel.
const (
	FrameTypeTokenUpdate = "token_update" // inbound, single token
	FrameTypePriceUpdate = "price_update" // inbound, bulk
	FrameTypeSubscribe   = "subscribe"    // outbound
	FrameTypeUnsubscribe = "unsubscribe"  // outbound
)

// Frame is the envelope for all price channel messages.
type Frame struct {
	Type string `json:"type"`

	// Inbound payloads
	Token  *domain.TokenUpdate  `json:"token,omitempty"`
	Tokens []domain.TokenUpdate `json:"tokens,omitempty"`

	// Outbound topic management
	Addresses []string `json:"addresses,omitempty"`
}
