package webhook

import (
	"encoding/json"
	"time"
)

// Kind is the closed set of inbound message classifications. Every
// downstream consumer switches on Kind instead of re-deriving the type
// from payload shape.
type Kind string

const (
	KindText        Kind = "text"
	KindButtonReply Kind = "button_reply"
	KindListReply   Kind = "list_reply"
	KindFlowReply   Kind = "flow_reply"
	KindOrder       Kind = "order"
	KindLocation    Kind = "location"
	KindUnknown     Kind = "unknown"
)

// Reply carries both halves of an interactive answer: the machine id used
// for routing and the human-readable title used for state and logging.
type Reply struct {
	ID    string
	Title string
}

// OrderItem is one line of an inbound cart. Price is in major currency
// units as delivered by the provider; totals are converted to minor units
// exactly once, downstream.
type OrderItem struct {
	ProductID string
	Quantity  int
	ItemPrice float64
	Currency  string
}

// Referral describes the ad click that led the user into the chat.
type Referral struct {
	SourceURL  string
	SourceID   string
	SourceType string
	Headline   string
}

// InboundEvent is the normalized representation of one webhook message.
type InboundEvent struct {
	TenantPhoneID string
	DisplayNumber string
	SenderID      string
	SenderName    string
	MessageID     string
	Timestamp     time.Time
	Kind          Kind

	Text       string
	Reply      Reply
	FormFields map[string]string
	Order      []OrderItem
	Latitude   float64
	Longitude  float64
	Address    string

	Referral *Referral

	// Raw preserves the original message object for unknown kinds so
	// nothing is dropped silently.
	Raw json.RawMessage
}
