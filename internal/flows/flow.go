package flows

import (
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

// State is the free-form key-value mapping scoped to a sender's active
// flow. Handlers receive a copy and return a new value; they never
// mutate shared session memory directly.
type State map[string]string

func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Shared state keys.
const (
	KeyStep        = "step"
	KeyConcern     = "selected_concern"
	KeyHandoff     = "handoff"
	KeyLeadCreated = "lead_created"
	KeyTenantPhone = "tenant_phone_id"

	StepDone = "done"
)

// Handler is the per-flow finite state machine. Advance and Start are
// pure: no I/O, all side effects expressed as emitted actions.
type Handler interface {
	Name() string
	// CanContinue reports whether an in-progress flow consumes this
	// event at its current state.
	CanContinue(ev webhook.InboundEvent, st State) bool
	// Advance applies one event to the current state.
	Advance(ev webhook.InboundEvent, st State) (State, []Action)
	// Start enters the flow from an entry trigger.
	Start(ev webhook.InboundEvent, st State) (State, []Action)
}

// Abandoner is implemented by flows that owe work on early termination
// (TTL expiry or an unrelated message mid-flow).
type Abandoner interface {
	Abandon(st State) []Action
}

// Action is the tagged union of outbound effects a handler can emit.
// Each action is consumed exactly once by the dispatcher.
type Action interface{ isAction() }

type Button struct {
	ID    string
	Title string
}

type Row struct {
	ID          string
	Title       string
	Description string
}

// SendText sends plain text to the sender.
type SendText struct {
	Body string
}

// SendButtons sends an interactive reply-button message.
type SendButtons struct {
	Body    string
	Buttons []Button
}

// SendList sends an interactive list message.
type SendList struct {
	Header       string
	Body         string
	ButtonLabel  string
	SectionTitle string
	Rows         []Row
}

// LeadFields is the CRM payload for one lead.
type LeadFields struct {
	Name        string
	Phone       string
	Source      string
	StatusTag   string
	Treatment   string
	Description string
}

// CreateLead asks the dispatcher to create a CRM lead. Emitted exactly
// once per lead-appointment entrant.
type CreateLead struct {
	Fields LeadFields
}

// CreatePaymentLink asks for a payment link for an order total computed
// server-side in minor currency units.
type CreatePaymentLink struct {
	OrderRef    string
	AmountPaise int64
	Currency    string
	Description string
}

// AddressFields is a delivery address; all fields are mandatory before
// SaveAddress may be emitted.
type AddressFields struct {
	Name    string
	Phone   string
	Street  string
	City    string
	State   string
	Pincode string
}

// SaveAddress persists a fully validated address.
type SaveAddress struct {
	Fields AddressFields
}

// ListSavedAddresses asks the dispatcher to present the sender's saved
// addresses as a pick list.
type ListSavedAddresses struct{}

// ReuseAddress re-saves a previously stored address as the delivery
// address for the current order.
type ReuseAddress struct {
	AddressID string
}

// UpdateReferrer records the ad click that brought the sender in.
type UpdateReferrer struct {
	SourceURL string
	SourceID  string
}

// TriggerAutoDial fires the CRM auto-dial hook after a call-me lead.
type TriggerAutoDial struct {
	Phone string
}

func (SendText) isAction()           {}
func (SendButtons) isAction()        {}
func (SendList) isAction()           {}
func (CreateLead) isAction()         {}
func (CreatePaymentLink) isAction()  {}
func (SaveAddress) isAction()        {}
func (ListSavedAddresses) isAction() {}
func (ReuseAddress) isAction()       {}
func (UpdateReferrer) isAction()     {}
func (TriggerAutoDial) isAction()    {}
