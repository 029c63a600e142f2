package flows

import (
	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

// Decision is the routing outcome for one inbound event. At most one of
// ContinueFlow and StartFlow is set; AbandonFlow names an active flow
// the event tore down first. All fields empty means the event is
// acknowledged and dropped.
type Decision struct {
	ContinueFlow string
	AbandonFlow  string
	StartFlow    string
}

var leadKeywords = []string{
	"book", "appointment", "inquire", "inquiry", "consultation", "visit", "schedule",
}

var greetingKeywords = []string{"hi", "hello", "hey", "namaste"}

// Router owns the flow decision order: an active flow that can consume
// the event wins; otherwise the active flow is abandoned and the event
// is re-examined as a fresh entry trigger.
type Router struct {
	handlers map[string]Handler
}

func NewRouter(handlers ...Handler) *Router {
	m := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		m[h.Name()] = h
	}
	return &Router{handlers: m}
}

func (r *Router) Handler(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Router) Route(ev webhook.InboundEvent, activeFlow string, st State, binding tenant.Binding) Decision {
	if activeFlow != "" {
		if h, ok := r.handlers[activeFlow]; ok && h.CanContinue(ev, st) {
			return Decision{ContinueFlow: activeFlow}
		}
		return Decision{
			AbandonFlow: activeFlow,
			StartFlow:   r.entryFlow(ev, binding),
		}
	}
	return Decision{StartFlow: r.entryFlow(ev, binding)}
}

// entryFlow maps an event with no (surviving) active flow to the flow it
// starts, or empty when it starts nothing.
func (r *Router) entryFlow(ev webhook.InboundEvent, binding tenant.Binding) string {
	allowed := func(flow string) bool {
		if _, ok := r.handlers[flow]; !ok {
			return false
		}
		if !binding.FlowEnabled(flow) {
			return false
		}
		// The lead flow only engages on its dedicated number.
		if flow == tenant.FlowLeadAppointment && !binding.DedicatedLeadNumber {
			return false
		}
		return true
	}

	switch ev.Kind {
	case webhook.KindOrder:
		if allowed(tenant.FlowCartCheckout) {
			return tenant.FlowCartCheckout
		}

	case webhook.KindButtonReply, webhook.KindListReply:
		switch ev.Reply.ID {
		case CategorySkin, CategoryHair, CategoryBody:
			if allowed(tenant.FlowTreatment) {
				return tenant.FlowTreatment
			}
		case "yes_book_appointment", "book_appointment":
			if allowed(tenant.FlowLeadAppointment) {
				return tenant.FlowLeadAppointment
			}
		case "add_address":
			if allowed(tenant.FlowAddress) {
				return tenant.FlowAddress
			}
		}

	case webhook.KindText:
		if utils.ContainsKeyword(ev.Text, leadKeywords) && allowed(tenant.FlowLeadAppointment) {
			return tenant.FlowLeadAppointment
		}
		if utils.ContainsKeyword(ev.Text, greetingKeywords) && allowed(tenant.FlowTreatment) {
			return tenant.FlowTreatment
		}
	}
	return ""
}
