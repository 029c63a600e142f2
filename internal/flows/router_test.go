package flows

import (
	"testing"

	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

func testRouter() *Router {
	return NewRouter(Treatment{}, LeadAppointment{}, CartCheckout{}, AddressCollection{})
}

func leadBinding() tenant.Binding {
	return tenant.Binding{PhoneNumberID: "367633743092037", DedicatedLeadNumber: true}
}

func plainBinding() tenant.Binding {
	return tenant.Binding{PhoneNumberID: "111222333"}
}

func textEvent(text string) webhook.InboundEvent {
	return webhook.InboundEvent{Kind: webhook.KindText, SenderID: "919876543210", Text: text}
}

func replyEvent(kind webhook.Kind, id, title string) webhook.InboundEvent {
	return webhook.InboundEvent{Kind: kind, SenderID: "919876543210", Reply: webhook.Reply{ID: id, Title: title}}
}

func TestBookingKeywordStartsLeadFlowOnDedicatedNumber(t *testing.T) {
	r := testRouter()
	d := r.Route(textEvent("Hi, I want to book an appointment"), "", State{}, leadBinding())
	if d.StartFlow != tenant.FlowLeadAppointment {
		t.Fatalf("start flow = %q, want %q", d.StartFlow, tenant.FlowLeadAppointment)
	}
	if d.ContinueFlow != "" || d.AbandonFlow != "" {
		t.Errorf("unexpected decision %+v", d)
	}
}

func TestBookingKeywordOnOtherNumberFallsBackToGreeting(t *testing.T) {
	r := testRouter()
	// The lead flow is pinned to its dedicated number; the greeting
	// token still starts the treatment flow.
	d := r.Route(textEvent("Hi, I want to book an appointment"), "", State{}, plainBinding())
	if d.StartFlow != tenant.FlowTreatment {
		t.Fatalf("start flow = %q, want %q", d.StartFlow, tenant.FlowTreatment)
	}
}

func TestPureBookingKeywordOnOtherNumberStartsNothing(t *testing.T) {
	r := testRouter()
	d := r.Route(textEvent("book consultation"), "", State{}, plainBinding())
	if d.StartFlow != "" {
		t.Fatalf("start flow = %q, want none", d.StartFlow)
	}
}

func TestOrderEventStartsCartFlow(t *testing.T) {
	r := testRouter()
	ev := webhook.InboundEvent{
		Kind:      webhook.KindOrder,
		SenderID:  "919876543210",
		MessageID: "wamid.order1",
		Order:     []webhook.OrderItem{{ProductID: "SKU1", Quantity: 1, ItemPrice: 100}},
	}
	d := r.Route(ev, "", State{}, plainBinding())
	if d.StartFlow != tenant.FlowCartCheckout {
		t.Fatalf("start flow = %q, want %q", d.StartFlow, tenant.FlowCartCheckout)
	}
}

func TestActiveFlowConsumesMatchingEvent(t *testing.T) {
	r := testRouter()
	st := State{KeyStep: stepCitySelection}
	d := r.Route(replyEvent(webhook.KindListReply, "city_hyderabad", "Hyderabad"), tenant.FlowLeadAppointment, st, leadBinding())
	if d.ContinueFlow != tenant.FlowLeadAppointment {
		t.Fatalf("continue flow = %q, want %q", d.ContinueFlow, tenant.FlowLeadAppointment)
	}
	if d.AbandonFlow != "" || d.StartFlow != "" {
		t.Errorf("unexpected decision %+v", d)
	}
}

func TestUnrelatedEventAbandonsActiveFlow(t *testing.T) {
	r := testRouter()
	st := State{KeyStep: stepClinicSelection, keySelectedCity: "Hyderabad"}
	ev := webhook.InboundEvent{
		Kind:      webhook.KindOrder,
		SenderID:  "919876543210",
		MessageID: "wamid.order2",
		Order:     []webhook.OrderItem{{ProductID: "SKU1", Quantity: 1, ItemPrice: 100}},
	}
	d := r.Route(ev, tenant.FlowLeadAppointment, st, leadBinding())
	if d.AbandonFlow != tenant.FlowLeadAppointment {
		t.Fatalf("abandon flow = %q, want %q", d.AbandonFlow, tenant.FlowLeadAppointment)
	}
	if d.StartFlow != tenant.FlowCartCheckout {
		t.Fatalf("start flow = %q, want %q", d.StartFlow, tenant.FlowCartCheckout)
	}
}

func TestDisabledFlowDoesNotStart(t *testing.T) {
	r := testRouter()
	binding := tenant.Binding{
		PhoneNumberID: "111222333",
		EnabledFlows:  map[string]bool{tenant.FlowTreatment: true},
	}
	d := r.Route(webhook.InboundEvent{
		Kind:      webhook.KindOrder,
		SenderID:  "919876543210",
		MessageID: "wamid.order3",
		Order:     []webhook.OrderItem{{ProductID: "SKU1", Quantity: 1, ItemPrice: 100}},
	}, "", State{}, binding)
	if d.StartFlow != "" {
		t.Fatalf("start flow = %q, want none (cart disabled)", d.StartFlow)
	}
}

func TestCategoryButtonStartsTreatmentFlow(t *testing.T) {
	r := testRouter()
	d := r.Route(replyEvent(webhook.KindButtonReply, "skin", "Skin"), "", State{}, plainBinding())
	if d.StartFlow != tenant.FlowTreatment {
		t.Fatalf("start flow = %q, want %q", d.StartFlow, tenant.FlowTreatment)
	}
}
