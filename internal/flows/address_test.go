package flows

import (
	"strings"
	"testing"

	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

func TestAddressManualEntryCompleteAddress(t *testing.T) {
	flow := AddressCollection{}
	st := State{KeyStep: StepCollecting}

	text := "Name: Priya Sharma\nPhone: 9876543210\nStreet: 12-3 MG Road\nCity: Hyderabad\nState: Telangana\nPincode: 500034"
	st, actions := flow.Advance(textEvent(text), st)

	if st[KeyStep] != StepDone {
		t.Fatalf("step = %q, want done", st[KeyStep])
	}
	var saved *SaveAddress
	for _, a := range actions {
		if s, ok := a.(SaveAddress); ok {
			saved = &s
		}
	}
	if saved == nil {
		t.Fatal("no SaveAddress emitted")
	}
	f := saved.Fields
	if f.Name != "Priya Sharma" || f.City != "Hyderabad" || f.State != "Telangana" || f.Pincode != "500034" {
		t.Errorf("fields = %+v", f)
	}
	if f.Phone != "919876543210" {
		t.Errorf("phone = %q, want normalized with country code", f.Phone)
	}
}

func TestAddressMissingFieldsReprompt(t *testing.T) {
	flow := AddressCollection{}
	st := State{KeyStep: StepCollecting}

	st, actions := flow.Advance(textEvent("Name: Priya Sharma\nCity: Hyderabad"), st)
	if st[KeyStep] != StepCollecting {
		t.Fatalf("step = %q, want still collecting", st[KeyStep])
	}
	for _, a := range actions {
		if _, ok := a.(SaveAddress); ok {
			t.Fatal("SaveAddress emitted with missing fields")
		}
	}
	txt, ok := actions[0].(SendText)
	if !ok {
		t.Fatalf("action = %T, want SendText", actions[0])
	}
	for _, want := range []string{"Phone", "Pincode", "Street"} {
		if !strings.Contains(txt.Body, want) {
			t.Errorf("re-prompt does not name %q: %s", want, txt.Body)
		}
	}
}

func TestAddressAccumulatesAcrossMessages(t *testing.T) {
	flow := AddressCollection{}
	st := State{KeyStep: StepCollecting}

	st, _ = flow.Advance(textEvent("Name: Priya Sharma\nPhone: 9876543210"), st)
	if st[KeyStep] != StepCollecting {
		t.Fatalf("step = %q after partial", st[KeyStep])
	}
	st, actions := flow.Advance(textEvent("Street: 12-3 MG Road\nCity: Hyderabad\nState: Telangana\nPincode: 500034"), st)
	if st[KeyStep] != StepDone {
		t.Fatalf("step = %q, want done after completion", st[KeyStep])
	}
	found := false
	for _, a := range actions {
		if _, ok := a.(SaveAddress); ok {
			found = true
		}
	}
	if !found {
		t.Fatal("no SaveAddress after accumulated completion")
	}
}

func TestAddressInvalidPincodeRejected(t *testing.T) {
	flow := AddressCollection{}
	st := State{KeyStep: StepCollecting}

	st, _ = flow.Advance(textEvent("Name: Priya Sharma\nPhone: 9876543210\nStreet: 12-3 MG Road\nCity: Hyderabad\nState: Telangana\nPincode: 0123"), st)
	if st[KeyStep] == StepDone {
		t.Fatal("completed with invalid pincode")
	}
}

func TestAddressLocationPinFillsStreet(t *testing.T) {
	flow := AddressCollection{}
	st := State{KeyStep: StepCollecting}
	ev := webhook.InboundEvent{
		Kind:     webhook.KindLocation,
		SenderID: "919876543210",
		Address:  "Oliva Towers 12 Banjara Hills",
	}
	st, _ = flow.Advance(ev, st)
	if st[keyAddrStreet] != "Oliva Towers 12 Banjara Hills" {
		t.Errorf("street = %q", st[keyAddrStreet])
	}
	if st[keyAddrPhone] == "" {
		t.Error("phone not defaulted from sender")
	}
}

func TestAddressFlowFormFields(t *testing.T) {
	flow := AddressCollection{}
	st := State{KeyStep: StepCollecting}
	ev := webhook.InboundEvent{
		Kind:     webhook.KindFlowReply,
		SenderID: "919876543210",
		FormFields: map[string]string{
			"full_name": "Priya Sharma",
			"phone":     "9876543210",
			"address":   "12-3 MG Road",
			"city":      "Hyderabad",
			"state":     "Telangana",
			"pincode":   "500034",
		},
	}
	st, actions := flow.Advance(ev, st)
	if st[KeyStep] != StepDone {
		t.Fatalf("step = %q, want done", st[KeyStep])
	}
	if len(actions) == 0 {
		t.Fatal("no actions emitted")
	}
}

func TestSavedAddressSelectionEmitsReuse(t *testing.T) {
	flow := AddressCollection{}
	st := State{KeyStep: stepChoosingSaved}
	st, actions := flow.Advance(replyEvent(webhook.KindListReply, "addr_9f2c9df2", "Priya Sharma"), st)
	if st[KeyStep] != StepDone {
		t.Fatalf("step = %q, want done", st[KeyStep])
	}
	reuse, ok := actions[0].(ReuseAddress)
	if !ok {
		t.Fatalf("action = %T, want ReuseAddress", actions[0])
	}
	if reuse.AddressID != "9f2c9df2" {
		t.Errorf("address id = %q", reuse.AddressID)
	}
}
