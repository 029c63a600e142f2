package flows

import (
	"testing"

	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

func TestTreatmentGreetingShowsCategoryButtons(t *testing.T) {
	flow := Treatment{}
	ev := textEvent("hello")
	ev.SenderName = "Ravi"

	st, actions := flow.Start(ev, State{})
	if st[KeyStep] != stepCategoryPrompt {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepCategoryPrompt)
	}
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	btns, ok := actions[0].(SendButtons)
	if !ok {
		t.Fatalf("action = %T, want SendButtons", actions[0])
	}
	if len(btns.Buttons) != 3 {
		t.Fatalf("got %d buttons, want 3", len(btns.Buttons))
	}
}

func TestTreatmentCategoryButtonSkipsToConcernList(t *testing.T) {
	flow := Treatment{}
	st, actions := flow.Start(replyEvent(webhook.KindButtonReply, "skin", "Skin"), State{})
	if st[KeyStep] != stepConcernList {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepConcernList)
	}
	if st[keyCategory] != "skin" {
		t.Fatalf("category = %q", st[keyCategory])
	}
	list, ok := actions[0].(SendList)
	if !ok {
		t.Fatalf("action = %T, want SendList", actions[0])
	}
	if len(list.Rows) != 5 {
		t.Errorf("got %d skin concern rows, want 5", len(list.Rows))
	}
}

func TestTreatmentConcernSelectionStoresVerbatimTitle(t *testing.T) {
	flow := Treatment{}
	st := State{KeyStep: stepConcernList, keyCategory: "skin"}
	st, _ = flow.Advance(replyEvent(webhook.KindListReply, "pigmentation", "Pigmentation & Uneven Skin Tone"), st)
	if st[KeyConcern] != "Pigmentation & Uneven Skin Tone" {
		t.Fatalf("selected_concern = %q", st[KeyConcern])
	}
	if st[KeyStep] != stepBookingChoice {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepBookingChoice)
	}
}

func TestTreatmentFreeTextConcernFallback(t *testing.T) {
	flow := Treatment{}
	st := State{KeyStep: stepConcernList, keyCategory: "hair"}
	st, _ = flow.Advance(textEvent("hair transplant"), st)
	if st[KeyConcern] != "Hair Transplant" {
		t.Fatalf("selected_concern = %q, want title-matched concern", st[KeyConcern])
	}
}

func TestTreatmentUnmatchedConcernReprompts(t *testing.T) {
	flow := Treatment{}
	st := State{KeyStep: stepConcernList, keyCategory: "body"}
	next, actions := flow.Advance(textEvent("quantum flux"), st)
	if next[KeyConcern] != "" {
		t.Errorf("concern set from unmatched text: %q", next[KeyConcern])
	}
	if next[KeyStep] != stepConcernList {
		t.Errorf("step = %q, want unchanged", next[KeyStep])
	}
	if len(actions) == 0 {
		t.Error("no re-prompt emitted")
	}
}

func TestTreatmentBookAppointmentHandsOffToLeadFlow(t *testing.T) {
	flow := Treatment{}
	st := State{KeyStep: stepBookingChoice, KeyConcern: "Acne / Acne Scars"}
	st, _ = flow.Advance(replyEvent(webhook.KindButtonReply, "book_appointment", "📅 Book an Appointment"), st)
	if st[KeyHandoff] != tenant.FlowLeadAppointment {
		t.Fatalf("handoff = %q, want %q", st[KeyHandoff], tenant.FlowLeadAppointment)
	}
	if st[KeyConcern] != "Acne / Acne Scars" {
		t.Error("concern lost across hand-off")
	}
}

func TestTreatmentRequestCallbackEndsFlow(t *testing.T) {
	flow := Treatment{}
	st := State{KeyStep: stepBookingChoice, KeyConcern: "Weight Loss"}
	st, actions := flow.Advance(replyEvent(webhook.KindButtonReply, "request_callback", "📞 Request a Call Back"), st)
	if st[KeyStep] != StepDone {
		t.Fatalf("step = %q, want done", st[KeyStep])
	}
	if st[KeyHandoff] != "" {
		t.Error("unexpected hand-off on callback request")
	}
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1 ack", len(actions))
	}
}
