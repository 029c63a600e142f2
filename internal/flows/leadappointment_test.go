package flows

import (
	"strings"
	"testing"
	"time"

	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

func findLead(t *testing.T, actions []Action) CreateLead {
	t.Helper()
	var leads []CreateLead
	for _, a := range actions {
		if lead, ok := a.(CreateLead); ok {
			leads = append(leads, lead)
		}
	}
	if len(leads) != 1 {
		t.Fatalf("got %d CreateLead actions, want exactly 1", len(leads))
	}
	return leads[0]
}

func hasAction[T Action](actions []Action) bool {
	for _, a := range actions {
		if _, ok := a.(T); ok {
			return true
		}
	}
	return false
}

func TestLeadFlowHappyPathCallMe(t *testing.T) {
	flow := LeadAppointment{}
	ev := textEvent("I want to book an appointment")
	ev.SenderName = "Priya Sharma"

	st, entryActions := flow.Start(ev, State{})
	if st[KeyStep] != stepCitySelection {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepCitySelection)
	}
	if !hasAction[SendList](entryActions) {
		t.Fatal("keyword entry did not present the city list")
	}

	st, actions := flow.Advance(replyEvent(webhook.KindListReply, "city_hyderabad", "Hyderabad"), st)
	if st[keySelectedCity] != "Hyderabad" {
		t.Fatalf("selected_city = %q", st[keySelectedCity])
	}
	if st[KeyStep] != stepClinicSelection {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepClinicSelection)
	}
	// Clinic list must be Hyderabad clinics only.
	var listed *SendList
	for _, a := range actions {
		if l, ok := a.(SendList); ok {
			listed = &l
		}
	}
	if listed == nil {
		t.Fatal("no SendList after city selection")
	}
	for _, row := range listed.Rows {
		if !strings.HasPrefix(row.ID, "clinic_hyderabad_") {
			t.Errorf("non-Hyderabad clinic row %q", row.ID)
		}
	}

	st, _ = flow.Advance(replyEvent(webhook.KindListReply, "clinic_hyderabad_banjara", "Banjara Hills"), st)
	if st[keySelectedClinic] != "Banjara Hills" {
		t.Fatalf("selected_clinic = %q", st[keySelectedClinic])
	}

	st, _ = flow.Advance(replyEvent(webhook.KindListReply, "week_this", "This Week"), st)
	if st[KeyStep] != stepSlotSelection {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepSlotSelection)
	}

	st, _ = flow.Advance(replyEvent(webhook.KindListReply, "slot_morning", "Morning (9-11 AM)"), st)
	if st[keySelectedTime] != "Morning (9-11 AM)" {
		t.Fatalf("selected_time = %q", st[keySelectedTime])
	}
	if st[KeyStep] != stepCallbackConfirm {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepCallbackConfirm)
	}

	final := replyEvent(webhook.KindButtonReply, "yes_callback", "Yes, Call Me")
	final.SenderName = "Priya Sharma"
	st, actions = flow.Advance(final, st)

	if st[KeyStep] != StepDone {
		t.Fatalf("step = %q, want done", st[KeyStep])
	}
	lead := findLead(t, actions)
	if lead.Fields.StatusTag != LeadStatusCallInitiated {
		t.Errorf("status tag = %q, want %q", lead.Fields.StatusTag, LeadStatusCallInitiated)
	}
	if lead.Fields.Name != "Priya Sharma" {
		t.Errorf("name = %q", lead.Fields.Name)
	}
	if lead.Fields.Phone != "919876543210" {
		t.Errorf("phone = %q", lead.Fields.Phone)
	}
	if !hasAction[TriggerAutoDial](actions) {
		t.Error("no TriggerAutoDial after yes_callback")
	}

	desc := lead.Fields.Description
	for _, want := range []string{"City: Hyderabad", "Clinic: Banjara Hills", "Preference: Morning (9-11 AM)", "Status: CALL_INITIATED"} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q: %s", want, desc)
		}
	}
	if !strings.Contains(desc, " | ") {
		t.Errorf("description not pipe-delimited: %s", desc)
	}
}

func TestKeywordEntrySkipsWelcomeQuestion(t *testing.T) {
	flow := LeadAppointment{}
	st, actions := flow.Start(textEvent("Hi, I want to book an appointment"), State{})
	if st[KeyStep] != stepCitySelection {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepCitySelection)
	}
	if hasAction[SendButtons](actions) {
		t.Error("welcome buttons sent for a keyword entry")
	}
	var list *SendList
	for _, a := range actions {
		if l, ok := a.(SendList); ok {
			list = &l
		}
	}
	if list == nil {
		t.Fatal("no city list sent")
	}
	if len(list.Rows) == 0 || list.Rows[0].ID != "city_hyderabad" {
		t.Errorf("first row = %+v, want the city rows", list.Rows)
	}
}

func TestBookingButtonEntriesSkipWelcomeQuestion(t *testing.T) {
	flow := LeadAppointment{}
	for _, id := range []string{"yes_book_appointment", "book_appointment"} {
		st, _ := flow.Start(replyEvent(webhook.KindButtonReply, id, ""), State{})
		if st[KeyStep] != stepCitySelection {
			t.Errorf("entry %q: step = %q, want %q", id, st[KeyStep], stepCitySelection)
		}
	}
}

func TestLeadDescriptionShapeIsStable(t *testing.T) {
	flow := LeadAppointment{}

	abandoned := findLead(t, flow.Abandon(State{
		KeyStep:         stepClinicSelection,
		keySelectedCity: "Hyderabad",
	}))
	completed := State{
		KeyStep:           stepCallbackConfirm,
		KeyConcern:        "Pigmentation & Uneven Skin Tone",
		keySelectedCity:   "Hyderabad",
		keySelectedClinic: "Banjara Hills",
		keySelectedWeek:   "2026-08-24 to 2026-08-30",
		keySelectedTime:   "Evening (5-7 PM)",
	}
	_, actions := flow.Advance(replyEvent(webhook.KindButtonReply, "no_callback", "No"), completed)
	full := findLead(t, actions)

	// Same segment count whether the sender dropped off early or walked
	// the whole flow.
	early := strings.Split(abandoned.Fields.Description, " | ")
	late := strings.Split(full.Fields.Description, " | ")
	if len(early) != len(late) {
		t.Fatalf("segment counts differ: %d vs %d\n%s\n%s",
			len(early), len(late), abandoned.Fields.Description, full.Fields.Description)
	}

	for _, want := range []string{"Preference: Not specified", "Treatment: Not specified"} {
		if !strings.Contains(abandoned.Fields.Description, want) {
			t.Errorf("abandoned description missing %q: %s", want, abandoned.Fields.Description)
		}
	}
	for _, want := range []string{"Preference: Evening (5-7 PM)", "Treatment: Pigmentation"} {
		if !strings.Contains(full.Fields.Description, want) {
			t.Errorf("completed description missing %q: %s", want, full.Fields.Description)
		}
	}
}

func TestLeadFlowNoCallbackKeepsDetails(t *testing.T) {
	flow := LeadAppointment{}
	st := State{
		KeyStep:           stepCallbackConfirm,
		keySelectedCity:   "Pune",
		keySelectedClinic: "Baner",
		keySelectedWeek:   "2026-08-24 to 2026-08-30",
		keySelectedTime:   "Evening (5-7 PM)",
	}
	st, actions := flow.Advance(replyEvent(webhook.KindButtonReply, "no_callback", "No, Keep Details"), st)
	lead := findLead(t, actions)
	if lead.Fields.StatusTag != LeadStatusPending {
		t.Errorf("status tag = %q, want %q", lead.Fields.StatusTag, LeadStatusPending)
	}
	if hasAction[TriggerAutoDial](actions) {
		t.Error("TriggerAutoDial emitted for no_callback")
	}
	if st[KeyLeadCreated] != "true" {
		t.Error("lead_created not marked")
	}
}

func TestAbandonMidFlowCreatesNoCallbackLead(t *testing.T) {
	flow := LeadAppointment{}
	st := State{
		KeyStep:         stepClinicSelection,
		keySelectedCity: "Hyderabad",
	}
	actions := flow.Abandon(st)
	lead := findLead(t, actions)
	if lead.Fields.StatusTag != LeadStatusNoCallback {
		t.Errorf("status tag = %q, want %q", lead.Fields.StatusTag, LeadStatusNoCallback)
	}
	if lead.Fields.Treatment != notSpecified {
		t.Errorf("treatment = %q, want %q", lead.Fields.Treatment, notSpecified)
	}
	if !strings.Contains(lead.Fields.Description, "Clinic: Not specified") {
		t.Errorf("description = %s", lead.Fields.Description)
	}
}

func TestAbandonAfterLeadCreatedEmitsNothing(t *testing.T) {
	flow := LeadAppointment{}
	st := State{KeyStep: stepCallbackConfirm, KeyLeadCreated: "true"}
	if actions := flow.Abandon(st); len(actions) != 0 {
		t.Fatalf("got %d actions, want 0", len(actions))
	}
}

func TestNotNowStillProducesLead(t *testing.T) {
	flow := LeadAppointment{}
	st := State{KeyStep: stepWelcome}
	st, actions := flow.Advance(replyEvent(webhook.KindButtonReply, "not_now", "Not Now"), st)
	lead := findLead(t, actions)
	if lead.Fields.StatusTag != LeadStatusNoCallback {
		t.Errorf("status tag = %q", lead.Fields.StatusTag)
	}
	if st[KeyStep] != StepDone {
		t.Errorf("step = %q, want done", st[KeyStep])
	}
}

func TestCustomDateMalformedReprompts(t *testing.T) {
	flow := LeadAppointment{}
	st := State{KeyStep: stepTimeSelection}

	st, _ = flow.Advance(replyEvent(webhook.KindListReply, "custom_date", "Pick a Date"), st)
	if st[keyWaitingForDate] != "true" {
		t.Fatal("waiting_for_custom_date not set")
	}

	before := st.Clone()
	st, actions := flow.Advance(textEvent("next tuesday maybe?"), st)
	if st[KeyStep] != before[KeyStep] || st[keyWaitingForDate] != "true" {
		t.Error("state changed on malformed date")
	}
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1 re-prompt", len(actions))
	}
	if _, ok := actions[0].(SendText); !ok {
		t.Fatalf("action = %T, want SendText", actions[0])
	}

	st, _ = flow.Advance(textEvent("04/09/2026"), st)
	if st[keySelectedDate] != "2026-09-04" {
		t.Errorf("selected_date = %q, want 2026-09-04", st[keySelectedDate])
	}
	if st[KeyStep] != stepSlotSelection {
		t.Errorf("step = %q, want %q", st[KeyStep], stepSlotSelection)
	}
}

func TestConcernHandoffMapsToCRMName(t *testing.T) {
	flow := LeadAppointment{}
	st := State{
		KeyStep:    stepCallbackConfirm,
		KeyConcern: "Pigmentation & Uneven Skin Tone",
	}
	_, actions := flow.Advance(replyEvent(webhook.KindButtonReply, "yes_callback", "Yes, Call Me"), st)
	lead := findLead(t, actions)
	if lead.Fields.Treatment != "Pigmentation" {
		t.Errorf("treatment = %q, want mapped CRM name", lead.Fields.Treatment)
	}
}

func TestUnmappedConcernFallsBackToRawLabel(t *testing.T) {
	flow := LeadAppointment{}
	st := State{
		KeyStep:    stepCallbackConfirm,
		KeyConcern: "Stretch Marks",
	}
	_, actions := flow.Advance(replyEvent(webhook.KindButtonReply, "no_callback", "No"), st)
	lead := findLead(t, actions)
	if lead.Fields.Treatment != "Stretch Marks" {
		t.Errorf("treatment = %q, want raw fallback", lead.Fields.Treatment)
	}
}

func TestWeekRangeSpansSevenDays(t *testing.T) {
	now := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	if got := WeekRange("week_this", now); got != "2026-08-27 to 2026-09-02" {
		t.Errorf("this week = %q", got)
	}
	if got := WeekRange("week_next", now); got != "2026-09-03 to 2026-09-09" {
		t.Errorf("next week = %q", got)
	}
}
