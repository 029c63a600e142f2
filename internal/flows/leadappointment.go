package flows

import (
	"strings"

	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

// Lead-appointment flow steps.
const (
	stepWelcome         = "welcome"
	stepCitySelection   = "city_selection"
	stepClinicSelection = "clinic_selection"
	stepTimeSelection   = "time_selection"
	stepSlotSelection   = "slot_selection"
	stepCallbackConfirm = "callback_confirmation"
)

// Lead-appointment state keys.
const (
	keySelectedCity   = "selected_city"
	keySelectedClinic = "selected_clinic"
	keyClinicID       = "clinic_id"
	keySelectedWeek   = "selected_week"
	keySelectedDate   = "selected_date"
	keySelectedTime   = "selected_time"
	keyWaitingForDate = "waiting_for_custom_date"
)

// Lead status tags.
const (
	LeadStatusCallInitiated = "CALL_INITIATED"
	LeadStatusPending       = "PENDING"
	LeadStatusNoCallback    = "NO_CALLBACK"
)

const leadSource = "WhatsApp Lead-to-Appointment Flow"

// notSpecified fills lead fields the sender never reached.
const notSpecified = "Not specified"

// LeadAppointment books a clinic appointment: city, clinic, time window,
// then a callback decision. Every sender who reaches the welcome step
// produces exactly one CRM lead, whichever way the conversation ends.
type LeadAppointment struct{}

func (LeadAppointment) Name() string { return tenant.FlowLeadAppointment }

func (LeadAppointment) CanContinue(ev webhook.InboundEvent, st State) bool {
	switch st[KeyStep] {
	case stepWelcome:
		if ev.Kind == webhook.KindButtonReply {
			return ev.Reply.ID == "yes_book_appointment" || ev.Reply.ID == "not_now"
		}
		return false
	case stepCitySelection:
		if isReply(ev) && strings.HasPrefix(ev.Reply.ID, "city_") {
			return true
		}
		return ev.Kind == webhook.KindText && matchRowTitle(ev.Text, cityRows) != ""
	case stepClinicSelection:
		if isReply(ev) && strings.HasPrefix(ev.Reply.ID, "clinic_") {
			return true
		}
		return ev.Kind == webhook.KindText && matchRowTitle(ev.Text, ClinicsForCity(st[keySelectedCity])) != ""
	case stepTimeSelection:
		if st[keyWaitingForDate] == "true" {
			return ev.Kind == webhook.KindText || isReply(ev)
		}
		return isReply(ev) && (strings.HasPrefix(ev.Reply.ID, "week_") || ev.Reply.ID == "custom_date")
	case stepSlotSelection:
		if isReply(ev) && strings.HasPrefix(ev.Reply.ID, "slot_") {
			return true
		}
		return ev.Kind == webhook.KindText && matchRowTitle(ev.Text, slotRows) != ""
	case stepCallbackConfirm:
		if ev.Kind != webhook.KindButtonReply {
			return false
		}
		return ev.Reply.ID == "yes_callback" || ev.Reply.ID == "no_callback"
	}
	return false
}

func (l LeadAppointment) Start(ev webhook.InboundEvent, st State) (State, []Action) {
	next := st.Clone()
	// Keyword texts and booking CTA buttons already carry booking
	// intent, as does a treatment hand-off with the concern set: all of
	// them land straight on the city list.
	switch {
	case ev.Kind == webhook.KindText:
		return l.toCitySelection(next)
	case isReply(ev) && (ev.Reply.ID == "yes_book_appointment" || ev.Reply.ID == "book_appointment"):
		return l.toCitySelection(next)
	case st[KeyConcern] != "":
		return l.toCitySelection(next)
	}

	next[KeyStep] = stepWelcome
	return next, []Action{SendButtons{
		Body: "Welcome to Oliva Clinics! ✨\nWould you like to book an appointment with our experts?",
		Buttons: []Button{
			{ID: "yes_book_appointment", Title: "Yes, Book Now"},
			{ID: "not_now", Title: "Not Now"},
		},
	}}
}

func (l LeadAppointment) Advance(ev webhook.InboundEvent, st State) (State, []Action) {
	next := st.Clone()
	switch st[KeyStep] {
	case stepWelcome:
		if ev.Reply.ID == "not_now" {
			actions := []Action{SendText{Body: "No worries! We're here whenever you're ready. 😊"}}
			actions = append(actions, l.emitLead(next, LeadStatusNoCallback, ev)...)
			next[KeyStep] = StepDone
			return next, actions
		}
		return l.toCitySelection(next)

	case stepCitySelection:
		city, ok := CityName(ev.Reply.ID)
		if !ok {
			if matched := matchRowTitle(ev.Text, cityRows); matched != "" {
				city, ok = matched, true
			}
		}
		if !ok {
			return next, []Action{
				SendText{Body: "❌ Invalid city selection. Please try again."},
				citySelectionList(),
			}
		}
		next[keySelectedCity] = city
		next[KeyStep] = stepClinicSelection
		return next, []Action{SendList{
			Body:         "Great! Please choose your preferred clinic location in " + city + ".",
			ButtonLabel:  "Choose Clinic",
			SectionTitle: city + " Clinics",
			Rows:         ClinicsForCity(city),
		}}

	case stepClinicSelection:
		clinicID := ev.Reply.ID
		if clinicID == "" {
			if matched := matchRowID(ev.Text, ClinicsForCity(st[keySelectedCity])); matched != "" {
				clinicID = matched
			}
		}
		clinic := ClinicTitle(clinicID)
		next[keySelectedClinic] = clinic
		next[keyClinicID] = clinicID
		next[KeyStep] = stepTimeSelection
		return next, []Action{
			SendText{Body: "✅ Perfect! You selected " + clinic + "."},
			weekSelectionList(),
		}

	case stepTimeSelection:
		if st[keyWaitingForDate] == "true" && ev.Kind == webhook.KindText {
			date, ok := ParseCustomDate(ev.Text)
			if !ok {
				// Malformed date: re-prompt, state unchanged.
				return next, []Action{SendText{
					Body: "Sorry, I couldn't read that date. Please send it as YYYY-MM-DD (for example 2026-09-04).",
				}}
			}
			next[keySelectedDate] = date
			delete(next, keyWaitingForDate)
			next[KeyStep] = stepSlotSelection
			return next, []Action{slotSelectionList()}
		}
		switch ev.Reply.ID {
		case "custom_date":
			next[keyWaitingForDate] = "true"
			return next, []Action{SendText{
				Body: "Please type your preferred date (YYYY-MM-DD).",
			}}
		case "week_this", "week_next":
			next[keySelectedWeek] = WeekRange(ev.Reply.ID, ev.Timestamp)
			next[KeyStep] = stepSlotSelection
			return next, []Action{slotSelectionList()}
		}
		return next, []Action{weekSelectionList()}

	case stepSlotSelection:
		slotID := ev.Reply.ID
		if slotID == "" {
			slotID = matchRowID(ev.Text, slotRows)
		}
		next[keySelectedTime] = SlotName(slotID)
		next[KeyStep] = stepCallbackConfirm
		return next, []Action{SendButtons{
			Body: "Almost done! Would you like our team to call you right away to confirm?",
			Buttons: []Button{
				{ID: "yes_callback", Title: "Yes, Call Me"},
				{ID: "no_callback", Title: "No, Keep Details"},
			},
		}}

	case stepCallbackConfirm:
		switch ev.Reply.ID {
		case "yes_callback":
			actions := []Action{SendText{
				Body: "Thank you! 🙏 Our team is calling you now to confirm your appointment.",
			}}
			actions = append(actions, l.emitLead(next, LeadStatusCallInitiated, ev)...)
			actions = append(actions, TriggerAutoDial{Phone: utils.NormalizePhone(ev.SenderID)})
			next[KeyStep] = StepDone
			return next, actions
		case "no_callback":
			actions := []Action{SendText{
				Body: "Thank you! 🙏 Your details are saved. Our team will reach out to confirm your appointment.",
			}}
			actions = append(actions, l.emitLead(next, LeadStatusPending, ev)...)
			next[KeyStep] = StepDone
			return next, actions
		}
		return next, nil
	}
	return next, nil
}

// Abandon covers TTL expiry and unrelated-message drop-offs: whatever
// the sender filled in so far still becomes a lead, exactly once.
func (l LeadAppointment) Abandon(st State) []Action {
	if st[KeyLeadCreated] == "true" {
		return nil
	}
	fields := buildLeadFields(st, LeadStatusNoCallback, "", "")
	return []Action{CreateLead{Fields: fields}}
}

func (l LeadAppointment) toCitySelection(st State) (State, []Action) {
	st[KeyStep] = stepCitySelection
	return st, []Action{citySelectionList()}
}

// emitLead marks the session so neither the abandon path nor a replay
// can create a second lead for the same entrant.
func (LeadAppointment) emitLead(st State, status string, ev webhook.InboundEvent) []Action {
	if st[KeyLeadCreated] == "true" {
		return nil
	}
	st[KeyLeadCreated] = "true"
	return []Action{CreateLead{Fields: buildLeadFields(st, status, ev.SenderName, ev.SenderID)}}
}

func buildLeadFields(st State, status, senderName, senderID string) LeadFields {
	name := strings.TrimSpace(senderName)
	if name == "" {
		name = "Unknown"
	}
	phone := utils.NormalizePhone(senderID)
	if phone == "" {
		phone = notSpecified
	}

	treatment := notSpecified
	if concern := st[KeyConcern]; concern != "" {
		treatment = CRMConcernName(concern)
	}

	city := orNotSpecified(st[keySelectedCity])
	clinic := orNotSpecified(st[keySelectedClinic])
	date := st[keySelectedDate]
	if date == "" {
		date = orNotSpecified(st[keySelectedWeek])
	}

	// Segment count is fixed: unreached fields get the placeholder so
	// downstream description parsing stays positional.
	parts := []string{
		"Lead from " + leadSource,
		"City: " + city,
		"Clinic: " + clinic,
		"Preferred Date: " + date,
		"Preference: " + orNotSpecified(st[keySelectedTime]),
		"Treatment: " + treatment,
		"Status: " + status,
	}

	return LeadFields{
		Name:        name,
		Phone:       phone,
		Source:      leadSource,
		StatusTag:   status,
		Treatment:   treatment,
		Description: strings.Join(parts, " | "),
	}
}

func orNotSpecified(v string) string {
	if strings.TrimSpace(v) == "" {
		return notSpecified
	}
	return v
}

func citySelectionList() Action {
	return SendList{
		Header:       "City Selection",
		Body:         "Please select your city from the list below 👇",
		ButtonLabel:  "Choose City",
		SectionTitle: "Available Cities",
		Rows:         cityRows,
	}
}

func weekSelectionList() Action {
	return SendList{
		Body:         "When would you like to visit us?",
		ButtonLabel:  "Pick a Time",
		SectionTitle: "Appointment Window",
		Rows:         weekRows,
	}
}

func slotSelectionList() Action {
	return SendList{
		Body:         "Please choose a convenient time slot:",
		ButtonLabel:  "Choose Slot",
		SectionTitle: "Time Slots",
		Rows:         slotRows,
	}
}

func isReply(ev webhook.InboundEvent) bool {
	return ev.Kind == webhook.KindButtonReply || ev.Kind == webhook.KindListReply
}

// matchRowTitle returns the title of the row whose title matches the
// free text, or empty.
func matchRowTitle(text string, rows []Row) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	titles := make([]string, len(rows))
	for i, row := range rows {
		titles[i] = row.Title
	}
	matched, ok := utils.MatchTitle(text, titles)
	if !ok {
		return ""
	}
	return matched
}

// matchRowID is matchRowTitle but returns the row ID.
func matchRowID(text string, rows []Row) string {
	title := matchRowTitle(text, rows)
	if title == "" {
		return ""
	}
	for _, row := range rows {
		if row.Title == title {
			return row.ID
		}
	}
	return ""
}
