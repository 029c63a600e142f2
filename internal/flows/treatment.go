package flows

import (
	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

// Treatment flow steps.
const (
	stepCategoryPrompt = "category_prompt"
	stepConcernList    = "concern_list"
	stepBookingChoice  = "booking_choice"
)

const (
	keyCategory = "category"
)

// Treatment walks a sender from a greeting to a chosen concern and a
// booking decision. The chosen concern survives the flow in
// selected_concern so the lead-appointment flow can pick it up.
type Treatment struct{}

func (Treatment) Name() string { return tenant.FlowTreatment }

func (Treatment) CanContinue(ev webhook.InboundEvent, st State) bool {
	switch st[KeyStep] {
	case stepCategoryPrompt:
		if ev.Kind == webhook.KindButtonReply || ev.Kind == webhook.KindListReply {
			return isCategory(ev.Reply.ID)
		}
		return ev.Kind == webhook.KindText && isCategory(utils.NormalizeText(ev.Text))
	case stepConcernList:
		return ev.Kind == webhook.KindListReply || ev.Kind == webhook.KindButtonReply || ev.Kind == webhook.KindText
	case stepBookingChoice:
		if ev.Kind != webhook.KindButtonReply {
			return false
		}
		switch ev.Reply.ID {
		case "book_appointment", "request_callback", "not_now":
			return true
		}
		return false
	}
	return false
}

func (t Treatment) Start(ev webhook.InboundEvent, st State) (State, []Action) {
	next := st.Clone()
	// A category button from a template ad lands the sender straight on
	// the concern list.
	if (ev.Kind == webhook.KindButtonReply || ev.Kind == webhook.KindListReply) && isCategory(ev.Reply.ID) {
		return t.toConcernList(next, ev.Reply.ID)
	}

	next[KeyStep] = stepCategoryPrompt
	return next, []Action{categoryPrompt(ev.SenderName)}
}

func (t Treatment) Advance(ev webhook.InboundEvent, st State) (State, []Action) {
	next := st.Clone()
	switch st[KeyStep] {
	case stepCategoryPrompt:
		category := ev.Reply.ID
		if category == "" {
			category = utils.NormalizeText(ev.Text)
		}
		if !isCategory(category) {
			return next, []Action{categoryPrompt(ev.SenderName)}
		}
		return t.toConcernList(next, category)

	case stepConcernList:
		title, ok := t.resolveConcern(ev, st[keyCategory])
		if !ok {
			return next, []Action{
				SendText{Body: "Sorry, I didn't catch that. Please pick a concern from the list."},
				concernList(st[keyCategory]),
			}
		}
		next[KeyConcern] = title
		next[KeyStep] = stepBookingChoice
		return next, []Action{SendButtons{
			Body: "Got it! How would you like to proceed with *" + title + "*?",
			Buttons: []Button{
				{ID: "book_appointment", Title: "📅 Book an Appointment"},
				{ID: "request_callback", Title: "📞 Request a Call Back"},
			},
		}}

	case stepBookingChoice:
		switch ev.Reply.ID {
		case "book_appointment":
			next[KeyHandoff] = tenant.FlowLeadAppointment
			next[KeyStep] = StepDone
			return next, nil
		case "request_callback":
			next[KeyStep] = StepDone
			return next, []Action{SendText{
				Body: "Thank you! Our team will call you back shortly to discuss " + st[KeyConcern] + ".",
			}}
		case "not_now":
			next[KeyStep] = StepDone
			return next, []Action{SendText{
				Body: "No problem! Message us anytime when you're ready. 😊",
			}}
		}
		return next, nil
	}
	return next, nil
}

func (Treatment) toConcernList(st State, category string) (State, []Action) {
	st[keyCategory] = category
	st[KeyStep] = stepConcernList
	return st, []Action{concernList(category)}
}

// resolveConcern matches a list reply by row ID, then falls back to
// normalized title matching for free-text answers.
func (Treatment) resolveConcern(ev webhook.InboundEvent, category string) (string, bool) {
	if ev.Reply.ID != "" {
		if title, ok := ConcernTitle(category, ev.Reply.ID); ok {
			return title, true
		}
		if ev.Reply.Title != "" {
			return ev.Reply.Title, true
		}
	}
	if ev.Kind == webhook.KindText {
		rows := ConcernsForCategory(category)
		titles := make([]string, len(rows))
		for i, row := range rows {
			titles[i] = row.Title
		}
		if matched, ok := utils.MatchTitle(ev.Text, titles); ok {
			return matched, true
		}
	}
	return "", false
}

func isCategory(id string) bool {
	switch id {
	case CategorySkin, CategoryHair, CategoryBody:
		return true
	}
	return false
}

func categoryPrompt(name string) Action {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	return SendButtons{
		Body: greeting + "! 👋 Welcome to Oliva Clinics.\nPlease choose your area of concern:",
		Buttons: []Button{
			{ID: CategorySkin, Title: "Skin"},
			{ID: CategoryHair, Title: "Hair"},
			{ID: CategoryBody, Title: "Body"},
		},
	}
}

func concernList(category string) Action {
	label := "concern"
	switch category {
	case CategorySkin:
		label = "Skin concern"
	case CategoryHair:
		label = "Hair concern"
	case CategoryBody:
		label = "Body concern"
	}
	return SendList{
		Body:         "Please select your " + label + ":",
		ButtonLabel:  "View Options",
		SectionTitle: "Available Options",
		Rows:         ConcernsForCategory(category),
	}
}
