package flows

import (
	"regexp"
	"strings"

	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

// Address collection steps and state keys.
const (
	stepMethodChoice = "method_choice"
	// StepCollecting is exported so the dispatcher can drop a sender
	// back into manual entry when their saved-address list is empty.
	StepCollecting    = "collecting"
	stepChoosingSaved = "choosing_saved"

	keyAddrName    = "addr_name"
	keyAddrPhone   = "addr_phone"
	keyAddrStreet  = "addr_street"
	keyAddrCity    = "addr_city"
	keyAddrState   = "addr_state"
	keyAddrPincode = "addr_pincode"
)

var (
	nameRe    = regexp.MustCompile(`^[A-Za-z ]{2,50}$`)
	pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	digitRe   = regexp.MustCompile(`\d`)
)

// AddressCollection gathers a complete delivery address by whichever
// route the sender prefers: a shared location pin, typed text, a flow
// form, or a previously saved address. SaveAddress is only emitted once
// every mandatory field validates.
type AddressCollection struct{}

func (AddressCollection) Name() string { return tenant.FlowAddress }

func (AddressCollection) CanContinue(ev webhook.InboundEvent, st State) bool {
	switch st[KeyStep] {
	case stepMethodChoice:
		if ev.Kind != webhook.KindButtonReply && ev.Kind != webhook.KindListReply {
			return false
		}
		switch ev.Reply.ID {
		case "use_location", "enter_manually", "saved_address":
			return true
		}
		return false
	case StepCollecting:
		return ev.Kind == webhook.KindText || ev.Kind == webhook.KindLocation || ev.Kind == webhook.KindFlowReply
	case stepChoosingSaved:
		return isReply(ev) && strings.HasPrefix(ev.Reply.ID, "addr_")
	}
	return false
}

func (AddressCollection) Start(ev webhook.InboundEvent, st State) (State, []Action) {
	next := st.Clone()
	next[KeyStep] = stepMethodChoice
	return next, []Action{SendButtons{
		Body: "📦 Where should we deliver your order?\nChoose how you'd like to share your address:",
		Buttons: []Button{
			{ID: "use_location", Title: "📍 Share Location"},
			{ID: "enter_manually", Title: "✍️ Type Address"},
			{ID: "saved_address", Title: "📋 Saved Address"},
		},
	}}
}

func (a AddressCollection) Advance(ev webhook.InboundEvent, st State) (State, []Action) {
	next := st.Clone()
	switch st[KeyStep] {
	case stepMethodChoice:
		switch ev.Reply.ID {
		case "use_location":
			next[KeyStep] = StepCollecting
			return next, []Action{SendText{Body: "Please share your location pin using the 📎 attachment menu."}}
		case "enter_manually":
			next[KeyStep] = StepCollecting
			return next, []Action{SendText{Body: manualPrompt}}
		case "saved_address":
			next[KeyStep] = stepChoosingSaved
			return next, []Action{ListSavedAddresses{}}
		}
		return next, nil

	case StepCollecting:
		a.absorb(ev, next)
		fields, missing := collectFields(next)
		if len(missing) > 0 {
			return next, []Action{SendText{
				Body: "Almost there! I still need: " + strings.Join(missing, ", ") + ".\n\n" + manualPrompt,
			}}
		}
		next[KeyStep] = StepDone
		return next, []Action{
			SaveAddress{Fields: fields},
			SendText{Body: "✅ Address saved!\n\n" + formatAddress(fields)},
		}

	case stepChoosingSaved:
		next[KeyStep] = StepDone
		return next, []Action{
			ReuseAddress{AddressID: strings.TrimPrefix(ev.Reply.ID, "addr_")},
			SendText{Body: "✅ We'll deliver to your saved address."},
		}
	}
	return next, nil
}

const manualPrompt = "Please send your address like this:\n" +
	"Name: Priya Sharma\n" +
	"Phone: 9876543210\n" +
	"Street: 12-3 MG Road\n" +
	"City: Hyderabad\n" +
	"State: Telangana\n" +
	"Pincode: 500034"

// absorb merges whatever the event carries into the partial address.
func (AddressCollection) absorb(ev webhook.InboundEvent, st State) {
	switch ev.Kind {
	case webhook.KindLocation:
		if ev.Address != "" {
			st[keyAddrStreet] = ev.Address
		}
		if st[keyAddrPhone] == "" {
			if phone := utils.NormalizePhone(ev.SenderID); phone != "" {
				st[keyAddrPhone] = phone
			}
		}
	case webhook.KindFlowReply:
		absorbFormFields(ev.FormFields, st)
	case webhook.KindText:
		absorbManualText(ev.Text, st)
	}
}

var formFieldAliases = map[string]string{
	"name":         keyAddrName,
	"full_name":    keyAddrName,
	"fullname":     keyAddrName,
	"phone":        keyAddrPhone,
	"phone_number": keyAddrPhone,
	"mobile":       keyAddrPhone,
	"street":       keyAddrStreet,
	"address":      keyAddrStreet,
	"address_line": keyAddrStreet,
	"house_street": keyAddrStreet,
	"locality":     keyAddrStreet,
	"city":         keyAddrCity,
	"state":        keyAddrState,
	"pincode":      keyAddrPincode,
	"pin_code":     keyAddrPincode,
	"zip":          keyAddrPincode,
}

func absorbFormFields(fields map[string]string, st State) {
	for k, v := range fields {
		key, ok := formFieldAliases[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			if key == keyAddrStreet && st[key] != "" {
				st[key] = st[key] + ", " + trimmed
				continue
			}
			st[key] = trimmed
		}
	}
}

// absorbManualText parses "Label: value" lines; lines without a label
// are appended to the street.
func absorbManualText(text string, st State) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, found := strings.Cut(line, ":")
		if !found {
			if st[keyAddrStreet] == "" {
				st[keyAddrStreet] = line
			} else {
				st[keyAddrStreet] = st[keyAddrStreet] + ", " + line
			}
			continue
		}
		key, ok := formFieldAliases[strings.ToLower(strings.TrimSpace(label))]
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			st[key] = trimmed
		}
	}
}

// collectFields validates the partial address and names what is still
// missing or malformed, in prompt order.
func collectFields(st State) (AddressFields, []string) {
	fields := AddressFields{
		Name:    st[keyAddrName],
		Phone:   utils.NormalizePhone(st[keyAddrPhone]),
		Street:  st[keyAddrStreet],
		City:    st[keyAddrCity],
		State:   st[keyAddrState],
		Pincode: st[keyAddrPincode],
	}

	var missing []string
	if !nameRe.MatchString(fields.Name) {
		missing = append(missing, "Name")
	}
	if len(fields.Phone) < 10 {
		missing = append(missing, "Phone")
	}
	if !digitRe.MatchString(fields.Street) {
		missing = append(missing, "Street (with house number)")
	}
	if !nameRe.MatchString(fields.City) {
		missing = append(missing, "City")
	}
	if !nameRe.MatchString(fields.State) {
		missing = append(missing, "State")
	}
	if !pincodeRe.MatchString(fields.Pincode) {
		missing = append(missing, "Pincode")
	}
	return fields, missing
}

func formatAddress(f AddressFields) string {
	return f.Name + "\n" + f.Street + "\n" + f.City + ", " + f.State + " " + f.Pincode + "\n📞 " + f.Phone
}
