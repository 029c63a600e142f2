package webhook

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"go.uber.org/zap"
)

// Status classifies the outcome of normalizing one webhook body.
type Status int

const (
	// StatusOK means at least zero well-formed messages were extracted.
	StatusOK Status = iota
	// StatusIgnorable marks delivery-status callbacks: acknowledged but
	// never dispatched.
	StatusIgnorable
	// StatusInvalid marks bodies that are not parseable JSON. The caller
	// still acks with 200 to avoid provider retry storms.
	StatusInvalid
)

// Result is what Normalize hands back for one raw webhook body.
type Result struct {
	Status Status
	Events []InboundEvent
}

// Wire structures covering the nested entry[].changes[].value envelope.
// The flattened {contacts, messages, phone_number_id} shape reuses
// wireValue's field set directly.

type wireEnvelope struct {
	Object string      `json:"object"`
	Entry  []wireEntry `json:"entry"`
}

type wireEntry struct {
	ID      string       `json:"id"`
	Changes []wireChange `json:"changes"`
}

type wireChange struct {
	Value wireValue `json:"value"`
	Field string    `json:"field"`
}

type wireValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []wireContact     `json:"contacts,omitempty"`
	Messages []json.RawMessage `json:"messages,omitempty"`
	Statuses []json.RawMessage `json:"statuses,omitempty"`

	// Flattened-shape fields (absent in the nested envelope).
	PhoneNumberID string `json:"phone_number_id,omitempty"`
}

type wireContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

type wireMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
		NfmReply *struct {
			Name         string `json:"name"`
			Body         string `json:"body"`
			ResponseJSON string `json:"response_json"`
		} `json:"nfm_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Button *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button,omitempty"`
	Order *struct {
		CatalogID    string `json:"catalog_id"`
		ProductItems []struct {
			ProductRetailerID string  `json:"product_retailer_id"`
			Quantity          int     `json:"quantity"`
			ItemPrice         float64 `json:"item_price"`
			Currency          string  `json:"currency"`
		} `json:"product_items"`
	} `json:"order,omitempty"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location,omitempty"`
	Referral *struct {
		SourceURL  string `json:"source_url"`
		SourceID   string `json:"source_id"`
		SourceType string `json:"source_type"`
		Headline   string `json:"headline"`
	} `json:"referral,omitempty"`
}

// Normalize parses one raw webhook body into a Result. It is a total
// function over arbitrary bytes: bad UTF-8 is repaired, bad JSON yields
// StatusInvalid, and a malformed message is skipped without failing its
// siblings.
func Normalize(raw []byte) Result {
	if !utf8.Valid(raw) {
		utils.Zlog.Warn("Webhook body contained invalid UTF-8, repairing",
			zap.Int("bytes", len(raw)))
		raw = []byte(strings.ToValidUTF8(string(raw), string(utf8.RuneError)))
	}

	var envelope wireEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Entry) > 0 {
		return normalizeEnvelope(envelope)
	}

	var flat wireValue
	if err := json.Unmarshal(raw, &flat); err != nil {
		utils.Zlog.Error("Webhook body is not valid JSON",
			zap.Error(err),
			zap.String("raw", truncate(string(raw), 500)))
		return Result{Status: StatusInvalid}
	}
	if len(flat.Messages) == 0 && len(flat.Statuses) == 0 && len(flat.Contacts) == 0 {
		// Parseable JSON but not a recognizable webhook shape.
		utils.Zlog.Error("Webhook body has no recognizable payload shape",
			zap.String("raw", truncate(string(raw), 500)))
		return Result{Status: StatusInvalid}
	}

	tenantPhoneID := flat.PhoneNumberID
	if tenantPhoneID == "" {
		tenantPhoneID = flat.Metadata.PhoneNumberID
	}
	return normalizeValue(flat, tenantPhoneID, flat.Metadata.DisplayPhoneNumber)
}

func normalizeEnvelope(envelope wireEnvelope) Result {
	combined := Result{Status: StatusOK}
	sawMessages := false
	sawStatuses := false

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			if len(value.Messages) > 0 {
				sawMessages = true
			}
			if len(value.Statuses) > 0 {
				sawStatuses = true
			}
			res := normalizeValue(value, value.Metadata.PhoneNumberID, value.Metadata.DisplayPhoneNumber)
			combined.Events = append(combined.Events, res.Events...)
		}
	}

	if !sawMessages && sawStatuses {
		return Result{Status: StatusIgnorable}
	}
	return combined
}

func normalizeValue(value wireValue, tenantPhoneID, displayNumber string) Result {
	if len(value.Messages) == 0 {
		if len(value.Statuses) > 0 {
			return Result{Status: StatusIgnorable}
		}
		return Result{Status: StatusOK}
	}

	names := make(map[string]string, len(value.Contacts))
	for _, contact := range value.Contacts {
		if contact.WaID != "" {
			names[contact.WaID] = contact.Profile.Name
		}
	}

	res := Result{Status: StatusOK}
	for _, rawMsg := range value.Messages {
		ev, ok := normalizeMessage(rawMsg, tenantPhoneID, displayNumber, names)
		if !ok {
			continue
		}
		res.Events = append(res.Events, ev)
	}
	return res
}

func normalizeMessage(raw json.RawMessage, tenantPhoneID, displayNumber string, names map[string]string) (InboundEvent, bool) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		utils.Zlog.Warn("Skipping unparseable message in webhook batch", zap.Error(err))
		return InboundEvent{}, false
	}
	if msg.From == "" || msg.ID == "" {
		utils.Zlog.Warn("Skipping message missing required fields",
			zap.String("from", msg.From),
			zap.String("id", msg.ID))
		return InboundEvent{}, false
	}

	ev := InboundEvent{
		TenantPhoneID: tenantPhoneID,
		DisplayNumber: displayNumber,
		SenderID:      msg.From,
		SenderName:    names[msg.From],
		MessageID:     msg.ID,
		Timestamp:     parseTimestamp(msg.Timestamp),
	}
	if msg.Referral != nil {
		ev.Referral = &Referral{
			SourceURL:  msg.Referral.SourceURL,
			SourceID:   msg.Referral.SourceID,
			SourceType: msg.Referral.SourceType,
			Headline:   msg.Referral.Headline,
		}
	}

	switch msg.Type {
	case "text":
		ev.Kind = KindText
		if msg.Text != nil {
			ev.Text = msg.Text.Body
		}

	case "button":
		// Template quick replies arrive as a top-level "button" object.
		ev.Kind = KindButtonReply
		if msg.Button != nil {
			ev.Reply = Reply{ID: msg.Button.Payload, Title: msg.Button.Text}
			if ev.Reply.ID == "" {
				ev.Reply.ID = utils.NormalizeText(msg.Button.Text)
			}
		}

	case "interactive":
		if msg.Interactive == nil {
			ev.Kind = KindUnknown
			ev.Raw = raw
			break
		}
		switch {
		case msg.Interactive.ButtonReply != nil:
			ev.Kind = KindButtonReply
			ev.Reply = Reply{ID: msg.Interactive.ButtonReply.ID, Title: msg.Interactive.ButtonReply.Title}
		case msg.Interactive.ListReply != nil:
			ev.Kind = KindListReply
			ev.Reply = Reply{ID: msg.Interactive.ListReply.ID, Title: msg.Interactive.ListReply.Title}
		case msg.Interactive.NfmReply != nil:
			ev.Kind = KindFlowReply
			ev.Reply = Reply{ID: msg.Interactive.NfmReply.Name, Title: msg.Interactive.NfmReply.Body}
			ev.FormFields = parseFormFields(msg.Interactive.NfmReply.ResponseJSON)
		default:
			ev.Kind = KindUnknown
			ev.Raw = raw
		}

	case "order":
		ev.Kind = KindOrder
		if msg.Order != nil {
			for _, item := range msg.Order.ProductItems {
				ev.Order = append(ev.Order, OrderItem{
					ProductID: item.ProductRetailerID,
					Quantity:  item.Quantity,
					ItemPrice: item.ItemPrice,
					Currency:  item.Currency,
				})
			}
		}

	case "location":
		ev.Kind = KindLocation
		if msg.Location != nil {
			ev.Latitude = msg.Location.Latitude
			ev.Longitude = msg.Location.Longitude
			ev.Address = strings.TrimSpace(strings.TrimSpace(msg.Location.Name + " " + msg.Location.Address))
		}

	default:
		ev.Kind = KindUnknown
		ev.Raw = raw
	}

	return ev, true
}

// parseFormFields flattens a WhatsApp Flow form response (a JSON object
// serialized as a string) into string key-values.
func parseFormFields(responseJSON string) map[string]string {
	if responseJSON == "" {
		return nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(responseJSON), &values); err != nil {
		utils.Zlog.Warn("Unparseable flow form response", zap.Error(err))
		return nil
	}
	fields := make(map[string]string, len(values))
	for k, v := range values {
		switch tv := v.(type) {
		case string:
			fields[k] = tv
		case float64:
			fields[k] = strconv.FormatFloat(tv, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(tv)
		default:
			if b, err := json.Marshal(tv); err == nil {
				fields[k] = string(b)
			}
		}
	}
	return fields
}

func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Now().UTC()
	}
	if unix, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC()
	}
	if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
		return parsed.UTC()
	}
	return time.Now().UTC()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
