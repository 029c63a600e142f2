package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/rayimanoj-oliva/wb-crm/internal/clients"
	"github.com/rayimanoj-oliva/wb-crm/internal/flows"
	"github.com/rayimanoj-oliva/wb-crm/internal/loaders"
	"github.com/rayimanoj-oliva/wb-crm/internal/session"
	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"github.com/rayimanoj-oliva/wb-crm/internal/ws"
	"go.uber.org/zap"
)

// Dispatcher consumes the actions a flow step emitted: provider sends,
// CRM leads, payment links, address persistence. One action failing is
// logged and never stops the rest of the batch.
type Dispatcher struct {
	wa    *clients.WhatsAppClient
	zoho  *clients.ZohoClient
	rzp   *clients.RazorpayClient
	db    *loaders.PostgresClient
	store *session.Store
	hub   *ws.Hub

	// linkGuard short-circuits duplicate CreatePaymentLink actions for
	// the same order reference before they reach the provider.
	linkGuard *cache.Cache
}

func New(wa *clients.WhatsAppClient, zoho *clients.ZohoClient, rzp *clients.RazorpayClient, db *loaders.PostgresClient, store *session.Store, hub *ws.Hub) *Dispatcher {
	return &Dispatcher{
		wa:        wa,
		zoho:      zoho,
		rzp:       rzp,
		db:        db,
		store:     store,
		hub:       hub,
		linkGuard: cache.New(30*time.Minute, 10*time.Minute),
	}
}

// Dispatch executes actions in order. Later actions in a batch may
// depend on earlier ones (auto-dial needs the lead id), so execution is
// sequential.
func (d *Dispatcher) Dispatch(ctx context.Context, binding tenant.Binding, senderID string, actions []flows.Action) {
	var lastLeadID string

	for _, action := range actions {
		switch a := action.(type) {
		case flows.SendText:
			d.sendText(ctx, binding, senderID, a.Body)

		case flows.SendButtons:
			msgID, err := d.wa.SendButtons(ctx, binding.AccessToken, binding.PhoneNumberID, senderID, a.Body, a.Buttons)
			d.recordOutbound(ctx, binding, senderID, msgID, "interactive", a.Body, err)

		case flows.SendList:
			msgID, err := d.wa.SendList(ctx, binding.AccessToken, binding.PhoneNumberID, senderID, a)
			d.recordOutbound(ctx, binding, senderID, msgID, "interactive", a.Body, err)

		case flows.CreateLead:
			lastLeadID = d.createLead(ctx, senderID, a.Fields)

		case flows.TriggerAutoDial:
			d.autoDial(ctx, lastLeadID, a.Phone)

		case flows.CreatePaymentLink:
			d.createPaymentLink(ctx, binding, senderID, a)

		case flows.SaveAddress:
			d.saveAddress(ctx, senderID, a.Fields)

		case flows.ReuseAddress:
			d.reuseAddress(ctx, binding, senderID, a.AddressID)

		case flows.ListSavedAddresses:
			d.listSavedAddresses(ctx, binding, senderID)

		case flows.UpdateReferrer:
			if err := d.db.UpdateCustomerReferrer(ctx, senderID, a.SourceURL, a.SourceID); err != nil {
				utils.Zlog.Error("Referrer update failed", zap.String("sender", senderID), zap.Error(err))
			}
		}
	}
}

// SendText is exposed for callers outside the flow engine (payment
// confirmations).
func (d *Dispatcher) SendText(ctx context.Context, binding tenant.Binding, to, body string) {
	d.sendText(ctx, binding, to, body)
}

func (d *Dispatcher) sendText(ctx context.Context, binding tenant.Binding, to, body string) {
	msgID, err := d.wa.SendText(ctx, binding.AccessToken, binding.PhoneNumberID, to, body)
	d.recordOutbound(ctx, binding, to, msgID, "text", body, err)
}

func (d *Dispatcher) recordOutbound(ctx context.Context, binding tenant.Binding, to, msgID, msgType, body string, sendErr error) {
	if sendErr != nil {
		utils.Zlog.Error("Outbound send failed",
			zap.String("to", to),
			zap.String("type", msgType),
			zap.Error(sendErr))
		return
	}
	if msgID == "" {
		msgID = "outbound_" + uuid.NewString()
	}
	if err := d.db.SaveMessage(ctx, msgID, binding.DisplayNumber, to, msgType, body, time.Now().UTC()); err != nil {
		utils.Zlog.Warn("Outbound message save failed", zap.String("message_id", msgID), zap.Error(err))
	}
	d.hub.Broadcast(map[string]any{
		"from":      binding.DisplayNumber,
		"to":        to,
		"type":      msgType,
		"message":   body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// createLead pushes the lead to the CRM, retrying once. A second
// failure lands in lead_failures so the lead is never silently lost.
func (d *Dispatcher) createLead(ctx context.Context, senderID string, fields flows.LeadFields) string {
	leadID, err := d.zoho.CreateLead(ctx, fields)
	if err != nil {
		utils.Zlog.Warn("Lead create failed, retrying once",
			zap.String("sender", senderID),
			zap.Error(err))
		leadID, err = d.zoho.CreateLead(ctx, fields)
	}
	if err != nil {
		utils.Zlog.Error("Lead create failed after retry, recording failure",
			zap.String("sender", senderID),
			zap.Error(err))
		failure := map[string]string{
			"name":        fields.Name,
			"phone":       fields.Phone,
			"source":      fields.Source,
			"status_tag":  fields.StatusTag,
			"treatment":   fields.Treatment,
			"description": fields.Description,
		}
		if dbErr := d.db.SaveLeadFailure(ctx, uuid.NewString(), senderID, failure, err.Error()); dbErr != nil {
			utils.Zlog.Error("Lead failure record also failed", zap.Error(dbErr))
		}
		return ""
	}
	return leadID
}

func (d *Dispatcher) autoDial(ctx context.Context, leadID, phone string) {
	if leadID == "" {
		utils.Zlog.Warn("Skipping auto-dial, no lead id in batch", zap.String("phone", phone))
		return
	}
	if err := d.zoho.TriggerAutoDial(ctx, leadID, phone); err != nil {
		utils.Zlog.Error("Auto-dial trigger failed",
			zap.String("lead_id", leadID),
			zap.Error(err))
	}
}

// createPaymentLink is idempotent on the order reference: a link that
// already exists (in cache or the payments table) is re-presented, not
// re-created.
func (d *Dispatcher) createPaymentLink(ctx context.Context, binding tenant.Binding, senderID string, a flows.CreatePaymentLink) {
	if url, ok := d.linkGuard.Get(a.OrderRef); ok {
		d.presentLink(ctx, binding, senderID, a.OrderRef, url.(string))
		return
	}
	if existing, err := d.db.GetPaymentByOrderRef(ctx, a.OrderRef); err == nil && existing != nil {
		d.linkGuard.Set(a.OrderRef, existing.ShortURL, cache.DefaultExpiration)
		d.presentLink(ctx, binding, senderID, a.OrderRef, existing.ShortURL)
		return
	}

	link, err := d.rzp.CreatePaymentLink(ctx, a.OrderRef, a.AmountPaise, a.Currency, a.Description, utils.NormalizePhone(senderID))
	if err != nil {
		utils.Zlog.Error("Payment link create failed",
			zap.String("order_ref", a.OrderRef),
			zap.Error(err))
		d.sendText(ctx, binding, senderID, "⚠️ We couldn't prepare your payment link. Please tap Pay Now to retry.")
		return
	}

	rec := &loaders.PaymentRecord{
		OrderRef:    a.OrderRef,
		WaID:        senderID,
		AmountPaise: a.AmountPaise,
		Currency:    a.Currency,
		RazorpayID:  link.ID,
		ShortURL:    link.ShortURL,
		Status:      "created",
	}
	if err := d.db.SavePayment(ctx, rec); err != nil {
		utils.Zlog.Error("Payment record save failed",
			zap.String("order_ref", a.OrderRef),
			zap.Error(err))
	}

	d.linkGuard.Set(a.OrderRef, link.ShortURL, cache.DefaultExpiration)
	d.presentLink(ctx, binding, senderID, a.OrderRef, link.ShortURL)
}

func (d *Dispatcher) presentLink(ctx context.Context, binding tenant.Binding, senderID, orderRef, shortURL string) {
	// The cart flow re-presents the link on Pay Now re-taps from state.
	d.store.WithSession(senderID, func(s *session.Session) {
		if s.State[flows.KeyOrderRef] == orderRef {
			s.State[flows.KeyPaymentURL] = shortURL
		}
	})
	d.sendText(ctx, binding, senderID, "💳 Complete your payment here:\n"+shortURL)
}

func (d *Dispatcher) saveAddress(ctx context.Context, senderID string, f flows.AddressFields) {
	rec := &loaders.AddressRecord{
		ID:      uuid.NewString(),
		WaID:    senderID,
		Name:    f.Name,
		Phone:   f.Phone,
		Street:  f.Street,
		City:    f.City,
		State:   f.State,
		Pincode: f.Pincode,
	}
	if err := d.db.SaveAddress(ctx, rec); err != nil {
		utils.Zlog.Error("Address save failed", zap.String("sender", senderID), zap.Error(err))
	}
}

func (d *Dispatcher) reuseAddress(ctx context.Context, binding tenant.Binding, senderID, addressID string) {
	rec, err := d.db.GetAddress(ctx, addressID)
	if err != nil || rec == nil {
		utils.Zlog.Error("Saved address lookup failed",
			zap.String("address_id", addressID),
			zap.Error(err))
		d.sendText(ctx, binding, senderID, "⚠️ We couldn't find that saved address. Please type your address instead.")
		return
	}
	fresh := *rec
	fresh.ID = uuid.NewString()
	if err := d.db.SaveAddress(ctx, &fresh); err != nil {
		utils.Zlog.Error("Address reuse save failed", zap.String("sender", senderID), zap.Error(err))
	}
}

func (d *Dispatcher) listSavedAddresses(ctx context.Context, binding tenant.Binding, senderID string) {
	records, err := d.db.ListAddresses(ctx, senderID, 10)
	if err != nil {
		utils.Zlog.Error("Address list failed", zap.String("sender", senderID), zap.Error(err))
	}
	if len(records) == 0 {
		// Nothing to pick from: drop the sender back into manual entry.
		d.store.WithSession(senderID, func(s *session.Session) {
			if s.ActiveFlow == tenant.FlowAddress {
				s.State[flows.KeyStep] = flows.StepCollecting
			}
		})
		d.sendText(ctx, binding, senderID, "You have no saved addresses yet. Please type your address instead.")
		return
	}

	rows := make([]flows.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, flows.Row{
			ID:          "addr_" + rec.ID,
			Title:       rec.Name,
			Description: rec.Street + ", " + rec.City + " " + rec.Pincode,
		})
	}
	msgID, err := d.wa.SendList(ctx, binding.AccessToken, binding.PhoneNumberID, senderID, flows.SendList{
		Body:         "Pick one of your saved addresses:",
		ButtonLabel:  "Choose Address",
		SectionTitle: "Saved Addresses",
		Rows:         rows,
	})
	d.recordOutbound(ctx, binding, senderID, msgID, "interactive", "Pick one of your saved addresses:", err)
}
