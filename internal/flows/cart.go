package flows

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

// Cart checkout steps and state keys. The payment URL is written back
// into session state by the dispatcher once the link exists, so re-taps
// can re-present it without creating a second link.
const (
	stepAwaitingPayment = "awaiting_payment"

	KeyOrderRef      = "order_ref"
	KeyPaymentURL    = "payment_url"
	KeyPaymentStatus = "payment_status"

	keyAmountPaise  = "amount_paise"
	keyCurrency     = "currency"
	keyOrderSummary = "order_summary"
)

// CartCheckout turns a WhatsApp catalog order into a payment link. The
// order reference is derived from the triggering message ID, so a
// replayed webhook resolves to the same payment and never double-bills.
type CartCheckout struct{}

func (CartCheckout) Name() string { return tenant.FlowCartCheckout }

func (CartCheckout) CanContinue(ev webhook.InboundEvent, st State) bool {
	if st[KeyStep] != stepAwaitingPayment {
		return false
	}
	if ev.Kind == webhook.KindOrder {
		return true
	}
	if ev.Kind != webhook.KindButtonReply && ev.Kind != webhook.KindListReply {
		return false
	}
	switch ev.Reply.ID {
	case "pay_now", "view_payment_link", "order_details":
		return true
	}
	return false
}

func (c CartCheckout) Start(ev webhook.InboundEvent, st State) (State, []Action) {
	return c.beginOrder(ev, st.Clone())
}

func (c CartCheckout) Advance(ev webhook.InboundEvent, st State) (State, []Action) {
	next := st.Clone()
	if ev.Kind == webhook.KindOrder {
		// A fresh cart replaces the pending one.
		return c.beginOrder(ev, next)
	}

	switch ev.Reply.ID {
	case "pay_now", "view_payment_link":
		if url := st[KeyPaymentURL]; url != "" {
			return next, []Action{SendText{Body: "💳 Complete your payment here:\n" + url}}
		}
		return next, []Action{SendText{Body: "Your payment link is being prepared, one moment please..."}}
	case "order_details":
		summary := st[keyOrderSummary]
		if summary == "" {
			summary = "No pending order found."
		}
		return next, []Action{SendText{Body: summary}}
	}
	return next, nil
}

func (CartCheckout) beginOrder(ev webhook.InboundEvent, next State) (State, []Action) {
	if len(ev.Order) == 0 {
		return next, []Action{SendText{Body: "Your cart looks empty. Please add items from the catalog and try again."}}
	}

	totalPaise := OrderTotalPaise(ev.Order)
	currency := ev.Order[0].Currency
	if currency == "" {
		currency = "INR"
	}
	orderRef := OrderRef(ev.MessageID)
	summary := orderSummary(ev.Order, totalPaise)

	next[KeyStep] = stepAwaitingPayment
	next[KeyOrderRef] = orderRef
	next[keyAmountPaise] = strconv.FormatInt(totalPaise, 10)
	next[keyCurrency] = currency
	next[keyOrderSummary] = summary
	delete(next, KeyPaymentURL)
	delete(next, KeyPaymentStatus)

	return next, []Action{
		SendText{Body: summary},
		CreatePaymentLink{
			OrderRef:    orderRef,
			AmountPaise: totalPaise,
			Currency:    currency,
			Description: fmt.Sprintf("WhatsApp order %s (%d items)", orderRef, len(ev.Order)),
		},
	}
}

// OrderRef derives the stable payment reference for one cart message.
func OrderRef(messageID string) string {
	return "ord_" + messageID
}

// OrderTotalPaise sums the cart server-side in minor currency units.
// Item prices arrive in rupees; each line is rounded to paise before
// multiplying by quantity.
func OrderTotalPaise(items []webhook.OrderItem) int64 {
	var total int64
	for _, item := range items {
		unitPaise := int64(math.Round(item.ItemPrice * 100))
		total += unitPaise * int64(item.Quantity)
	}
	return total
}

func orderSummary(items []webhook.OrderItem, totalPaise int64) string {
	var b strings.Builder
	b.WriteString("🛒 *Your Order*\n")
	for _, item := range items {
		linePaise := int64(math.Round(item.ItemPrice*100)) * int64(item.Quantity)
		fmt.Fprintf(&b, "• %s × %d — %s\n", item.ProductID, item.Quantity, FormatPaise(linePaise))
	}
	b.WriteString("\n*Total: " + FormatPaise(totalPaise) + "*")
	return b.String()
}

// FormatPaise renders a paise amount as rupees for chat display.
func FormatPaise(paise int64) string {
	return fmt.Sprintf("₹%d.%02d", paise/100, paise%100)
}
