package flows

import (
	"testing"

	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
)

func orderEvent(messageID string, items ...webhook.OrderItem) webhook.InboundEvent {
	return webhook.InboundEvent{
		Kind:      webhook.KindOrder,
		SenderID:  "919876543210",
		MessageID: messageID,
		Order:     items,
	}
}

func TestCartOrderCreatesPaymentLinkWithPaiseTotal(t *testing.T) {
	flow := CartCheckout{}
	ev := orderEvent("wamid.order1",
		webhook.OrderItem{ProductID: "SKU1", Quantity: 2, ItemPrice: 499.5, Currency: "INR"},
		webhook.OrderItem{ProductID: "SKU2", Quantity: 1, ItemPrice: 100, Currency: "INR"},
	)

	st, actions := flow.Start(ev, State{})
	if st[KeyStep] != stepAwaitingPayment {
		t.Fatalf("step = %q, want %q", st[KeyStep], stepAwaitingPayment)
	}
	if st[KeyOrderRef] != "ord_wamid.order1" {
		t.Fatalf("order_ref = %q", st[KeyOrderRef])
	}

	var link *CreatePaymentLink
	for _, a := range actions {
		if l, ok := a.(CreatePaymentLink); ok {
			link = &l
		}
	}
	if link == nil {
		t.Fatal("no CreatePaymentLink emitted")
	}
	// 2 × 499.50 + 1 × 100.00 = 1099.00 rupees.
	if link.AmountPaise != 109900 {
		t.Errorf("amount = %d paise, want 109900", link.AmountPaise)
	}
	if link.Currency != "INR" {
		t.Errorf("currency = %q", link.Currency)
	}
	if link.OrderRef != "ord_wamid.order1" {
		t.Errorf("order ref = %q", link.OrderRef)
	}
}

func TestCartReplaySameMessageYieldsSameOrderRef(t *testing.T) {
	flow := CartCheckout{}
	ev := orderEvent("wamid.replay", webhook.OrderItem{ProductID: "SKU1", Quantity: 1, ItemPrice: 10})

	st1, _ := flow.Start(ev, State{})
	st2, _ := flow.Start(ev, State{})
	if st1[KeyOrderRef] != st2[KeyOrderRef] {
		t.Fatalf("order refs differ: %q vs %q", st1[KeyOrderRef], st2[KeyOrderRef])
	}
}

func TestPayNowRetapDoesNotRecreateLink(t *testing.T) {
	flow := CartCheckout{}
	st := State{
		KeyStep:       stepAwaitingPayment,
		KeyOrderRef:   "ord_wamid.order1",
		KeyPaymentURL: "https://rzp.io/i/abc123",
	}

	next, actions := flow.Advance(replyEvent(webhook.KindButtonReply, "pay_now", "Pay Now"), st)
	for _, a := range actions {
		if _, ok := a.(CreatePaymentLink); ok {
			t.Fatal("re-tap created a second payment link")
		}
	}
	txt, ok := actions[0].(SendText)
	if !ok {
		t.Fatalf("action = %T, want SendText", actions[0])
	}
	if txt.Body == "" || next[KeyOrderRef] != "ord_wamid.order1" {
		t.Error("re-tap changed order state")
	}
}

func TestOrderDetailsRepresentsSummary(t *testing.T) {
	flow := CartCheckout{}
	st := State{
		KeyStep:         stepAwaitingPayment,
		keyOrderSummary: "🛒 *Your Order*\n• SKU1 × 1 — ₹10.00",
	}
	_, actions := flow.Advance(replyEvent(webhook.KindButtonReply, "order_details", "Order Details"), st)
	txt, ok := actions[0].(SendText)
	if !ok {
		t.Fatalf("action = %T", actions[0])
	}
	if txt.Body != st[keyOrderSummary] {
		t.Errorf("summary not re-presented: %q", txt.Body)
	}
}

func TestOrderTotalPaiseRoundsPerLine(t *testing.T) {
	items := []webhook.OrderItem{
		{Quantity: 3, ItemPrice: 33.335},
		{Quantity: 1, ItemPrice: 0.004},
	}
	// 33.335 → 3334 paise per unit × 3 = 10002; 0.004 rounds to 0.
	if got := OrderTotalPaise(items); got != 10002 {
		t.Errorf("total = %d, want 10002", got)
	}
}

func TestFormatPaise(t *testing.T) {
	if got := FormatPaise(109900); got != "₹1099.00" {
		t.Errorf("got %q", got)
	}
	if got := FormatPaise(5); got != "₹0.05" {
		t.Errorf("got %q", got)
	}
}
