package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rayimanoj-oliva/wb-crm/internal/clients"
	"github.com/rayimanoj-oliva/wb-crm/internal/config"
	"github.com/rayimanoj-oliva/wb-crm/internal/dispatch"
	"github.com/rayimanoj-oliva/wb-crm/internal/flows"
	"github.com/rayimanoj-oliva/wb-crm/internal/loaders"
	"github.com/rayimanoj-oliva/wb-crm/internal/session"
	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
	"go.uber.org/zap"
)

// Controller handles Razorpay webhook callbacks. The paid transition is
// idempotent: redelivered events update nothing and trigger no second
// confirmation.
type Controller struct {
	cfg        *config.Config
	db         *loaders.PostgresClient
	store      *session.Store
	resolver   *tenant.Resolver
	dispatcher *dispatch.Dispatcher
	shopify    *clients.ShopifyClient
}

func NewController(cfg *config.Config, db *loaders.PostgresClient, store *session.Store, resolver *tenant.Resolver, dispatcher *dispatch.Dispatcher, shopify *clients.ShopifyClient) *Controller {
	return &Controller{
		cfg:        cfg,
		db:         db,
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		shopify:    shopify,
	}
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID          string `json:"id"`
				ReferenceID string `json:"reference_id"`
				Status      string `json:"status"`
			} `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

// HandleWebhook verifies the HMAC signature and processes
// payment_link.paid events. Everything else is acknowledged and dropped.
func (pc *Controller) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if !clients.ValidateWebhookSignature(body, signature, pc.cfg.RazorpayWebhookSecret) {
		utils.Zlog.Warn("Razorpay webhook signature mismatch",
			zap.Int("body_bytes", len(body)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event razorpayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		utils.Zlog.Error("Razorpay webhook body is not valid JSON", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if event.Event != "payment_link.paid" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": event.Event})
		return
	}

	orderRef := event.Payload.PaymentLink.Entity.ReferenceID
	if orderRef == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	// Ack fast; the side effects run off the request goroutine the same
	// way inbound messages do.
	go pc.processPaid(orderRef)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (pc *Controller) processPaid(orderRef string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	transitioned, err := pc.db.UpdatePaymentStatus(ctx, orderRef, "paid")
	if err != nil {
		utils.Zlog.Error("Payment status update failed",
			zap.String("order_ref", orderRef),
			zap.Error(err))
		return
	}
	if !transitioned {
		// Redelivery: already paid, nothing more to do.
		utils.Zlog.Info("Payment already marked paid, skipping",
			zap.String("order_ref", orderRef))
		return
	}

	rec, err := pc.db.GetPaymentByOrderRef(ctx, orderRef)
	if err != nil || rec == nil {
		utils.Zlog.Error("Paid payment has no record",
			zap.String("order_ref", orderRef),
			zap.Error(err))
		return
	}

	binding := pc.bindingFor(ctx, rec.WaID)

	pc.dispatcher.SendText(ctx, binding, rec.WaID,
		"✅ Payment received! Thank you for your order.\nRef: "+orderRef)

	pc.promptAddress(ctx, binding, rec.WaID)

	if pc.shopify.Enabled() {
		if err := pc.shopify.SyncPaidOrder(ctx, orderRef, rec.WaID, rec.AmountPaise, rec.Currency); err != nil {
			utils.Zlog.Error("Shopify sync failed",
				zap.String("order_ref", orderRef),
				zap.Error(err))
		}
	}
}

// promptAddress moves the payer's session into the address flow so the
// delivery address arrives while the order is fresh.
func (pc *Controller) promptAddress(ctx context.Context, binding tenant.Binding, waID string) {
	var actions []flows.Action
	handler := flows.AddressCollection{}
	pc.store.WithSession(waID, func(s *session.Session) {
		s.State[flows.KeyPaymentStatus] = "paid"
		s.ActiveFlow = handler.Name()
		synthetic := webhook.InboundEvent{SenderID: waID, Timestamp: time.Now().UTC()}
		next, acts := handler.Start(synthetic, flows.State(s.State).Clone())
		s.State = next
		actions = acts
	})
	pc.dispatcher.Dispatch(ctx, binding, waID, actions)
}

// bindingFor recovers the tenant binding the payer was talking to,
// falling back to the service default number.
func (pc *Controller) bindingFor(ctx context.Context, waID string) tenant.Binding {
	sess := pc.store.GetOrCreate(waID)
	phoneID := sess.State[flows.KeyTenantPhone]
	if phoneID == "" {
		phoneID = pc.cfg.WhatsAppPhoneID
	}
	binding, err := pc.resolver.Resolve(ctx, phoneID)
	if err != nil {
		utils.Zlog.Warn("No binding for payer, using env credentials",
			zap.String("wa_id", waID))
		return tenant.Binding{
			PhoneNumberID: pc.cfg.WhatsAppPhoneID,
			DisplayNumber: pc.cfg.WhatsAppDisplayNumber,
			AccessToken:   pc.cfg.WhatsAppAccessToken,
		}
	}
	return binding
}
