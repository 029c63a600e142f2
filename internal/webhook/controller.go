package webhook

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"github.com/rayimanoj-oliva/wb-crm/internal/config"
	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"go.uber.org/zap"
)

// Processor consumes normalized events after the HTTP layer has already
// acked. The engine implements it.
type Processor interface {
	Process(ctx context.Context, binding tenant.Binding, ev InboundEvent)
}

// Controller terminates the provider webhook: subscription handshake on
// GET, message batches on POST. POST always acks 200 — provider retry
// storms are worse than a dropped malformed body.
type Controller struct {
	resolver  *tenant.Resolver
	processor Processor
	dedup     *cache.Cache
}

func NewController(cfg *config.Config, resolver *tenant.Resolver, processor Processor) *Controller {
	return &Controller{
		resolver:  resolver,
		processor: processor,
		dedup:     cache.New(cfg.DedupWindow, cfg.DedupWindow),
	}
}

// HandleVerification answers the hub.challenge handshake Meta performs
// when the webhook URL is (re)subscribed.
func (wc *Controller) HandleVerification(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	expected := wc.resolver.VerifyToken(c.Request.Context(), c.Query("phone_number_id"))
	if mode == "subscribe" && token == expected {
		c.String(http.StatusOK, challenge)
		return
	}

	utils.Zlog.Warn("Webhook verification rejected",
		zap.String("mode", mode))
	c.String(http.StatusForbidden, "verification failed")
}

// HandleInbound normalizes one webhook body and hands its events to the
// processor on a background goroutine. The 200 goes out first.
func (wc *Controller) HandleInbound(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "unreadable"})
		return
	}

	result := Normalize(body)
	switch result.Status {
	case StatusInvalid:
		c.JSON(http.StatusOK, gin.H{"status": "invalid"})
		return
	case StatusIgnorable:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	accepted := 0
	fresh := result.Events[:0:0]
	for _, ev := range result.Events {
		if wc.isDuplicate(ev.MessageID) {
			utils.Zlog.Info("Dropping duplicate message",
				zap.String("message_id", ev.MessageID))
			continue
		}
		accepted++
		fresh = append(fresh, ev)
	}

	// Distinct senders fan out; one sender's messages from the same
	// batch stay on one goroutine so their arrival order holds.
	for _, events := range groupBySender(fresh) {
		go func(events []InboundEvent) {
			for _, ev := range events {
				wc.process(ev)
			}
		}(events)
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted", "messages": accepted})
}

// groupBySender splits a batch into per-sender slices, keeping both the
// sender order of first appearance and each sender's message order.
func groupBySender(events []InboundEvent) [][]InboundEvent {
	bySender := make(map[string]int)
	var groups [][]InboundEvent
	for _, ev := range events {
		i, ok := bySender[ev.SenderID]
		if !ok {
			i = len(groups)
			bySender[ev.SenderID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], ev)
	}
	return groups
}

func (wc *Controller) process(ev InboundEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	binding, err := wc.resolver.Resolve(ctx, ev.TenantPhoneID)
	if err != nil {
		utils.Zlog.Error("No tenant binding for inbound message",
			zap.String("phone_number_id", ev.TenantPhoneID),
			zap.String("message_id", ev.MessageID),
			zap.Error(err))
		return
	}

	wc.processor.Process(ctx, binding, ev)
}

// isDuplicate records the message id and reports whether it was already
// seen inside the dedup window.
func (wc *Controller) isDuplicate(messageID string) bool {
	if messageID == "" {
		return false
	}
	if _, seen := wc.dedup.Get(messageID); seen {
		return true
	}
	wc.dedup.Set(messageID, struct{}{}, cache.DefaultExpiration)
	return false
}
