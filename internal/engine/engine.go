package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rayimanoj-oliva/wb-crm/internal/flows"
	"github.com/rayimanoj-oliva/wb-crm/internal/session"
	"github.com/rayimanoj-oliva/wb-crm/internal/tenant"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"github.com/rayimanoj-oliva/wb-crm/internal/webhook"
	"go.uber.org/zap"
)

// ActionSink consumes the actions a flow step emitted. The dispatcher
// implements it; tests substitute a recorder.
type ActionSink interface {
	Dispatch(ctx context.Context, binding tenant.Binding, senderID string, actions []flows.Action)
}

// Recorder is the slice of the Postgres client the engine writes
// through. The pgx-backed loaders client satisfies it; tests substitute
// a no-op.
type Recorder interface {
	UpsertCustomer(ctx context.Context, id, waID, name string) error
	SaveMessage(ctx context.Context, messageID, fromWaID, toWaID, msgType, body string, ts time.Time) error
	SaveFlowLog(ctx context.Context, id, waID, flow, step string) error
}

// Engine glues the pieces together: it persists the contact, routes the
// event, drives the flow state machine inside the sender's session lock,
// and hands the emitted actions to the dispatcher.
type Engine struct {
	router   *flows.Router
	store    *session.Store
	sink     ActionSink
	db       Recorder
	resolver *tenant.Resolver
}

func New(router *flows.Router, store *session.Store, sink ActionSink, db Recorder, resolver *tenant.Resolver) *Engine {
	e := &Engine{
		router:   router,
		store:    store,
		sink:     sink,
		db:       db,
		resolver: resolver,
	}
	store.OnExpire(e.onSessionExpired)
	return e
}

// Process handles one normalized inbound event end to end. Errors on the
// persistence side are logged, never surfaced: the conversation must not
// stall because a bookkeeping insert failed.
func (e *Engine) Process(ctx context.Context, binding tenant.Binding, ev webhook.InboundEvent) {
	e.persistInbound(ctx, binding, ev)

	var actions []flows.Action
	if ev.Referral != nil {
		actions = append(actions, flows.UpdateReferrer{
			SourceURL: ev.Referral.SourceURL,
			SourceID:  ev.Referral.SourceID,
		})
	}
	e.store.WithSession(ev.SenderID, func(s *session.Session) {
		if s.Name == "" && ev.SenderName != "" {
			s.Name = ev.SenderName
		}
		s.State[flows.KeyTenantPhone] = ev.TenantPhoneID

		decision := e.router.Route(ev, s.ActiveFlow, flows.State(s.State), binding)

		if decision.AbandonFlow != "" {
			actions = append(actions, e.abandon(s, decision.AbandonFlow)...)
		}
		if decision.ContinueFlow != "" {
			h, _ := e.router.Handler(decision.ContinueFlow)
			next, acts := h.Advance(ev, snapshot(s))
			actions = append(actions, acts...)
			actions = append(actions, e.applyResult(ctx, s, h, ev, binding, next)...)
		}
		if decision.StartFlow != "" {
			actions = append(actions, e.start(ctx, s, decision.StartFlow, ev, binding)...)
		}
	})

	if len(actions) > 0 {
		e.sink.Dispatch(ctx, binding, ev.SenderID, actions)
	}
}

func (e *Engine) start(ctx context.Context, s *session.Session, flow string, ev webhook.InboundEvent, binding tenant.Binding) []flows.Action {
	h, ok := e.router.Handler(flow)
	if !ok {
		return nil
	}
	s.ActiveFlow = flow
	next, actions := h.Start(ev, snapshot(s))
	return append(actions, e.applyResult(ctx, s, h, ev, binding, next)...)
}

// applyResult writes the advanced state back into the live session and
// interprets the control markers: hand-off to another flow and terminal
// cleanup. Returns any follow-on actions those produce.
func (e *Engine) applyResult(ctx context.Context, s *session.Session, h flows.Handler, ev webhook.InboundEvent, binding tenant.Binding, next flows.State) []flows.Action {
	target := next[flows.KeyHandoff]
	delete(next, flows.KeyHandoff)
	s.State = next

	e.logStep(ctx, ev.SenderID, h.Name(), next[flows.KeyStep])

	var actions []flows.Action
	if target != "" {
		if e.handoffAllowed(target, binding) {
			e.clearFlow(s)
			return append(actions, e.start(ctx, s, target, ev, binding)...)
		}
		actions = append(actions, flows.SendText{
			Body: "Thank you! Our team will reach out to you shortly to help with your booking. 🙏",
		})
	}

	if next[flows.KeyStep] == flows.StepDone {
		e.clearFlow(s)
	}
	return actions
}

func (e *Engine) handoffAllowed(flow string, binding tenant.Binding) bool {
	if _, ok := e.router.Handler(flow); !ok {
		return false
	}
	if !binding.FlowEnabled(flow) {
		return false
	}
	if flow == tenant.FlowLeadAppointment && !binding.DedicatedLeadNumber {
		return false
	}
	return true
}

// abandon tears down the active flow, giving it a chance to emit its
// drop-off work first.
func (e *Engine) abandon(s *session.Session, flow string) []flows.Action {
	var actions []flows.Action
	if h, ok := e.router.Handler(flow); ok {
		if ab, ok := h.(flows.Abandoner); ok {
			actions = ab.Abandon(snapshot(s))
		}
	}
	e.clearFlow(s)
	return actions
}

// clearFlow resets the session's flow state. The selected concern is
// sticky: it survives so a later booking still knows what the sender
// came in for.
func (e *Engine) clearFlow(s *session.Session) {
	concern := s.State[flows.KeyConcern]
	tenantPhone := s.State[flows.KeyTenantPhone]
	s.ActiveFlow = ""
	s.State = make(map[string]string)
	if concern != "" {
		s.State[flows.KeyConcern] = concern
	}
	if tenantPhone != "" {
		s.State[flows.KeyTenantPhone] = tenantPhone
	}
}

// onSessionExpired is the TTL drop-off path: the abandoned flow still
// gets to emit its lead even though the sender went silent.
func (e *Engine) onSessionExpired(old session.Session) {
	h, ok := e.router.Handler(old.ActiveFlow)
	if !ok {
		return
	}
	ab, ok := h.(flows.Abandoner)
	if !ok {
		return
	}
	actions := ab.Abandon(flows.State(old.State))
	if len(actions) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	binding, err := e.resolver.Resolve(ctx, old.State[flows.KeyTenantPhone])
	if err != nil {
		utils.Zlog.Warn("No tenant binding for expired session, dispatching with empty binding",
			zap.String("sender", old.SenderID),
			zap.Error(err))
	}
	utils.Zlog.Info("Session expired mid-flow, emitting drop-off work",
		zap.String("sender", old.SenderID),
		zap.String("flow", old.ActiveFlow))
	e.sink.Dispatch(ctx, binding, old.SenderID, actions)
}

func (e *Engine) persistInbound(ctx context.Context, binding tenant.Binding, ev webhook.InboundEvent) {
	if err := e.db.UpsertCustomer(ctx, uuid.NewString(), ev.SenderID, ev.SenderName); err != nil {
		utils.Zlog.Error("Customer upsert failed", zap.String("sender", ev.SenderID), zap.Error(err))
	}
	if err := e.db.SaveMessage(ctx, ev.MessageID, ev.SenderID, binding.DisplayNumber, string(ev.Kind), messageBody(ev), ev.Timestamp); err != nil {
		utils.Zlog.Error("Inbound message save failed", zap.String("message_id", ev.MessageID), zap.Error(err))
	}
}

func (e *Engine) logStep(ctx context.Context, waID, flow, step string) {
	if step == "" {
		return
	}
	if err := e.db.SaveFlowLog(ctx, uuid.NewString(), waID, flow, step); err != nil {
		utils.Zlog.Warn("Flow log save failed", zap.String("wa_id", waID), zap.Error(err))
	}
}

func messageBody(ev webhook.InboundEvent) string {
	switch ev.Kind {
	case webhook.KindText:
		return ev.Text
	case webhook.KindButtonReply, webhook.KindListReply, webhook.KindFlowReply:
		if ev.Reply.Title != "" {
			return ev.Reply.Title
		}
		return ev.Reply.ID
	case webhook.KindLocation:
		return ev.Address
	}
	return ""
}

func snapshot(s *session.Session) flows.State {
	return flows.State(s.State).Clone()
}
