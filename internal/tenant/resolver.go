package tenant

import (
	"context"
	"errors"
	"strings"

	cache "github.com/patrickmn/go-cache"
	"github.com/rayimanoj-oliva/wb-crm/internal/config"
	"github.com/rayimanoj-oliva/wb-crm/internal/loaders"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"go.uber.org/zap"
)

// ErrNotFound means no binding exists for the receiving phone number.
// The webhook still acks; this is a provisioning gap, not a user error.
var ErrNotFound = errors.New("tenant binding not found")

// Flow names used in enabled-flows sets and session state.
const (
	FlowTreatment       = "treatment"
	FlowLeadAppointment = "lead_appointment"
	FlowCartCheckout    = "cart_checkout"
	FlowAddress         = "address_collection"
)

// Binding maps a receiving business phone number to its organization,
// credentials and enabled flows. Exactly one active binding exists per
// phone_number_id.
type Binding struct {
	PhoneNumberID string
	DisplayNumber string
	OrgID         string
	AccessToken   string
	VerifyToken   string
	EnabledFlows  map[string]bool

	// DedicatedLeadNumber marks the one number the lead-to-appointment
	// flow may engage on.
	DedicatedLeadNumber bool
}

// FlowEnabled treats an empty set as "everything enabled".
func (b Binding) FlowEnabled(flow string) bool {
	if len(b.EnabledFlows) == 0 {
		return true
	}
	return b.EnabledFlows[flow]
}

// Resolver is a deterministic, side-effect-free lookup from
// phone_number_id to Binding, backed by the tenant_numbers table with a
// TTL cache in front and an env-seeded fallback for single-tenant setups.
type Resolver struct {
	db    *loaders.PostgresClient
	cfg   *config.Config
	cache *cache.Cache
}

func NewResolver(db *loaders.PostgresClient, cfg *config.Config) *Resolver {
	return &Resolver{
		db:    db,
		cfg:   cfg,
		cache: cache.New(cfg.TenantCacheTTL, 2*cfg.TenantCacheTTL),
	}
}

func (r *Resolver) Resolve(ctx context.Context, phoneNumberID string) (Binding, error) {
	if phoneNumberID == "" {
		return Binding{}, ErrNotFound
	}

	if cached, ok := r.cache.Get(phoneNumberID); ok {
		return cached.(Binding), nil
	}

	rec, err := r.db.GetTenantNumber(ctx, phoneNumberID)
	if err != nil {
		utils.Zlog.Error("Tenant lookup failed",
			zap.String("phone_number_id", phoneNumberID),
			zap.Error(err))
		// Fall through to the env binding rather than dropping traffic
		// on a transient DB error.
		rec = nil
	}

	var binding Binding
	switch {
	case rec != nil:
		binding = bindingFromRecord(rec)
	case r.cfg.WhatsAppPhoneID == phoneNumberID && r.cfg.WhatsAppAccessToken != "":
		binding = r.envBinding(phoneNumberID)
	default:
		return Binding{}, ErrNotFound
	}

	if phoneNumberID == r.cfg.LeadFlowPhoneID {
		binding.DedicatedLeadNumber = true
	}

	r.cache.Set(phoneNumberID, binding, cache.DefaultExpiration)
	return binding, nil
}

// VerifyToken returns the subscription-handshake token for a phone
// number, falling back to the service-wide configured token.
func (r *Resolver) VerifyToken(ctx context.Context, phoneNumberID string) string {
	if phoneNumberID != "" {
		if binding, err := r.Resolve(ctx, phoneNumberID); err == nil && binding.VerifyToken != "" {
			return binding.VerifyToken
		}
	}
	return r.cfg.WhatsAppVerifyToken
}

func bindingFromRecord(rec *loaders.TenantNumberRecord) Binding {
	return Binding{
		PhoneNumberID:       rec.PhoneNumberID,
		DisplayNumber:       rec.DisplayNumber,
		OrgID:               rec.OrgID,
		AccessToken:         rec.AccessToken,
		VerifyToken:         rec.VerifyToken,
		EnabledFlows:        parseFlowSet(rec.EnabledFlows),
		DedicatedLeadNumber: rec.DedicatedLead,
	}
}

func (r *Resolver) envBinding(phoneNumberID string) Binding {
	return Binding{
		PhoneNumberID: phoneNumberID,
		DisplayNumber: r.cfg.WhatsAppDisplayNumber,
		OrgID:         "default",
		AccessToken:   r.cfg.WhatsAppAccessToken,
		VerifyToken:   r.cfg.WhatsAppVerifyToken,
	}
}

func parseFlowSet(csv string) map[string]bool {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			set[trimmed] = true
		}
	}
	return set
}
