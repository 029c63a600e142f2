package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	cache "github.com/patrickmn/go-cache"
	"github.com/rayimanoj-oliva/wb-crm/internal/flows"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"go.uber.org/zap"
)

const zohoTokenKey = "access_token"

// ZohoConfig is the credential bundle for the CRM tenant. APIBaseURL
// includes the /crm/v2 prefix.
type ZohoConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccountsURL  string
	APIBaseURL   string
}

// ZohoClient creates CRM leads and fires the auto-dial hook. Access
// tokens come from the refresh-token grant and are cached just under
// their one hour lifetime.
type ZohoClient struct {
	http   *resty.Client
	cfg    ZohoConfig
	tokens *cache.Cache
}

func NewZohoClient(cfg ZohoConfig) *ZohoClient {
	return &ZohoClient{
		http: resty.New().
			SetTimeout(20 * time.Second).
			SetRetryCount(1),
		cfg:    cfg,
		tokens: cache.New(50*time.Minute, 10*time.Minute),
	}
}

type zohoTokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

func (c *ZohoClient) accessToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(zohoTokenKey); ok {
		return tok.(string), nil
	}

	var out zohoTokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"refresh_token": c.cfg.RefreshToken,
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
			"grant_type":    "refresh_token",
		}).
		SetResult(&out).
		Post(c.cfg.AccountsURL + "/oauth/v2/token")
	if err != nil {
		return "", fmt.Errorf("zoho token refresh failed: %w", err)
	}
	if resp.IsError() || out.AccessToken == "" {
		return "", fmt.Errorf("zoho token refresh rejected: status=%d error=%s", resp.StatusCode(), out.Error)
	}

	c.tokens.Set(zohoTokenKey, out.AccessToken, cache.DefaultExpiration)
	return out.AccessToken, nil
}

type zohoLeadResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
	} `json:"data"`
}

// CreateLead creates one CRM lead and returns its record id. A sender
// with only one name token goes into Last_Name, which Zoho requires.
func (c *ZohoClient) CreateLead(ctx context.Context, fields flows.LeadFields) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	firstName, lastName := splitLeadName(fields.Name)
	record := map[string]any{
		"Last_Name":   lastName,
		"Phone":       fields.Phone,
		"Lead_Source": fields.Source,
		"Lead_Status": fields.StatusTag,
		"Description": fields.Description,
	}
	if firstName != "" {
		record["First_Name"] = firstName
	}
	if fields.Treatment != "" {
		record["Treatment"] = fields.Treatment
	}

	var out zohoLeadResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Zoho-oauthtoken "+token).
		SetBody(map[string]any{"data": []map[string]any{record}}).
		SetResult(&out).
		Post(c.cfg.APIBaseURL + "/Leads")
	if err != nil {
		return "", fmt.Errorf("zoho lead create failed: %w", err)
	}
	if resp.IsError() || len(out.Data) == 0 || !strings.EqualFold(out.Data[0].Code, "SUCCESS") {
		msg := resp.Status()
		if len(out.Data) > 0 {
			msg = out.Data[0].Message
		}
		return "", fmt.Errorf("zoho lead create rejected: %s", msg)
	}

	leadID := out.Data[0].Details.ID
	utils.Zlog.Info("Zoho lead created",
		zap.String("lead_id", leadID),
		zap.String("status_tag", fields.StatusTag))
	return leadID, nil
}

// TriggerAutoDial executes the CRM-side auto-dial function for a lead
// that asked to be called right away.
func (c *ZohoClient) TriggerAutoDial(ctx context.Context, leadID, phone string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Zoho-oauthtoken "+token).
		SetBody(map[string]any{
			"lead_id": leadID,
			"phone":   phone,
		}).
		Post(c.cfg.APIBaseURL + "/functions/auto_dial/actions/execute")
	if err != nil {
		return fmt.Errorf("zoho auto-dial failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("zoho auto-dial rejected: %s", resp.Status())
	}
	return nil
}

// splitLeadName maps a display name onto Zoho's first/last split: a
// single token becomes the last name, the rest join after the first.
func splitLeadName(name string) (first, last string) {
	tokens := strings.Fields(strings.TrimSpace(name))
	switch len(tokens) {
	case 0:
		return "", "Customer"
	case 1:
		return "", tokens[0]
	default:
		return tokens[0], strings.Join(tokens[1:], " ")
	}
}
