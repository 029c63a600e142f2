package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rayimanoj-oliva/wb-crm/internal/utils"
	"go.uber.org/zap"
)

// ShopifyClient mirrors paid WhatsApp orders into the store so
// fulfilment runs off a single order book.
type ShopifyClient struct {
	http    *resty.Client
	enabled bool
}

func NewShopifyClient(storeDomain, accessToken string) *ShopifyClient {
	enabled := storeDomain != "" && accessToken != ""
	client := resty.New().SetTimeout(20 * time.Second)
	if enabled {
		client.
			SetBaseURL("https://" + storeDomain + "/admin/api/2024-01").
			SetHeader("X-Shopify-Access-Token", accessToken)
	}
	return &ShopifyClient{http: client, enabled: enabled}
}

// Enabled reports whether store credentials are configured. Order sync
// is optional; everything else works without it.
func (c *ShopifyClient) Enabled() bool { return c.enabled }

// SyncPaidOrder records one paid order against the store. Line items
// are collapsed into a single custom line because WhatsApp product ids
// do not map onto store variant ids.
func (c *ShopifyClient) SyncPaidOrder(ctx context.Context, orderRef, customerPhone string, amountPaise int64, currency string) error {
	if !c.enabled {
		return nil
	}

	body := map[string]any{
		"order": map[string]any{
			"line_items": []map[string]any{
				{
					"title":    "WhatsApp order " + orderRef,
					"price":    fmt.Sprintf("%d.%02d", amountPaise/100, amountPaise%100),
					"quantity": 1,
				},
			},
			"currency":         currency,
			"financial_status": "paid",
			"tags":             "whatsapp," + orderRef,
			"phone":            "+" + customerPhone,
		},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/orders.json")
	if err != nil {
		return fmt.Errorf("shopify order sync failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("shopify order sync rejected: %s", resp.Status())
	}

	utils.Zlog.Info("Shopify order synced",
		zap.String("order_ref", orderRef))
	return nil
}
