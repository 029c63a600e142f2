package loaders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	dsn  string
	pool *pgxpool.Pool
}

// TenantNumberRecord is one row of the tenant_numbers table: a business
// phone number with its owning organization and credential bundle.
type TenantNumberRecord struct {
	PhoneNumberID string
	DisplayNumber string
	OrgID         string
	AccessToken   string
	VerifyToken   string
	EnabledFlows  string
	DedicatedLead bool
}

// CustomerRecord is the per-wa_id contact row.
type CustomerRecord struct {
	ID         string
	WaID       string
	Name       string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// PaymentRecord tracks one payment link through its lifecycle.
type PaymentRecord struct {
	OrderRef    string
	WaID        string
	AmountPaise int64
	Currency    string
	RazorpayID  string
	ShortURL    string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AddressRecord is a validated delivery address.
type AddressRecord struct {
	ID      string
	WaID    string
	Name    string
	Phone   string
	Street  string
	City    string
	State   string
	Pincode string
}

func NewPostgresClient(dsn string, workerCount int) (*PostgresClient, error) {
	client := &PostgresClient{dsn: dsn}

	pool, err := client.createConnectionPool(workerCount)
	if err != nil {
		return nil, err
	}

	client.pool = pool
	log.Println("Successfully connected to PostgreSQL database with connection pool")
	return client, nil
}

func (c *PostgresClient) createConnectionPool(workerCount int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Postgres DSN: %w", err)
	}

	cfg.MaxConns = int32(workerCount) + 2
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = 60 * time.Minute
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	return pool, nil
}

func (c *PostgresClient) GetPool() *pgxpool.Pool {
	return c.pool
}

func (c *PostgresClient) Close() error {
	c.pool.Close()
	return nil
}

// EnsureSchema creates the tables this service owns. Idempotent.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS tenant_numbers (
			phone_number_id TEXT PRIMARY KEY,
			display_number  TEXT NOT NULL DEFAULT '',
			org_id          TEXT NOT NULL DEFAULT '',
			access_token    TEXT NOT NULL DEFAULT '',
			verify_token    TEXT NOT NULL DEFAULT '',
			enabled_flows   TEXT NOT NULL DEFAULT '',
			dedicated_lead  BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id           UUID PRIMARY KEY,
			wa_id        TEXT UNIQUE NOT NULL,
			name         TEXT NOT NULL DEFAULT '',
			referrer_url TEXT NOT NULL DEFAULT '',
			referrer_src TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			from_wa_id TEXT NOT NULL,
			to_wa_id   TEXT NOT NULL,
			type       TEXT NOT NULL,
			body       TEXT NOT NULL DEFAULT '',
			ts         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			order_ref    TEXT PRIMARY KEY,
			wa_id        TEXT NOT NULL,
			amount_paise BIGINT NOT NULL,
			currency     TEXT NOT NULL DEFAULT 'INR',
			razorpay_id  TEXT NOT NULL DEFAULT '',
			short_url    TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'created',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS addresses (
			id         UUID PRIMARY KEY,
			wa_id      TEXT NOT NULL,
			name       TEXT NOT NULL,
			phone      TEXT NOT NULL,
			street     TEXT NOT NULL,
			city       TEXT NOT NULL,
			state      TEXT NOT NULL,
			pincode    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS lead_failures (
			id         UUID PRIMARY KEY,
			wa_id      TEXT NOT NULL,
			fields     JSONB NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS flow_logs (
			id         UUID PRIMARY KEY,
			wa_id      TEXT NOT NULL,
			flow       TEXT NOT NULL,
			step       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range ddl {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}

// GetTenantNumber looks up the binding row for a receiving phone number.
func (c *PostgresClient) GetTenantNumber(ctx context.Context, phoneNumberID string) (*TenantNumberRecord, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT phone_number_id, display_number, org_id, access_token, verify_token, enabled_flows, dedicated_lead
		FROM tenant_numbers
		WHERE phone_number_id = $1`, phoneNumberID)

	var rec TenantNumberRecord
	err := row.Scan(&rec.PhoneNumberID, &rec.DisplayNumber, &rec.OrgID, &rec.AccessToken,
		&rec.VerifyToken, &rec.EnabledFlows, &rec.DedicatedLead)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant number: %w", err)
	}
	return &rec, nil
}

// UpsertCustomer creates the contact on first sight and refreshes the
// profile name and last_seen on every subsequent message.
func (c *PostgresClient) UpsertCustomer(ctx context.Context, id, waID, name string) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO customers (id, wa_id, name, last_seen_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (wa_id) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE customers.name END,
		    last_seen_at = NOW()`, id, waID, name)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

// UpdateCustomerReferrer records the ad-click source for a contact.
func (c *PostgresClient) UpdateCustomerReferrer(ctx context.Context, waID, sourceURL, sourceID string) error {
	_, err := c.pool.Exec(ctx, `
		UPDATE customers SET referrer_url = $2, referrer_src = $3 WHERE wa_id = $1`,
		waID, sourceURL, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update referrer: %w", err)
	}
	return nil
}

// SaveMessage persists one inbound or outbound message. Duplicate
// message ids (provider redeliveries) are ignored.
func (c *PostgresClient) SaveMessage(ctx context.Context, messageID, fromWaID, toWaID, msgType, body string, ts time.Time) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO messages (message_id, from_wa_id, to_wa_id, type, body, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING`,
		messageID, fromWaID, toWaID, msgType, body, ts)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// SavePayment records a freshly created payment link.
func (c *PostgresClient) SavePayment(ctx context.Context, rec *PaymentRecord) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO payments (order_ref, wa_id, amount_paise, currency, razorpay_id, short_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_ref) DO NOTHING`,
		rec.OrderRef, rec.WaID, rec.AmountPaise, rec.Currency, rec.RazorpayID, rec.ShortURL, rec.Status)
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// GetPaymentByOrderRef loads a payment by its opaque order reference.
func (c *PostgresClient) GetPaymentByOrderRef(ctx context.Context, orderRef string) (*PaymentRecord, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT order_ref, wa_id, amount_paise, currency, razorpay_id, short_url, status, created_at, updated_at
		FROM payments WHERE order_ref = $1`, orderRef)

	var rec PaymentRecord
	err := row.Scan(&rec.OrderRef, &rec.WaID, &rec.AmountPaise, &rec.Currency,
		&rec.RazorpayID, &rec.ShortURL, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &rec, nil
}

// UpdatePaymentStatus moves a payment to a new status. Returns true when
// the row actually transitioned, false when it was already there
// (idempotent webhook replays).
func (c *PostgresClient) UpdatePaymentStatus(ctx context.Context, orderRef, status string) (bool, error) {
	tag, err := c.pool.Exec(ctx, `
		UPDATE payments SET status = $2, updated_at = NOW()
		WHERE order_ref = $1 AND status <> $2`, orderRef, status)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SaveAddress persists a fully validated address.
func (c *PostgresClient) SaveAddress(ctx context.Context, rec *AddressRecord) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO addresses (id, wa_id, name, phone, street, city, state, pincode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.WaID, rec.Name, rec.Phone, rec.Street, rec.City, rec.State, rec.Pincode)
	if err != nil {
		return fmt.Errorf("failed to save address: %w", err)
	}
	return nil
}

// ListAddresses returns the saved addresses for a contact, newest first.
func (c *PostgresClient) ListAddresses(ctx context.Context, waID string, limit int) ([]AddressRecord, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, wa_id, name, phone, street, city, state, pincode
		FROM addresses WHERE wa_id = $1
		ORDER BY created_at DESC LIMIT $2`, waID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var out []AddressRecord
	for rows.Next() {
		var rec AddressRecord
		if err := rows.Scan(&rec.ID, &rec.WaID, &rec.Name, &rec.Phone, &rec.Street,
			&rec.City, &rec.State, &rec.Pincode); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetAddress loads one saved address by id.
func (c *PostgresClient) GetAddress(ctx context.Context, id string) (*AddressRecord, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT id, wa_id, name, phone, street, city, state, pincode
		FROM addresses WHERE id = $1`, id)

	var rec AddressRecord
	err := row.Scan(&rec.ID, &rec.WaID, &rec.Name, &rec.Phone, &rec.Street,
		&rec.City, &rec.State, &rec.Pincode)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load address: %w", err)
	}
	return &rec, nil
}

// SaveLeadFailure writes the durable needs-manual-follow-up record for a
// lead that could not be delivered to the CRM even after retrying.
func (c *PostgresClient) SaveLeadFailure(ctx context.Context, id, waID string, fields map[string]string, lastErr string) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal lead fields: %w", err)
	}
	_, err = c.pool.Exec(ctx, `
		INSERT INTO lead_failures (id, wa_id, fields, last_error)
		VALUES ($1, $2, $3, $4)`, id, waID, payload, lastErr)
	if err != nil {
		return fmt.Errorf("failed to save lead failure: %w", err)
	}
	return nil
}

// SaveFlowLog records the furthest step a contact reached in a flow.
func (c *PostgresClient) SaveFlowLog(ctx context.Context, id, waID, flow, step string) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO flow_logs (id, wa_id, flow, step)
		VALUES ($1, $2, $3, $4)`, id, waID, flow, step)
	if err != nil {
		return fmt.Errorf("failed to save flow log: %w", err)
	}
	return nil
}
