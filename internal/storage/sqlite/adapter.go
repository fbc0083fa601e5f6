// Package sqlite implements storage.Store on SQLite. It suits single-node
// deployments and local development; use the postgres package when running
// more than one gateway instance.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/rules"
)

// Adapter is the SQLite-backed store.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens the database file and runs migrations.
func NewAdapter(databasePath string) (*Adapter, error) {
	if databasePath == "" {
		return nil, errors.ConfigError("sqlite database path is required")
	}

	db, err := sql.Open("sqlite3", databasePath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return adapter, nil
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS shipping_rules (
			id TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			conditions TEXT NOT NULL DEFAULT '[]',
			action TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shipping_rules_merchant ON shipping_rules(merchant_id, is_active)`,
		`CREATE TABLE IF NOT EXISTS merchant_provider_configs (
			merchant_id TEXT NOT NULL,
			carrier_code TEXT NOT NULL,
			api_key TEXT NOT NULL DEFAULT '',
			api_secret TEXT NOT NULL DEFAULT '',
			account_number TEXT NOT NULL DEFAULT '',
			enabled BOOLEAN NOT NULL DEFAULT 1,
			custom_properties TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (merchant_id, carrier_code)
		)`,
		`CREATE TABLE IF NOT EXISTS fallback_policies (
			merchant_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			flat_rate_amount REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			ttl_seconds INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// CreateRule inserts a new shipping rule.
func (a *Adapter) CreateRule(ctx context.Context, rule *rules.ShippingRule) error {
	conditions, action, err := marshalRule(rule)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO shipping_rules (id, merchant_id, name, priority, is_active, conditions, action, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.MerchantID, rule.Name, rule.Priority, rule.IsActive, conditions, action, now, now)
	if err != nil {
		return errors.InternalError("failed to insert rule", err)
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// GetRule loads one of a merchant's rules.
func (a *Adapter) GetRule(ctx context.Context, merchantID, ruleID string) (*rules.ShippingRule, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, merchant_id, name, priority, is_active, conditions, action, created_at, updated_at
		 FROM shipping_rules WHERE id = ? AND merchant_id = ?`, ruleID, merchantID)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("shipping rule " + ruleID)
	}
	return rule, err
}

// ListRules returns all of a merchant's rules in priority order.
func (a *Adapter) ListRules(ctx context.Context, merchantID string) ([]*rules.ShippingRule, error) {
	return a.queryRules(ctx,
		`SELECT id, merchant_id, name, priority, is_active, conditions, action, created_at, updated_at
		 FROM shipping_rules WHERE merchant_id = ? ORDER BY priority, id`, merchantID)
}

// ListActiveRules returns the merchant's active rules in priority order.
func (a *Adapter) ListActiveRules(ctx context.Context, merchantID string) ([]*rules.ShippingRule, error) {
	return a.queryRules(ctx,
		`SELECT id, merchant_id, name, priority, is_active, conditions, action, created_at, updated_at
		 FROM shipping_rules WHERE merchant_id = ? AND is_active = 1 ORDER BY priority, id`, merchantID)
}

func (a *Adapter) queryRules(ctx context.Context, query string, args ...interface{}) ([]*rules.ShippingRule, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.InternalError("failed to query rules", err)
	}
	defer rows.Close()

	var out []*rules.ShippingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// UpdateRule replaces an existing rule's mutable fields.
func (a *Adapter) UpdateRule(ctx context.Context, rule *rules.ShippingRule) error {
	conditions, action, err := marshalRule(rule)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	result, err := a.db.ExecContext(ctx,
		`UPDATE shipping_rules SET name = ?, priority = ?, is_active = ?, conditions = ?, action = ?, updated_at = ?
		 WHERE id = ? AND merchant_id = ?`,
		rule.Name, rule.Priority, rule.IsActive, conditions, action, now, rule.ID, rule.MerchantID)
	if err != nil {
		return errors.InternalError("failed to update rule", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NotFoundError("shipping rule " + rule.ID)
	}
	rule.UpdatedAt = now
	return nil
}

// DeleteRule removes a merchant's rule.
func (a *Adapter) DeleteRule(ctx context.Context, merchantID, ruleID string) error {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM shipping_rules WHERE id = ? AND merchant_id = ?`, ruleID, merchantID)
	if err != nil {
		return errors.InternalError("failed to delete rule", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NotFoundError("shipping rule " + ruleID)
	}
	return nil
}

// UpsertProviderConfig creates or replaces a carrier config.
func (a *Adapter) UpsertProviderConfig(ctx context.Context, cfg *models.MerchantProviderConfig) error {
	props, err := json.Marshal(cfg.CustomProperties)
	if err != nil {
		return errors.InternalError("failed to marshal custom properties", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO merchant_provider_configs (merchant_id, carrier_code, api_key, api_secret, account_number, enabled, custom_properties, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(merchant_id, carrier_code) DO UPDATE SET
			api_key = excluded.api_key,
			api_secret = excluded.api_secret,
			account_number = excluded.account_number,
			enabled = excluded.enabled,
			custom_properties = excluded.custom_properties,
			updated_at = excluded.updated_at`,
		cfg.MerchantID, cfg.CarrierCode, cfg.APIKey, cfg.APISecret, cfg.AccountNumber, cfg.Enabled, string(props), time.Now().UTC())
	if err != nil {
		return errors.InternalError("failed to upsert provider config", err)
	}
	return nil
}

// GetProviderConfig returns one of a merchant's carrier configs.
func (a *Adapter) GetProviderConfig(ctx context.Context, merchantID, carrierCode string) (*models.MerchantProviderConfig, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT merchant_id, carrier_code, api_key, api_secret, account_number, enabled, custom_properties
		 FROM merchant_provider_configs WHERE merchant_id = ? AND carrier_code = ?`, merchantID, carrierCode)
	cfg, err := scanProviderConfig(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("provider config for " + carrierCode)
	}
	return cfg, err
}

// ListProviderConfigs returns all of a merchant's carrier configs.
func (a *Adapter) ListProviderConfigs(ctx context.Context, merchantID string) ([]*models.MerchantProviderConfig, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT merchant_id, carrier_code, api_key, api_secret, account_number, enabled, custom_properties
		 FROM merchant_provider_configs WHERE merchant_id = ? ORDER BY carrier_code`, merchantID)
	if err != nil {
		return nil, errors.InternalError("failed to query provider configs", err)
	}
	defer rows.Close()

	var out []*models.MerchantProviderConfig
	for rows.Next() {
		cfg, err := scanProviderConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeleteProviderConfig removes a carrier config.
func (a *Adapter) DeleteProviderConfig(ctx context.Context, merchantID, carrierCode string) error {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM merchant_provider_configs WHERE merchant_id = ? AND carrier_code = ?`, merchantID, carrierCode)
	if err != nil {
		return errors.InternalError("failed to delete provider config", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NotFoundError("provider config for " + carrierCode)
	}
	return nil
}

// SetFallbackPolicy stores the merchant's fallback policy.
func (a *Adapter) SetFallbackPolicy(ctx context.Context, merchantID string, policy *models.FallbackPolicy) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO fallback_policies (merchant_id, kind, flat_rate_amount, currency, ttl_seconds, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(merchant_id) DO UPDATE SET
			kind = excluded.kind,
			flat_rate_amount = excluded.flat_rate_amount,
			currency = excluded.currency,
			ttl_seconds = excluded.ttl_seconds,
			updated_at = excluded.updated_at`,
		merchantID, string(policy.Kind), policy.FlatRateAmount, policy.Currency, policy.TTLSeconds, time.Now().UTC())
	if err != nil {
		return errors.InternalError("failed to set fallback policy", err)
	}
	return nil
}

// GetFallbackPolicy returns the merchant's fallback policy, or nil when the
// merchant has none.
func (a *Adapter) GetFallbackPolicy(ctx context.Context, merchantID string) (*models.FallbackPolicy, error) {
	var policy models.FallbackPolicy
	var kind string
	err := a.db.QueryRowContext(ctx,
		`SELECT kind, flat_rate_amount, currency, ttl_seconds FROM fallback_policies WHERE merchant_id = ?`,
		merchantID).Scan(&kind, &policy.FlatRateAmount, &policy.Currency, &policy.TTLSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.InternalError("failed to query fallback policy", err)
	}
	policy.Kind = models.FallbackPolicyKind(kind)
	return &policy, nil
}

// Ping checks database connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database.
func (a *Adapter) Close() error {
	return a.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func marshalRule(rule *rules.ShippingRule) (string, string, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return "", "", errors.InternalError("failed to marshal conditions", err)
	}
	action, err := json.Marshal(rule.Action)
	if err != nil {
		return "", "", errors.InternalError("failed to marshal action", err)
	}
	return string(conditions), string(action), nil
}

func scanRule(row scanner) (*rules.ShippingRule, error) {
	var rule rules.ShippingRule
	var conditions, action string
	err := row.Scan(&rule.ID, &rule.MerchantID, &rule.Name, &rule.Priority, &rule.IsActive,
		&conditions, &action, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, errors.InternalError("failed to unmarshal conditions", err)
	}
	if err := json.Unmarshal([]byte(action), &rule.Action); err != nil {
		return nil, errors.InternalError("failed to unmarshal action", err)
	}
	return &rule, nil
}

func scanProviderConfig(row scanner) (*models.MerchantProviderConfig, error) {
	var cfg models.MerchantProviderConfig
	var props string
	err := row.Scan(&cfg.MerchantID, &cfg.CarrierCode, &cfg.APIKey, &cfg.APISecret,
		&cfg.AccountNumber, &cfg.Enabled, &props)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(props), &cfg.CustomProperties); err != nil {
		return nil, errors.InternalError("failed to unmarshal custom properties", err)
	}
	return &cfg, nil
}
