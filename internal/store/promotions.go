package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/arvhein/backend-merch/internal/promo"
)

// ErrUsageExhausted is returned when recording a redemption would push a
// promotion past its global usage limit.
var ErrUsageExhausted = errors.New("store: promotion usage limit exhausted")

// Promotions persists promotion rules and their redemption log.
type Promotions struct {
	DB DB
}

// WithTx returns a copy of the store bound to the given transaction.
func (s Promotions) WithTx(tx pgx.Tx) Promotions {
	return Promotions{DB: tx}
}

const promotionColumns = `id, name, type, is_active, priority, discount_value,
	conditions, discount_tiers, bogo_config, gift_product,
	starts_at, ends_at, max_uses_total, max_uses_per_user, usage_count, combines_with`

// ListActive returns enabled promotions inside their activity window at the
// given instant, ordered by priority descending as the engine expects.
func (s Promotions) ListActive(ctx context.Context, now time.Time) ([]promo.Promotion, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+promotionColumns+`
		FROM promotions
		WHERE is_active
		  AND (starts_at IS NULL OR starts_at <= $1)
		  AND (ends_at IS NULL OR ends_at >= $1)
		ORDER BY priority DESC, created_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}
	defer rows.Close()
	return scanPromotions(rows)
}

// List returns every promotion regardless of state, for the admin surface.
func (s Promotions) List(ctx context.Context) ([]promo.Promotion, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()
	return scanPromotions(rows)
}

// Get fetches a single promotion by id.
func (s Promotions) Get(ctx context.Context, id uuid.UUID) (promo.Promotion, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, toPgUUID(id))
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promo.Promotion{}, promo.ErrNotFound
		}
		return promo.Promotion{}, fmt.Errorf("get promotion: %w", err)
	}
	return p, nil
}

// Create inserts a promotion rule and returns it with its assigned id.
func (s Promotions) Create(ctx context.Context, p promo.Promotion) (promo.Promotion, error) {
	conditions, tiers, bogo, gift, err := marshalPromotionConfig(p)
	if err != nil {
		return promo.Promotion{}, err
	}
	row := s.DB.QueryRow(ctx, `INSERT INTO promotions
		(name, type, is_active, priority, discount_value, conditions, discount_tiers,
		 bogo_config, gift_product, starts_at, ends_at, max_uses_total, max_uses_per_user, combines_with)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, usage_count`,
		p.Name, string(p.Type), p.IsActive, p.Priority, p.DiscountValue,
		conditions, tiers, bogo, gift,
		p.StartsAt, p.EndsAt, p.MaxUsesTotal, p.MaxUsesPerUser, toPgUUIDSlice(p.CombinesWith))
	var id pgtype.UUID
	if err := row.Scan(&id, &p.UsageCount); err != nil {
		return promo.Promotion{}, fmt.Errorf("create promotion: %w", err)
	}
	p.ID = uuid.UUID(id.Bytes)
	return p, nil
}

// Update replaces the mutable fields of a promotion rule.
func (s Promotions) Update(ctx context.Context, p promo.Promotion) error {
	conditions, tiers, bogo, gift, err := marshalPromotionConfig(p)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `UPDATE promotions SET
		name = $2, type = $3, is_active = $4, priority = $5, discount_value = $6,
		conditions = $7, discount_tiers = $8, bogo_config = $9, gift_product = $10,
		starts_at = $11, ends_at = $12, max_uses_total = $13, max_uses_per_user = $14,
		combines_with = $15, updated_at = now()
		WHERE id = $1`,
		toPgUUID(p.ID), p.Name, string(p.Type), p.IsActive, p.Priority, p.DiscountValue,
		conditions, tiers, bogo, gift,
		p.StartsAt, p.EndsAt, p.MaxUsesTotal, p.MaxUsesPerUser, toPgUUIDSlice(p.CombinesWith))
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

// SetActive toggles a promotion without touching the rest of the rule.
func (s Promotions) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.DB.Exec(ctx, `UPDATE promotions SET is_active = $2, updated_at = now() WHERE id = $1`, toPgUUID(id), active)
	if err != nil {
		return fmt.Errorf("set promotion active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

// UsageCountsByCustomer returns the customer's redemption count per
// promotion, used by the engine's per-user limit check.
func (s Promotions) UsageCountsByCustomer(ctx context.Context, customerID string) (map[uuid.UUID]int, error) {
	rows, err := s.DB.Query(ctx, `SELECT promotion_id, COUNT(*)
		FROM promotion_usages WHERE customer_id = $1 GROUP BY promotion_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("count promotion usage: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id pgtype.UUID
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[uuid.UUID(id.Bytes)] = int(n)
	}
	return counts, rows.Err()
}

// RecordUsage logs one redemption and bumps the promotion's usage counter in
// the same statement, refusing the increment once max_uses_total is reached.
// This is the atomic increment-with-check that closes the concurrent
// redemption race; run it inside the checkout transaction.
func (s Promotions) RecordUsage(ctx context.Context, promotionID uuid.UUID, customerID string, orderID uuid.UUID, discount decimal.Decimal) error {
	tag, err := s.DB.Exec(ctx, `UPDATE promotions
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND (max_uses_total IS NULL OR usage_count < max_uses_total)`,
		toPgUUID(promotionID))
	if err != nil {
		return fmt.Errorf("increment promotion usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageExhausted
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO promotion_usages (promotion_id, customer_id, order_id, discount)
		VALUES ($1, $2, $3, $4)`,
		toPgUUID(promotionID), customerID, toPgUUID(orderID), discount)
	if err != nil {
		return fmt.Errorf("insert promotion usage: %w", err)
	}
	return nil
}

func marshalPromotionConfig(p promo.Promotion) (conditions, tiers, bogo, gift []byte, err error) {
	if conditions, err = marshalNullable(p.Conditions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal conditions: %w", err)
	}
	if tiers, err = marshalNullable(p.Tiers); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal tiers: %w", err)
	}
	if bogo, err = marshalNullable(p.Bogo); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal bogo config: %w", err)
	}
	if gift, err = marshalNullable(p.Gift); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal gift: %w", err)
	}
	return conditions, tiers, bogo, gift, nil
}

func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func scanPromotions(rows pgx.Rows) ([]promo.Promotion, error) {
	var out []promo.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPromotion(row pgx.Row) (promo.Promotion, error) {
	var (
		p            promo.Promotion
		id           pgtype.UUID
		kind         string
		conditions   []byte
		tiers        []byte
		bogo         []byte
		gift         []byte
		combinesWith []pgtype.UUID
	)
	err := row.Scan(&id, &p.Name, &kind, &p.IsActive, &p.Priority, &p.DiscountValue,
		&conditions, &tiers, &bogo, &gift,
		&p.StartsAt, &p.EndsAt, &p.MaxUsesTotal, &p.MaxUsesPerUser, &p.UsageCount, &combinesWith)
	if err != nil {
		return promo.Promotion{}, err
	}
	p.ID = uuid.UUID(id.Bytes)
	p.Type = promo.Type(kind)
	p.CombinesWith = fromPgUUIDSlice(combinesWith)
	if err := unmarshalNullable(conditions, &p.Conditions); err != nil {
		return promo.Promotion{}, fmt.Errorf("decode conditions: %w", err)
	}
	if err := unmarshalNullable(tiers, &p.Tiers); err != nil {
		return promo.Promotion{}, fmt.Errorf("decode tiers: %w", err)
	}
	if err := unmarshalNullable(bogo, &p.Bogo); err != nil {
		return promo.Promotion{}, fmt.Errorf("decode bogo config: %w", err)
	}
	if err := unmarshalNullable(gift, &p.Gift); err != nil {
		return promo.Promotion{}, fmt.Errorf("decode gift: %w", err)
	}
	return p, nil
}

func unmarshalNullable[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func toPgUUIDSlice(ids []uuid.UUID) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		out = append(out, toPgUUID(id))
	}
	return out
}

func fromPgUUIDSlice(ids []pgtype.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id.Valid {
			out = append(out, uuid.UUID(id.Bytes))
		}
	}
	return out
}
