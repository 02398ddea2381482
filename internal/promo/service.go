package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced to handlers.
var (
	ErrNotFound    = errors.New("promotion not found")
	ErrInvalidRule = errors.New("invalid promotion rule")
)

// Store captures the persistence methods the promotion service needs.
type Store interface {
	ListActive(ctx context.Context, now time.Time) ([]Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	Get(ctx context.Context, id uuid.UUID) (Promotion, error)
	Create(ctx context.Context, p Promotion) (Promotion, error)
	Update(ctx context.Context, p Promotion) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UsageCountsByCustomer(ctx context.Context, customerID string) (map[uuid.UUID]int, error)
}

// UsageRecorder records one redemption atomically. Checkout passes a
// transaction-bound implementation so the increment commits with the order.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, promotionID uuid.UUID, customerID string, orderID uuid.UUID, discount decimal.Decimal) error
}

// Service evaluates promotions against carts and manages promotion rules.
type Service struct {
	Store Store
	Cache *Cache
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Active returns the currently applicable promotions in priority order,
// served from cache when possible.
func (s *Service) Active(ctx context.Context) ([]Promotion, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("promo service not configured")
	}
	var cached []Promotion
	if ok, err := s.Cache.GetActive(ctx, &cached); err == nil && ok {
		return cached, nil
	}
	promotions, err := s.Store.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetActive(ctx, promotions)
	return promotions, nil
}

// Price runs the selection pipeline for a cart. customerID may be empty for
// anonymous pricing, which skips per-user limits.
func (s *Service) Price(ctx context.Context, cart Cart, customerID string) (PricingResult, error) {
	if s == nil || s.Store == nil {
		return PricingResult{}, errors.New("promo service not configured")
	}
	promotions, err := s.Active(ctx)
	if err != nil {
		return PricingResult{}, err
	}

	var usage UsageLookup
	if customerID != "" {
		counts, err := s.Store.UsageCountsByCustomer(ctx, customerID)
		if err != nil {
			return PricingResult{}, err
		}
		usage = func(promotionID uuid.UUID, _ string) int {
			return counts[promotionID]
		}
	}
	return SelectAndPrice(cart, customerID, promotions, usage), nil
}

// Progress estimates how close a cart is to unlocking one promotion.
func (s *Service) Progress(ctx context.Context, cart Cart, promotionID uuid.UUID) ([]Progress, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("promo service not configured")
	}
	p, err := s.Store.Get(ctx, promotionID)
	if err != nil {
		return nil, err
	}
	if !p.ActiveAt(s.now()) {
		return nil, ErrNotFound
	}
	return Estimate(cart, p), nil
}

// Redeem records the applied promotions of a priced checkout. rec must be
// bound to the checkout transaction so the usage increments commit with the
// order or not at all.
func (s *Service) Redeem(ctx context.Context, rec UsageRecorder, applied []AppliedPromotion, customerID string, orderID uuid.UUID) error {
	if rec == nil {
		return errors.New("usage recorder not configured")
	}
	for _, a := range applied {
		if err := rec.RecordUsage(ctx, a.ID, customerID, orderID, a.Discount); err != nil {
			return fmt.Errorf("redeem %s: %w", a.Name, err)
		}
	}
	return nil
}

// CreateRule validates and stores a new promotion rule.
func (s *Service) CreateRule(ctx context.Context, p Promotion) (Promotion, error) {
	if s == nil || s.Store == nil {
		return Promotion{}, errors.New("promo service not configured")
	}
	if err := validateRule(p); err != nil {
		return Promotion{}, err
	}
	created, err := s.Store.Create(ctx, p)
	if err != nil {
		return Promotion{}, err
	}
	_ = s.Cache.Invalidate(ctx)
	return created, nil
}

// UpdateRule validates and replaces an existing promotion rule.
func (s *Service) UpdateRule(ctx context.Context, p Promotion) error {
	if s == nil || s.Store == nil {
		return errors.New("promo service not configured")
	}
	if err := validateRule(p); err != nil {
		return err
	}
	if err := s.Store.Update(ctx, p); err != nil {
		return err
	}
	return s.Cache.Invalidate(ctx)
}

// SetRuleActive toggles a promotion on or off.
func (s *Service) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error {
	if s == nil || s.Store == nil {
		return errors.New("promo service not configured")
	}
	if err := s.Store.SetActive(ctx, id, active); err != nil {
		return err
	}
	return s.Cache.Invalidate(ctx)
}

func validateRule(p Promotion) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidRule)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown type %q: %w", p.Type, ErrInvalidRule)
	}
	switch p.Type {
	case TypeTiered:
		if p.Tiers == nil {
			return fmt.Errorf("tiered promotion needs tier config: %w", ErrInvalidRule)
		}
	case TypeBogo:
		if p.Bogo == nil || p.Bogo.Buy <= 0 || p.Bogo.Get <= 0 {
			return fmt.Errorf("bogo promotion needs buy and get counts: %w", ErrInvalidRule)
		}
	case TypeFreeGift:
		if p.Gift == nil {
			return fmt.Errorf("free gift promotion needs a gift product: %w", ErrInvalidRule)
		}
	}
	if p.StartsAt != nil && p.EndsAt != nil && p.EndsAt.Before(*p.StartsAt) {
		return fmt.Errorf("ends before it starts: %w", ErrInvalidRule)
	}
	return nil
}
