package promo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	promotions []Promotion
	usage      map[uuid.UUID]int
	usageErr   error
	created    []Promotion
	updated    []Promotion
	toggled    []uuid.UUID
}

func (s *stubStore) ListActive(ctx context.Context, now time.Time) ([]Promotion, error) {
	var out []Promotion
	for _, p := range s.promotions {
		if p.ActiveAt(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubStore) List(ctx context.Context) ([]Promotion, error) {
	return s.promotions, nil
}

func (s *stubStore) Get(ctx context.Context, id uuid.UUID) (Promotion, error) {
	for _, p := range s.promotions {
		if p.ID == id {
			return p, nil
		}
	}
	return Promotion{}, ErrNotFound
}

func (s *stubStore) Create(ctx context.Context, p Promotion) (Promotion, error) {
	p.ID = uuid.New()
	s.created = append(s.created, p)
	return p, nil
}

func (s *stubStore) Update(ctx context.Context, p Promotion) error {
	s.updated = append(s.updated, p)
	return nil
}

func (s *stubStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.toggled = append(s.toggled, id)
	return nil
}

func (s *stubStore) UsageCountsByCustomer(ctx context.Context, customerID string) (map[uuid.UUID]int, error) {
	if s.usageErr != nil {
		return nil, s.usageErr
	}
	return s.usage, nil
}

type stubRecorder struct {
	recorded []uuid.UUID
	err      error
}

func (r *stubRecorder) RecordUsage(ctx context.Context, promotionID uuid.UUID, customerID string, orderID uuid.UUID, discount decimal.Decimal) error {
	if r.err != nil {
		return r.err
	}
	r.recorded = append(r.recorded, promotionID)
	return nil
}

func activePercent(name string, value string) Promotion {
	return Promotion{
		ID:            uuid.New(),
		Name:          name,
		Type:          TypePercentage,
		IsActive:      true,
		DiscountValue: decimal.RequireFromString(value),
		CombinesWith:  []uuid.UUID{uuid.New()},
	}
}

func TestServicePriceAppliesActivePromotions(t *testing.T) {
	store := &stubStore{promotions: []Promotion{activePercent("ten off", "10")}}
	svc := &Service{Store: store}

	cart := BuildCart([]CartLine{{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("100")}}, decimal.Zero)
	result, err := svc.Price(context.Background(), cart, "")
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.True(t, result.TotalDiscount.Equal(decimal.RequireFromString("10")))
}

func TestServicePriceUsesCustomerUsage(t *testing.T) {
	limited := activePercent("once each", "10")
	one := 1
	limited.MaxUsesPerUser = &one

	store := &stubStore{
		promotions: []Promotion{limited},
		usage:      map[uuid.UUID]int{limited.ID: 1},
	}
	svc := &Service{Store: store}

	cart := BuildCart([]CartLine{{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("100")}}, decimal.Zero)

	result, err := svc.Price(context.Background(), cart, "customer-1")
	require.NoError(t, err)
	require.Empty(t, result.Applied)

	// anonymous pricing skips the per-user limit
	result, err = svc.Price(context.Background(), cart, "")
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
}

func TestServicePriceUsageLookupFailure(t *testing.T) {
	store := &stubStore{
		promotions: []Promotion{activePercent("ten off", "10")},
		usageErr:   errors.New("db down"),
	}
	svc := &Service{Store: store}

	cart := BuildCart([]CartLine{{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("100")}}, decimal.Zero)
	_, err := svc.Price(context.Background(), cart, "customer-1")
	require.Error(t, err)
}

func TestServiceProgressInactivePromotion(t *testing.T) {
	expired := activePercent("gone", "10")
	past := time.Now().Add(-time.Hour)
	expired.EndsAt = &past

	store := &stubStore{promotions: []Promotion{expired}}
	svc := &Service{Store: store}

	_, err := svc.Progress(context.Background(), Cart{}, expired.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceRedeemRecordsEachApplied(t *testing.T) {
	svc := &Service{Store: &stubStore{}}
	rec := &stubRecorder{}
	applied := []AppliedPromotion{
		{ID: uuid.New(), Name: "a", Discount: decimal.RequireFromString("5")},
		{ID: uuid.New(), Name: "b", Discount: decimal.RequireFromString("3")},
	}
	require.NoError(t, svc.Redeem(context.Background(), rec, applied, "customer-1", uuid.New()))
	require.Len(t, rec.recorded, 2)
}

func TestServiceRedeemPropagatesFailure(t *testing.T) {
	svc := &Service{Store: &stubStore{}}
	rec := &stubRecorder{err: errors.New("exhausted")}
	applied := []AppliedPromotion{{ID: uuid.New(), Name: "a"}}
	require.Error(t, svc.Redeem(context.Background(), rec, applied, "customer-1", uuid.New()))
}

func TestValidateRule(t *testing.T) {
	svc := &Service{Store: &stubStore{}}

	_, err := svc.CreateRule(context.Background(), Promotion{Name: "x", Type: Type("MYSTERY")})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = svc.CreateRule(context.Background(), Promotion{Name: "", Type: TypeFixed})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = svc.CreateRule(context.Background(), Promotion{Name: "tiers", Type: TypeTiered})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = svc.CreateRule(context.Background(), Promotion{Name: "bogo", Type: TypeBogo, Bogo: &BogoConfig{Buy: 0, Get: 1}})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = svc.CreateRule(context.Background(), Promotion{Name: "gift", Type: TypeFreeGift})
	require.ErrorIs(t, err, ErrInvalidRule)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = svc.CreateRule(context.Background(), Promotion{Name: "window", Type: TypeFixed, StartsAt: &start, EndsAt: &end})
	require.ErrorIs(t, err, ErrInvalidRule)

	created, err := svc.CreateRule(context.Background(), Promotion{
		Name: "ok", Type: TypePercentage, DiscountValue: decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
}
