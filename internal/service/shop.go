package service

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/lock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// Shop service errors.
var (
	ErrUnknownStat = errors.New("unknown stat")
	ErrInvalidQty  = errors.New("quantity must be positive")
	ErrNotEnough   = errors.New("not enough currency")
)

// Flat purchases roll a random amount around this per unit; percent
// purchases add exactly one point.
const flatGainBase = 1000

// StatConfig describes one purchasable stat.
type StatConfig struct {
	ID    string
	Label string
	Base  int64
	Flat  bool
}

// StatCatalog lists every purchasable stat in display order.
var StatCatalog = []StatConfig{
	{ID: "attack", Label: "ATK", Base: 10_000, Flat: true},
	{ID: "defense", Label: "DEF", Base: 10_000, Flat: true},
	{ID: "health", Label: "HP", Base: 10_000, Flat: true},
	{ID: "dodge", Label: "Dodge (%)", Base: 50_000},
	{ID: "accuracy", Label: "Accuracy (%)", Base: 50_000},
	{ID: "crit_rate", Label: "Crit rate (%)", Base: 50_000},
	{ID: "crit_resistance", Label: "Crit resistance (%)", Base: 50_000},
	{ID: "armor_penetration", Label: "Armor penetration (%)", Base: 50_000},
	{ID: "armor_resistance", Label: "Armor resistance (%)", Base: 50_000},
}

var statByID = func() map[string]StatConfig {
	m := make(map[string]StatConfig, len(StatCatalog))
	for _, cfg := range StatCatalog {
		m[cfg.ID] = cfg
	}
	return m
}()

// PricingPolicy maps a stat's base price and the number of prior
// purchases to the next unit price.
type PricingPolicy func(base int64, n int) int64

// DefaultPricing is the escalating curve: floor(base * (1 + 0.12n)^2.3).
func DefaultPricing(base int64, n int) int64 {
	return int64(math.Floor(float64(base) * math.Pow(1+0.12*float64(n), 2.3)))
}

// PurchaseResult is one settled shop purchase.
type PurchaseResult struct {
	Stat       StatConfig
	Quantity   int
	Cost       int64
	FlatGain   int64
	CountAfter int
	Balance    int64
}

// Listing is one catalog row with the buyer's next unit price.
type Listing struct {
	Stat     StatConfig
	Bought   int
	NextCost int64
}

// ShopService sells permanent combat stat increases at an escalating
// per-stat price.
type ShopService struct {
	users    *repository.UserRepository
	shop     *repository.ShopRepository
	accounts *AccountService
	locks    *lock.UserLock
	pricing  PricingPolicy
}

// NewShopService creates a new ShopService instance. A nil pricing
// policy selects the default curve.
func NewShopService(
	users *repository.UserRepository,
	shop *repository.ShopRepository,
	accounts *AccountService,
	locks *lock.UserLock,
	pricing PricingPolicy,
) *ShopService {
	if pricing == nil {
		pricing = DefaultPricing
	}
	return &ShopService{
		users:    users,
		shop:     shop,
		accounts: accounts,
		locks:    locks,
		pricing:  pricing,
	}
}

// Cost sums the next qty unit prices for a stat, starting from the
// buyer's current purchase count.
func (s *ShopService) Cost(cfg StatConfig, bought, qty int) int64 {
	var total int64
	for i := 0; i < qty; i++ {
		total += s.pricing(cfg.Base, bought+i)
	}
	return total
}

// Catalog returns the shop listing with the user's personal next prices.
func (s *ShopService) Catalog(ctx context.Context, userID string) ([]Listing, error) {
	listings := make([]Listing, 0, len(StatCatalog))
	for _, cfg := range StatCatalog {
		bought, err := s.shop.PurchaseCount(ctx, userID, cfg.ID)
		if err != nil {
			return nil, err
		}
		listings = append(listings, Listing{
			Stat:     cfg,
			Bought:   bought,
			NextCost: s.pricing(cfg.Base, bought),
		})
	}
	return listings, nil
}

// Purchase buys qty units of a stat. Flat stats gain a random amount per
// unit around the base gain; percent stats gain one point per unit. The
// price of each unit escalates with the user's lifetime purchase count.
func (s *ShopService) Purchase(ctx context.Context, userID, statID string, qty int) (*PurchaseResult, error) {
	cfg, ok := statByID[statID]
	if !ok {
		return nil, ErrUnknownStat
	}
	if qty <= 0 {
		return nil, ErrInvalidQty
	}

	var result *PurchaseResult
	err := s.locks.WithLock(userID, func() error {
		user, err := s.accounts.Resolve(ctx, userID)
		if err != nil {
			return err
		}

		bought, err := s.shop.PurchaseCount(ctx, userID, statID)
		if err != nil {
			return err
		}
		cost := s.Cost(cfg, bought, qty)
		if user.Currency < cost {
			return ErrNotEnough
		}

		if err := s.users.DebitCurrency(ctx, userID, cost); err != nil {
			return err
		}

		var flatGain int64
		if cfg.Flat {
			// Top-level rand: purchases by different users run in
			// parallel under distinct user locks.
			for i := 0; i < qty; i++ {
				roll := 0.8 + rand.Float64()*0.4
				flatGain += int64(math.Round(flatGainBase * roll))
			}
			err = s.users.AddFlatStat(ctx, userID, statID, flatGain)
		} else {
			err = s.users.AddPercentStat(ctx, userID, statID, float64(qty))
		}
		if err != nil {
			return err
		}

		count, err := s.shop.AddPurchases(ctx, userID, statID, qty)
		if err != nil {
			return err
		}

		log.Info().Str("user", userID).Str("stat", statID).Int("qty", qty).
			Int64("cost", cost).Msg("shop purchase settled")

		result = &PurchaseResult{
			Stat:       cfg,
			Quantity:   qty,
			Cost:       cost,
			FlatGain:   flatGain,
			CountAfter: count,
			Balance:    user.Currency - cost,
		}
		return nil
	})
	return result, err
}

// PlayerStats reloads the ledger row after a purchase for display.
func (s *ShopService) PlayerStats(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}
