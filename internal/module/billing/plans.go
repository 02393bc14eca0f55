package billing

import (
	"fmt"
	"strings"

	"github.com/flox/server/internal/module/user"
	"github.com/flox/server/internal/shared/config"
)

// PlanInfo describes a purchasable plan.
type PlanInfo struct {
	ID       user.Plan `json:"id"`
	Amount   int64     `json:"amount"` // In cents
	Currency string    `json:"currency"`
	Interval string    `json:"interval"`
	PriceID  string    `json:"-"`
}

// Catalog is the set of plans that can be provisioned.
type Catalog struct {
	plans map[user.Plan]*PlanInfo
}

// NewCatalog builds the catalog from billing configuration.
// Plans without a price id are not purchasable and are left out.
func NewCatalog(cfg *config.StripeConfig) *Catalog {
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = "usd"
	}

	c := &Catalog{plans: make(map[user.Plan]*PlanInfo)}
	for _, id := range []user.Plan{user.PlanMonthly, user.PlanYearly} {
		pc, ok := cfg.Plans[string(id)]
		if !ok || pc.PriceID == "" {
			continue
		}
		c.plans[id] = &PlanInfo{
			ID:       id,
			Amount:   pc.Amount,
			Currency: currency,
			Interval: pc.Interval,
			PriceID:  pc.PriceID,
		}
	}
	return c
}

// Get returns a plan by id.
func (c *Catalog) Get(plan user.Plan) (*PlanInfo, error) {
	if !plan.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
	info, ok := c.plans[plan]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not configured", ErrInvalidPlan, plan)
	}
	return info, nil
}

// List returns all plans, monthly first.
func (c *Catalog) List() []*PlanInfo {
	out := make([]*PlanInfo, 0, len(c.plans))
	for _, id := range []user.Plan{user.PlanMonthly, user.PlanYearly} {
		if info, ok := c.plans[id]; ok {
			out = append(out, info)
		}
	}
	return out
}

// PlanForPrice maps a provider price id back to a plan.
func (c *Catalog) PlanForPrice(priceID string) (user.Plan, bool) {
	for id, info := range c.plans {
		if info.PriceID == priceID {
			return id, true
		}
	}
	return "", false
}
