package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyprop/internal/risk"
)

type rulesView struct {
	DrawdownLimit       decimal.Decimal `json:"drawdown_limit"`
	DrawdownShieldLimit decimal.Decimal `json:"drawdown_shield_limit"`
	ProfitTargetStage1  decimal.Decimal `json:"profit_target_stage1"`
	ProfitTargetStage2  decimal.Decimal `json:"profit_target_stage2"`
	ConsistencyLimit    decimal.Decimal `json:"consistency_limit"`
	MinContracts        int             `json:"min_contracts"`
	TraderSplit         decimal.Decimal `json:"trader_split"`
	MinPayout           decimal.Decimal `json:"min_payout"`
	PayoutCooldownDays  int             `json:"payout_cooldown_days"`
}

type tiersResponse struct {
	Tiers []risk.TierConfig `json:"tiers"`
	Rules rulesView         `json:"rules"`
}

// TiersHandler publishes the tier table and the active rule set.
type TiersHandler struct {
	resp tiersResponse
}

// NewTiersHandler creates a TiersHandler for rules.
func NewTiersHandler(rules risk.Rules) *TiersHandler {
	return &TiersHandler{resp: tiersResponse{
		Tiers: risk.Tiers(),
		Rules: rulesView{
			DrawdownLimit:       rules.DrawdownLimit,
			DrawdownShieldLimit: rules.DrawdownShieldLimit,
			ProfitTargetStage1:  rules.ProfitTargetStage1,
			ProfitTargetStage2:  rules.ProfitTargetStage2,
			ConsistencyLimit:    rules.ConsistencyLimit,
			MinContracts:        rules.MinContracts,
			TraderSplit:         rules.TraderSplit,
			MinPayout:           rules.MinPayout,
			PayoutCooldownDays:  int(rules.PayoutCooldown.Hours() / 24),
		},
	}}
}

// List returns tiers and rules.
// GET /api/tiers
func (h *TiersHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resp)
}
