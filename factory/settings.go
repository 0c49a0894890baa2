/*
Package factory provides JSON to Go conversion of compensation settings.

PURPOSE:
  Tier tables and KPI settings are edited in the dashboard and stored as JSON
  columns. The factory turns those documents into sales.KPISettings and
  sales.TierRule lists, so the store layers never hand raw JSON to the engine.

JSON SCHEMA:
  {
    "base_salary": 300,
    "daily_tiers":   [{"min": 3, "max": 4, "reward": 5}, {"min": 5, "max": 99, "reward": 10}],
    "monthly_tiers": [{"min": 60, "max": 79, "reward": 50}]
  }

  Tier lists may also arrive as JSON strings (double-encoded), which is how
  the dashboard writes them; both forms are accepted.

FAILURE MODE:
  Malformed tier JSON is a configuration error, not an engine error. The
  affected list decodes as empty (so its bonus is zero), a warning is logged,
  and decoding continues. Callers never see an error from a bad tier list.

USAGE:
  f := factory.NewSettingsFactory(logger)
  settings := f.ParseSettings(raw, fallbackBaseSalary)

SEE ALSO:
  - sales/types.go: KPISettings and TierRule
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Callers
*/
package factory

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SettingsJSON is the JSON representation of the KPI settings document.
type SettingsJSON struct {
	BaseSalary   *decimal.Decimal `json:"base_salary,omitempty"`
	DailyTiers   json.RawMessage  `json:"daily_tiers,omitempty"`
	MonthlyTiers json.RawMessage  `json:"monthly_tiers,omitempty"`
}

// TierJSON represents one tier band.
type TierJSON struct {
	Min    int             `json:"min"`
	Max    int             `json:"max"`
	Reward decimal.Decimal `json:"reward"`
}

// =============================================================================
// SETTINGS FACTORY
// =============================================================================

// SettingsFactory converts stored JSON to settings structs.
type SettingsFactory struct {
	logger *zap.Logger
}

// NewSettingsFactory creates a factory that reports recovered configuration
// errors to logger. A nil logger discards them.
func NewSettingsFactory(logger *zap.Logger) *SettingsFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsFactory{logger: logger}
}

// ParseSettings decodes a full settings document. A missing or malformed
// base salary falls back to fallbackBase; malformed tier lists become empty.
func (f *SettingsFactory) ParseSettings(raw string, fallbackBase decimal.Decimal) sales.KPISettings {
	settings := sales.KPISettings{BaseSalary: fallbackBase}
	if strings.TrimSpace(raw) == "" {
		return settings
	}

	var sj SettingsJSON
	if err := json.Unmarshal([]byte(raw), &sj); err != nil {
		f.logger.Warn("kpi settings: malformed document, using defaults", zap.Error(err))
		return settings
	}

	if sj.BaseSalary != nil {
		settings.BaseSalary = *sj.BaseSalary
	}
	settings.DailyTiers = f.ParseTiers("daily", string(sj.DailyTiers))
	settings.MonthlyTiers = f.ParseTiers("monthly", string(sj.MonthlyTiers))
	return settings
}

// ParseTiers decodes one tier list. Empty input yields an empty list;
// malformed input is logged and yields an empty list.
func (f *SettingsFactory) ParseTiers(list, raw string) []sales.TierRule {
	tiers, err := DecodeTiers(raw)
	if err != nil {
		f.logger.Warn("kpi settings: malformed tier list, bonus disabled",
			zap.String("list", list),
			zap.Error(&generic.TierConfigError{List: list, Err: err}),
		)
		return nil
	}
	return tiers
}

// DecodeTiers is the strict decoder behind ParseTiers. It accepts a JSON
// array or a JSON string containing an array.
func DecodeTiers(raw string) ([]sales.TierRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	// Double-encoded: "[{...}]"
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err != nil {
			return nil, err
		}
		return DecodeTiers(inner)
	}

	var tjs []TierJSON
	if err := json.Unmarshal([]byte(raw), &tjs); err != nil {
		return nil, err
	}

	tiers := make([]sales.TierRule, 0, len(tjs))
	for _, tj := range tjs {
		tiers = append(tiers, sales.TierRule{Min: tj.Min, Max: tj.Max, Reward: tj.Reward})
	}
	return tiers, nil
}

// EncodeTiers converts tiers back to their JSON array form.
func EncodeTiers(tiers []sales.TierRule) string {
	tjs := make([]TierJSON, 0, len(tiers))
	for _, t := range tiers {
		tjs = append(tjs, TierJSON{Min: t.Min, Max: t.Max, Reward: t.Reward})
	}
	b, _ := json.Marshal(tjs)
	return string(b)
}

// EncodeSettings converts settings to the stored document form.
func EncodeSettings(s sales.KPISettings) string {
	base := s.BaseSalary
	sj := SettingsJSON{
		BaseSalary:   &base,
		DailyTiers:   json.RawMessage(EncodeTiers(s.DailyTiers)),
		MonthlyTiers: json.RawMessage(EncodeTiers(s.MonthlyTiers)),
	}
	b, _ := json.Marshal(sj)
	return string(b)
}
