/*
Package scenarios provides embedded demo datasets for development and demos.

PURPOSE:
  Each scenario is a YAML file under fixtures/ describing managers, leads,
  payments, shifts and compensation settings. Loading a scenario resets the
  target store and imports the dataset, so the dashboard and the CLI can be
  exercised without a hosted backend.

AVAILABLE SCENARIOS:
  spring-team:    One month of payroll inputs across four geos
  audit-showcase: Payments and shifts that trip every audit check

HOW LOADING WORKS:
 1. Decode the fixture (amounts and rewards stay decimal strings)
 2. Reset the store
 3. Import the dataset in one call

ADDING NEW SCENARIOS:
  Drop a new fixtures/<id>.yaml; it is picked up by the embed pattern.

NOTE:
  Loading resets the store. Only use in development/demo environments.

SEE ALSO:
  - sales/store.go: Dataset and Importer
  - api/scenarios.go: HTTP handlers
  - cmd/sales-engine: seed command
*/
package scenarios

import (
	"context"
	"embed"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

// =============================================================================
// FIXTURE SCHEMA
// =============================================================================

// Info describes a scenario without its rows.
type Info struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
}

type fixture struct {
	Info          `yaml:",inline"`
	Settings      *settingsYAML      `yaml:"settings"`
	Managers      []managerYAML      `yaml:"managers"`
	Leads         []leadYAML         `yaml:"leads"`
	RateOverrides []rateOverrideYAML `yaml:"rate_overrides"`
	ProductRates  []productRateYAML  `yaml:"product_rates"`
	Payments      []paymentYAML      `yaml:"payments"`
	Schedules     []scheduleYAML     `yaml:"schedules"`
}

type settingsYAML struct {
	BaseSalary   string     `yaml:"base_salary"`
	DailyTiers   []tierYAML `yaml:"daily_tiers"`
	MonthlyTiers []tierYAML `yaml:"monthly_tiers"`
}

type tierYAML struct {
	Min    int    `yaml:"min"`
	Max    int    `yaml:"max"`
	Reward string `yaml:"reward"`
}

type managerYAML struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Role       string `yaml:"role"`
	PrimaryGeo string `yaml:"primary_geo"`
}

type leadYAML struct {
	ChatHandle string `yaml:"chat_handle"`
	IsComment  *bool  `yaml:"is_comment"`
}

type rateOverrideYAML struct {
	ManagerID string `yaml:"manager_id"`
	Scope     string `yaml:"scope"`
	BaseRate  string `yaml:"base_rate"`
	Bonus     string `yaml:"bonus"`
	Penalty   string `yaml:"penalty"`
}

type productRateYAML struct {
	Pattern       string `yaml:"pattern"`
	RewardPerSale string `yaml:"reward_per_sale"`
}

type paymentYAML struct {
	ID              string `yaml:"id"`
	ClientHandle    string `yaml:"client_handle"`
	TransactionDate string `yaml:"transaction_date"`
	Amount          string `yaml:"amount"`
	ProductName     string `yaml:"product_name"`
	PaymentMethod   string `yaml:"payment_method"`
	ManagerID       string `yaml:"manager_id"`
	Country         string `yaml:"country"`
}

type scheduleYAML struct {
	ManagerID string `yaml:"manager_id"`
	Date      string `yaml:"date"`
	GeoCodes  string `yaml:"geo_codes"`
}

// =============================================================================
// CATALOG
// =============================================================================

// List returns every embedded scenario ordered by id.
func List() ([]Info, error) {
	entries, err := fixtures.ReadDir("fixtures")
	if err != nil {
		return nil, eris.Wrap(err, "scenarios: read fixtures")
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		f, err := readFixture(strings.TrimSuffix(e.Name(), ".yaml"))
		if err != nil {
			return nil, err
		}
		infos = append(infos, f.Info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Get decodes the scenario with the given id.
func Get(id string) (Info, sales.Dataset, error) {
	f, err := readFixture(id)
	if err != nil {
		return Info{}, sales.Dataset{}, err
	}
	ds, err := f.dataset()
	if err != nil {
		return Info{}, sales.Dataset{}, eris.Wrapf(err, "scenarios: decode %s", id)
	}
	return f.Info, ds, nil
}

// Load resets dst and imports the scenario.
func Load(ctx context.Context, dst sales.Importer, id string) (Info, error) {
	info, ds, err := Get(id)
	if err != nil {
		return Info{}, err
	}
	if err := dst.Reset(ctx); err != nil {
		return Info{}, eris.Wrap(err, "scenarios: reset store")
	}
	if err := dst.Import(ctx, ds); err != nil {
		return Info{}, eris.Wrapf(err, "scenarios: import %s", id)
	}
	return info, nil
}

func readFixture(id string) (fixture, error) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return fixture{}, eris.Wrapf(generic.ErrScenarioNotFound, "scenario %q", id)
	}
	raw, err := fixtures.ReadFile(path.Join("fixtures", id+".yaml"))
	if err != nil {
		return fixture{}, eris.Wrapf(generic.ErrScenarioNotFound, "scenario %q", id)
	}

	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fixture{}, eris.Wrapf(err, "scenarios: parse %s", id)
	}
	if f.ID == "" {
		f.ID = id
	}
	return f, nil
}

// =============================================================================
// CONVERSION
// =============================================================================

func (f fixture) dataset() (sales.Dataset, error) {
	var ds sales.Dataset

	for _, m := range f.Managers {
		ds.Managers = append(ds.Managers, sales.Manager{
			ID:         generic.ManagerID(m.ID),
			Name:       m.Name,
			Role:       sales.Role(m.Role),
			PrimaryGeo: m.PrimaryGeo,
		})
	}
	for _, l := range f.Leads {
		ds.Leads = append(ds.Leads, sales.Lead{ChatHandle: l.ChatHandle, IsComment: l.IsComment})
	}

	for _, o := range f.RateOverrides {
		base, err := parseMoney(o.BaseRate)
		if err != nil {
			return ds, eris.Wrapf(err, "rate override %s/%s", o.ManagerID, o.Scope)
		}
		bonus, err := parseMoney(o.Bonus)
		if err != nil {
			return ds, eris.Wrapf(err, "rate override %s/%s", o.ManagerID, o.Scope)
		}
		penalty, err := parseMoney(o.Penalty)
		if err != nil {
			return ds, eris.Wrapf(err, "rate override %s/%s", o.ManagerID, o.Scope)
		}
		ds.RateOverrides = append(ds.RateOverrides, sales.RateOverride{
			ManagerID: generic.ManagerID(o.ManagerID),
			Scope:     o.Scope,
			BaseRate:  base,
			Bonus:     bonus,
			Penalty:   penalty,
		})
	}

	for _, r := range f.ProductRates {
		reward, err := parseMoney(r.RewardPerSale)
		if err != nil {
			return ds, eris.Wrapf(err, "product rate %q", r.Pattern)
		}
		ds.ProductRates = append(ds.ProductRates, sales.ProductRate{Pattern: r.Pattern, RewardPerSale: reward})
	}

	for _, p := range f.Payments {
		at, err := time.Parse(time.RFC3339, p.TransactionDate)
		if err != nil {
			return ds, eris.Wrapf(err, "payment %s date", p.ID)
		}
		amount, err := parseMoney(p.Amount)
		if err != nil {
			return ds, eris.Wrapf(err, "payment %s amount", p.ID)
		}
		ds.Payments = append(ds.Payments, sales.Payment{
			ID:              generic.PaymentID(p.ID),
			ClientHandle:    p.ClientHandle,
			TransactionDate: at,
			Amount:          amount,
			ProductName:     p.ProductName,
			PaymentMethod:   p.PaymentMethod,
			ManagerID:       generic.ManagerID(p.ManagerID),
			Country:         p.Country,
		})
	}

	for _, s := range f.Schedules {
		day, err := generic.ParseDay(s.Date)
		if err != nil {
			return ds, eris.Wrapf(err, "schedule %s", s.ManagerID)
		}
		ds.Schedules = append(ds.Schedules, sales.ScheduleEntry{
			ManagerID: generic.ManagerID(s.ManagerID),
			Date:      day,
			GeoCodes:  s.GeoCodes,
		})
	}

	if f.Settings != nil {
		settings, err := f.Settings.kpi()
		if err != nil {
			return ds, err
		}
		ds.Settings = &settings
	}
	return ds, nil
}

func (s settingsYAML) kpi() (sales.KPISettings, error) {
	base, err := parseMoney(s.BaseSalary)
	if err != nil {
		return sales.KPISettings{}, eris.Wrap(err, "settings base_salary")
	}
	daily, err := tiers(s.DailyTiers)
	if err != nil {
		return sales.KPISettings{}, eris.Wrap(err, "settings daily_tiers")
	}
	monthly, err := tiers(s.MonthlyTiers)
	if err != nil {
		return sales.KPISettings{}, eris.Wrap(err, "settings monthly_tiers")
	}
	return sales.KPISettings{BaseSalary: base, DailyTiers: daily, MonthlyTiers: monthly}, nil
}

func tiers(in []tierYAML) ([]sales.TierRule, error) {
	var out []sales.TierRule
	for _, t := range in {
		reward, err := parseMoney(t.Reward)
		if err != nil {
			return nil, err
		}
		out = append(out, sales.TierRule{Min: t.Min, Max: t.Max, Reward: reward})
	}
	return out, nil
}

// parseMoney treats an empty string as zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}
