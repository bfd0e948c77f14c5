package rules

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"retirement-engine/internal/money"
)

// fileUKYear mirrors UKYearRules in override files. Amounts are strings so the
// decimal values survive the codec exactly.
type fileUKYear struct {
	AnnualAllowance string `yaml:"annual_allowance" json:"annual_allowance"`
	TaperThreshold  string `yaml:"taper_threshold" json:"taper_threshold"`
	TaperFloor      string `yaml:"taper_floor" json:"taper_floor"`
	MPAA            string `yaml:"mpaa" json:"mpaa"`
}

type fileSAYear struct {
	DeductionRate string `yaml:"deduction_rate" json:"deduction_rate"`
	DeductionCap  string `yaml:"deduction_cap" json:"deduction_cap"`
}

type fileAnnuity struct {
	SpouseProvisionFactor string `yaml:"spouse_provision_factor" json:"spouse_provision_factor"`
	EscalationDiscount    string `yaml:"escalation_discount" json:"escalation_discount"`
}

type fileRules struct {
	UK      map[string]fileUKYear `yaml:"uk" json:"uk"`
	SA      map[string]fileSAYear `yaml:"sa" json:"sa"`
	Annuity *fileAnnuity          `yaml:"annuity" json:"annuity"`
}

// WithYAML returns a copy of rs with the YAML overrides applied on top.
// Years present in the file replace or extend the base tables; absent years keep
// their base values.
func (rs Ruleset) WithYAML(data []byte) (Ruleset, error) {
	var f fileRules
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Ruleset{}, fmt.Errorf("parse rules yaml: %w", err)
	}
	return rs.apply(f)
}

// WithJSON returns a copy of rs with the JSON overrides applied on top.
func (rs Ruleset) WithJSON(data []byte) (Ruleset, error) {
	var f fileRules
	if err := json.Unmarshal(data, &f); err != nil {
		return Ruleset{}, fmt.Errorf("parse rules json: %w", err)
	}
	return rs.apply(f)
}

func (rs Ruleset) apply(f fileRules) (Ruleset, error) {
	out := rs.clone()

	for label, fy := range f.UK {
		y, err := parseUKYear(fy)
		if err != nil {
			return Ruleset{}, fmt.Errorf("uk year %s: %w", label, err)
		}
		out.uk[label] = y
	}

	for label, fy := range f.SA {
		y, err := parseSAYear(fy)
		if err != nil {
			return Ruleset{}, fmt.Errorf("sa year %s: %w", label, err)
		}
		out.sa[label] = y
	}

	if f.Annuity != nil {
		spouse, err := decimal.NewFromString(f.Annuity.SpouseProvisionFactor)
		if err != nil {
			return Ruleset{}, fmt.Errorf("annuity spouse_provision_factor: %w", err)
		}
		escalation, err := decimal.NewFromString(f.Annuity.EscalationDiscount)
		if err != nil {
			return Ruleset{}, fmt.Errorf("annuity escalation_discount: %w", err)
		}
		out.annuity = AnnuityFactors{SpouseProvisionFactor: spouse, EscalationDiscount: escalation}
	}

	return out, nil
}

func parseGBP(name, value string) (money.Money, error) {
	m, err := money.NewFromString(value, money.GBP.Code())
	if err != nil {
		return money.Money{}, fmt.Errorf("%s: %w", name, err)
	}
	if m.IsNegative() {
		return money.Money{}, fmt.Errorf("%s: must not be negative", name)
	}
	return m, nil
}

func parseUKYear(f fileUKYear) (UKYearRules, error) {
	var y UKYearRules
	var err error

	if y.AnnualAllowance, err = parseGBP("annual_allowance", f.AnnualAllowance); err != nil {
		return UKYearRules{}, err
	}
	if y.TaperThreshold, err = parseGBP("taper_threshold", f.TaperThreshold); err != nil {
		return UKYearRules{}, err
	}
	if y.TaperFloor, err = parseGBP("taper_floor", f.TaperFloor); err != nil {
		return UKYearRules{}, err
	}
	if y.MPAA, err = parseGBP("mpaa", f.MPAA); err != nil {
		return UKYearRules{}, err
	}
	return y, nil
}

func parseSAYear(f fileSAYear) (SAYearRules, error) {
	rate, err := decimal.NewFromString(f.DeductionRate)
	if err != nil {
		return SAYearRules{}, fmt.Errorf("deduction_rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return SAYearRules{}, fmt.Errorf("deduction_rate: must be within [0,1]")
	}
	cap, err := money.NewFromString(f.DeductionCap, money.ZAR.Code())
	if err != nil {
		return SAYearRules{}, fmt.Errorf("deduction_cap: %w", err)
	}
	if cap.IsNegative() {
		return SAYearRules{}, fmt.Errorf("deduction_cap: must not be negative")
	}
	return SAYearRules{DeductionRate: rate, DeductionCap: cap}, nil
}
