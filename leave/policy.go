/*
policy.go - Static allocation rules per leave type

PURPOSE:
  Maps each leave type to its allocation rule (tenure-tiered, fixed, or
  unbounded) and carry-over cap. The table is built once and never mutated
  at runtime; the Ledger and Engine consume it read-only.

ALLOCATION RULES:
  Vacation:    tenure-tiered (15/20/25 days, see VacationAllocation)
  Sick:        12 days, carries over up to 10
  Personal:    5 days, no carry-over
  Bereavement: 5 days, no carry-over
  Parental:    0 by default, configurable via WithParentalAllocation
  Unpaid:      unbounded - no capacity check, usage still recorded

SEE ALSO:
  - ledger.go: Enforces the entitlement invariant using these policies
  - engine.go: InitializeBalance and ResetPolicyYear
*/
package leave

import "github.com/shopspring/decimal"

// =============================================================================
// POLICY - Allocation rule for one leave type
// =============================================================================

type Policy struct {
	Type             LeaveType
	Name             string
	AnnualAllocation decimal.Decimal // ignored for Tiered and Unbounded
	Tiered           bool            // allocation depends on tenure (Vacation)
	CarryOverCap     decimal.Decimal // max unused days rolling into the next year
	Unbounded        bool            // no capacity check (Unpaid)
}

// Allocation returns the annual entitlement for an employee with the given
// tenure.
func (p Policy) Allocation(tenureYears int) decimal.Decimal {
	if p.Unbounded {
		return decimal.Zero
	}
	if p.Tiered {
		return VacationAllocation(tenureYears)
	}
	return p.AnnualAllocation
}

// VacationAllocation maps years of service to vacation days:
// 0-3 years -> 15, 4-7 years -> 20, 8+ years -> 25.
func VacationAllocation(tenureYears int) decimal.Decimal {
	switch {
	case tenureYears <= 3:
		return decimal.NewFromInt(15)
	case tenureYears <= 7:
		return decimal.NewFromInt(20)
	default:
		return decimal.NewFromInt(25)
	}
}

// =============================================================================
// POLICY TABLE
// =============================================================================

type PolicyTable struct {
	policies map[LeaveType]Policy
}

// PolicyOption customizes the table at construction time.
type PolicyOption func(map[LeaveType]Policy)

// WithParentalAllocation sets the parental leave entitlement, which has no
// universal default and is granted per company policy.
func WithParentalAllocation(days float64) PolicyOption {
	return func(m map[LeaveType]Policy) {
		p := m[Parental]
		p.AnnualAllocation = decimal.NewFromFloat(days)
		m[Parental] = p
	}
}

// NewPolicyTable builds the standard policy table.
func NewPolicyTable(opts ...PolicyOption) *PolicyTable {
	m := map[LeaveType]Policy{
		Vacation: {
			Type:         Vacation,
			Name:         "Vacation Leave",
			Tiered:       true,
			CarryOverCap: decimal.NewFromInt(5),
		},
		Sick: {
			Type:             Sick,
			Name:             "Sick Leave",
			AnnualAllocation: decimal.NewFromInt(12),
			CarryOverCap:     decimal.NewFromInt(10),
		},
		Personal: {
			Type:             Personal,
			Name:             "Personal Leave",
			AnnualAllocation: decimal.NewFromInt(5),
		},
		Bereavement: {
			Type:             Bereavement,
			Name:             "Bereavement Leave",
			AnnualAllocation: decimal.NewFromInt(5),
		},
		Parental: {
			Type: Parental,
			Name: "Parental Leave",
		},
		Unpaid: {
			Type:      Unpaid,
			Name:      "Unpaid Leave",
			Unbounded: true,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return &PolicyTable{policies: m}
}

// Lookup returns the policy for a leave type.
func (t *PolicyTable) Lookup(lt LeaveType) (Policy, bool) {
	p, ok := t.policies[lt]
	return p, ok
}

// MustLookup returns the policy for a known leave type. Only call with
// validated types.
func (t *PolicyTable) MustLookup(lt LeaveType) Policy {
	return t.policies[lt]
}

// CarryOver returns how much of an unused balance rolls into the next policy
// year: min(remaining, cap). Anything above the cap is forfeited.
func (p Policy) CarryOver(remaining decimal.Decimal) decimal.Decimal {
	if remaining.IsNegative() {
		return decimal.Zero
	}
	if remaining.GreaterThan(p.CarryOverCap) {
		return p.CarryOverCap
	}
	return remaining
}
