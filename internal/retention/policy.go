// Package retention maps subscription tiers to retention windows.
package retention

import (
	"fmt"
	"strings"
	"time"

	dErrors "dataguard/pkg/domain-errors"
)

// Tier is a tenant subscription plan.
type Tier string

const (
	TierFree     Tier = "FREE"
	TierPro      Tier = "PRO"
	TierBusiness Tier = "BUSINESS"
)

// MaxDays is the ceiling for any retention window.
const MaxDays = 3650

// DefaultDays is the policy used when nothing is overridden.
var DefaultDays = map[Tier]int{
	TierFree:     30,
	TierPro:      90,
	TierBusiness: 365,
}

// ParseTier normalizes s into a known Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TierFree, TierPro, TierBusiness:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown plan tier %q", s))
}

// Resolver answers retention questions for a fixed, validated policy.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	days map[Tier]int
}

// NewResolver validates overrides on top of DefaultDays. Every key must be a
// known tier and every value must be in (0, MaxDays].
func NewResolver(overrides map[string]int) (*Resolver, error) {
	days := make(map[Tier]int, len(DefaultDays))
	for t, d := range DefaultDays {
		days[t] = d
	}
	for name, d := range overrides {
		t, err := ParseTier(name)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("retention override for unknown tier %q", name))
		}
		if d <= 0 || d > MaxDays {
			return nil, dErrors.New(dErrors.CodeConfiguration,
				fmt.Sprintf("retention for %s must be between 1 and %d days, got %d", t, MaxDays, d))
		}
		days[t] = d
	}
	return &Resolver{days: days}, nil
}

// RetentionDays returns the window for tier.
func (r *Resolver) RetentionDays(tier Tier) (int, error) {
	d, ok := r.days[tier]
	if !ok {
		return 0, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("no retention policy for tier %q", tier))
	}
	return d, nil
}

// Cutoff is now minus the tier's window. Records whose last activity is strictly
// before the cutoff are eligible for purge.
func (r *Resolver) Cutoff(tier Tier, now time.Time) (time.Time, error) {
	d, err := r.RetentionDays(tier)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-time.Duration(d) * 24 * time.Hour), nil
}

// Eligible reports whether lastActivity falls before cutoff.
func Eligible(lastActivity, cutoff time.Time) bool {
	return lastActivity.Before(cutoff)
}
