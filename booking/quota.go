package booking

import (
	"context"
	"fmt"
)

// DefaultMaxAppointments applies when an agency has no setting row.
const DefaultMaxAppointments = 10

// =============================================================================
// QUOTA RESOLVER - How many active appointments a day may hold
// =============================================================================

// QuotaResolver resolves the daily capacity of an agency with precedence
// override > agency setting > DefaultMaxAppointments. Missing rows degrade
// to the next level; only storage failures are returned as errors.
type QuotaResolver struct {
	Store   QuotaStore
	Default int
}

func NewQuotaResolver(store QuotaStore) *QuotaResolver {
	return &QuotaResolver{Store: store, Default: DefaultMaxAppointments}
}

func (q *QuotaResolver) MaxFor(ctx context.Context, agencyID AgencyID, day Day) (int, error) {
	o, err := q.Store.GetOverride(ctx, agencyID, day)
	if err != nil {
		return 0, fmt.Errorf("quota override lookup for agency %d on %s: %w", agencyID, day, err)
	}
	if o != nil && !o.Deleted {
		return o.MaxAppointments, nil
	}
	return q.DefaultFor(ctx, agencyID)
}

// DefaultFor ignores overrides and returns the agency-wide quota.
func (q *QuotaResolver) DefaultFor(ctx context.Context, agencyID AgencyID) (int, error) {
	s, err := q.Store.GetSetting(ctx, agencyID)
	if err != nil {
		return 0, fmt.Errorf("agency setting lookup for agency %d: %w", agencyID, err)
	}
	if s != nil && !s.Deleted {
		return s.MaxAppointments, nil
	}
	return q.fallback(), nil
}

// Setting returns the stored setting or a synthesized default row.
func (q *QuotaResolver) Setting(ctx context.Context, agencyID AgencyID) (AgencySetting, error) {
	s, err := q.Store.GetSetting(ctx, agencyID)
	if err != nil {
		return AgencySetting{}, err
	}
	if s == nil || s.Deleted {
		return AgencySetting{AgencyID: agencyID, MaxAppointments: q.fallback()}, nil
	}
	return *s, nil
}

func (q *QuotaResolver) fallback() int {
	if q.Default > 0 {
		return q.Default
	}
	return DefaultMaxAppointments
}
