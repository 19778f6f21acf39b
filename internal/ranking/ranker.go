package ranking

import (
	"sort"
	"time"

	"github.com/hemalink/coordinator/internal/model"
)

// Config holds ranking tunables.
type Config struct {
	// FormatCap bounds the candidate list handed to downstream
	// formatting (status detail, audit metadata). Ranking itself
	// always considers the full set.
	FormatCap int
}

// DefaultFormatCap matches the context limit of the origin system.
const DefaultFormatCap = 20

// Ranker orders candidates by suitability for a request.
type Ranker struct {
	cfg Config
	now func() time.Time
}

// New creates a ranker.
func New(cfg Config) *Ranker {
	if cfg.FormatCap <= 0 {
		cfg.FormatCap = DefaultFormatCap
	}
	return &Ranker{cfg: cfg, now: time.Now}
}

// Rank orders candidates most-suitable first and returns their ids.
// The sort is stable, so a fixed input set always produces the same
// output order. Tie-breaks, in descending priority:
//
//  1. exact blood group match over partial/universal match
//  2. ascending distance
//  3. availability window matching the current time of day
//  4. for low urgency, fewer prior donations first (onboarding);
//     for critical/high urgency, more prior donations first
func (r *Ranker) Rank(candidates []model.Candidate, urgency string, requestedTags []string) []string {
	ranked := make([]model.Candidate, len(candidates))
	copy(ranked, candidates)

	exact := make(map[string]bool, len(requestedTags))
	for _, tag := range requestedTags {
		exact[tag] = true
	}
	period := currentPeriod(r.now())

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		if exact[a.BloodGroup] != exact[b.BloodGroup] {
			return exact[a.BloodGroup]
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		am, bm := periodMatches(a.TimePeriod, period), periodMatches(b.TimePeriod, period)
		if am != bm {
			return am
		}
		switch urgency {
		case model.UrgencyLow:
			an, bn := a.TotalDonations < 2, b.TotalDonations < 2
			if an != bn {
				return an
			}
		case model.UrgencyCritical, model.UrgencyHigh:
			if a.TotalDonations != b.TotalDonations {
				return a.TotalDonations > b.TotalDonations
			}
		}
		return false
	})

	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.UID
	}
	return ids
}

// Top returns the first n ids, or all of them if fewer exist.
func Top(ids []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}

// Capped applies the configured formatting cap.
func (r *Ranker) Capped(ids []string) []string {
	return Top(ids, r.cfg.FormatCap)
}

func periodMatches(candidate, current string) bool {
	return candidate == model.PeriodBoth || candidate == current
}

func currentPeriod(now time.Time) string {
	h := now.Hour()
	if h >= 6 && h < 18 {
		return model.PeriodDaytime
	}
	return model.PeriodNighttime
}
