package importer

import (
	"sort"
	"strings"

	"github.com/veridian-env/wastestream/internal/entities"
	"github.com/veridian-env/wastestream/internal/model"
)

// Scorer computes name similarity in [0,1]. Implementations must be pure so
// candidate ordering is deterministic.
type Scorer func(candidate, existing string) float64

// ReconcilerConfig tunes duplicate detection.
type ReconcilerConfig struct {
	// ReviewThreshold is the score at or above which an item is forced into
	// review regardless of extraction confidence.
	ReviewThreshold float64
	// CandidateFloor is the minimum score for an entity to be surfaced as a
	// duplicate candidate at all.
	CandidateFloor float64
	// MaxCandidates caps the stored candidate list per item.
	MaxCandidates int
}

// DefaultReconcilerConfig matches the thresholds review workflows were tuned
// against.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{ReviewThreshold: 0.85, CandidateFloor: 0.55, MaxCandidates: 5}
}

// Reconciler scores extracted candidates against a tenant's existing entities
// and produces ordered duplicate-candidate lists.
type Reconciler struct {
	cfg   ReconcilerConfig
	score Scorer
}

// NewReconciler builds a reconciler; a nil scorer selects JaccardScorer.
func NewReconciler(cfg ReconcilerConfig, scorer Scorer) *Reconciler {
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.85
	}
	if cfg.CandidateFloor <= 0 {
		cfg.CandidateFloor = 0.55
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	if scorer == nil {
		scorer = JaccardScorer
	}
	return &Reconciler{cfg: cfg, score: scorer}
}

// LocationCandidates scores a candidate location against existing tenant
// locations. A matching city or state nudges the name score up, since two
// same-named facilities in the same place are far likelier to be one.
func (r *Reconciler) LocationCandidates(cand *model.LocationData, existing []entities.Location) []model.DuplicateCandidate {
	name := entities.NormalizeName(cand.Name)
	var out []model.DuplicateCandidate
	for _, loc := range existing {
		score := r.score(name, loc.NormalizedName)
		if score > 0 {
			if cand.City != "" && strings.EqualFold(cand.City, loc.City) {
				score += 0.05
			}
			if cand.State != "" && strings.EqualFold(cand.State, loc.State) {
				score += 0.05
			}
			if score > 1 {
				score = 1
			}
		}
		if score >= r.cfg.CandidateFloor {
			out = append(out, model.DuplicateCandidate{
				EntityID: loc.ID,
				Label:    locationLabel(loc),
				Score:    score,
			})
		}
	}
	return r.rank(out)
}

// ProjectCandidates scores a candidate project against existing tenant
// projects by name.
func (r *Reconciler) ProjectCandidates(cand *model.ProjectData, existing []entities.Project) []model.DuplicateCandidate {
	name := entities.NormalizeName(cand.Name)
	var out []model.DuplicateCandidate
	for _, p := range existing {
		score := r.score(name, entities.NormalizeName(p.Name))
		if score >= r.cfg.CandidateFloor {
			out = append(out, model.DuplicateCandidate{EntityID: p.ID, Label: p.Name, Score: score})
		}
	}
	return r.rank(out)
}

// NeedsReview reports whether the top candidate is strong enough to force the
// item into review.
func (r *Reconciler) NeedsReview(candidates []model.DuplicateCandidate) bool {
	return len(candidates) > 0 && candidates[0].Score >= r.cfg.ReviewThreshold
}

func (r *Reconciler) rank(out []model.DuplicateCandidate) []model.DuplicateCandidate {
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > r.cfg.MaxCandidates {
		out = out[:r.cfg.MaxCandidates]
	}
	return out
}

func locationLabel(loc entities.Location) string {
	parts := []string{loc.Name}
	if loc.City != "" {
		parts = append(parts, loc.City)
	}
	if loc.State != "" {
		parts = append(parts, loc.State)
	}
	return strings.Join(parts, ", ")
}

// JaccardScorer measures word-set overlap between two normalized names:
// |intersection| / |union|. Identical names score 1, disjoint names 0.
func JaccardScorer(candidate, existing string) float64 {
	a := wordSet(candidate)
	b := wordSet(existing)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
