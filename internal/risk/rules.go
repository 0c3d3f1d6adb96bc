package risk

import (
	"fmt"
	"math"

	dErrors "onboard/pkg/domain-errors"
	platformstrings "onboard/pkg/platform/strings"
)

// Thresholds are the score limits of the gate. A score above ReviewAbove needs
// review and a score at or above RejectAtOrAbove is rejected.
type Thresholds struct {
	ReviewAbove     int
	RejectAtOrAbove int
}

func DefaultThresholds() Thresholds {
	return Thresholds{ReviewAbove: 50, RejectAtOrAbove: 75}
}

// Validate rejects thresholds that would make REJECT unreachable before review.
func (t Thresholds) Validate() error {
	if t.ReviewAbove < 0 || t.RejectAtOrAbove > 100 {
		return dErrors.New(dErrors.CodeValidation, "risk thresholds must lie within 0-100")
	}
	if t.ReviewAbove >= t.RejectAtOrAbove {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("review threshold %d must be below reject threshold %d", t.ReviewAbove, t.RejectAtOrAbove))
	}
	return nil
}

// Decide applies the gate rules in order: reject on a high score, review on a
// medium score or any alert or match, otherwise pass.
func Decide(s Screening, t Thresholds) (Decision, []string) {
	if s.Score >= float64(t.RejectAtOrAbove) {
		return DecisionReject, []string{ReasonScoreReject}
	}
	var codes []string
	if s.Score > float64(t.ReviewAbove) {
		codes = append(codes, ReasonScoreReview)
	}
	if len(s.Alerts) > 0 {
		codes = append(codes, ReasonAlerts)
		for _, a := range s.Alerts {
			codes = append(codes, "alert:"+a.Type)
		}
	}
	if len(s.Matches) > 0 {
		codes = append(codes, ReasonMatches)
		for _, m := range s.Matches {
			codes = append(codes, "match:"+m.ListType)
		}
	}
	if len(codes) > 0 {
		return DecisionManualReview, platformstrings.DedupeAndTrimLower(codes)
	}
	return DecisionPass, nil
}

// CategoryFor bands a score into five equal-width ordinal categories.
func CategoryFor(score int) Category {
	switch {
	case score < 20:
		return CategoryVeryLow
	case score < 40:
		return CategoryLow
	case score < 60:
		return CategoryMedium
	case score < 80:
		return CategoryHigh
	default:
		return CategoryVeryHigh
	}
}

// bandOf truncates a score for banding only; decisions use the raw value.
func bandOf(score float64) Category {
	return CategoryFor(int(math.Floor(score)))
}

// clampScore keeps provider scores inside 0-100.
func clampScore(score float64) float64 {
	return min(max(score, 0), 100)
}

func describe(d Decision, s Screening, t Thresholds) string {
	switch d {
	case DecisionReject:
		return fmt.Sprintf("risk score %g at or above %d", s.Score, t.RejectAtOrAbove)
	case DecisionManualReview:
		switch {
		case s.Score > float64(t.ReviewAbove):
			return fmt.Sprintf("risk score %g above %d requires review", s.Score, t.ReviewAbove)
		case len(s.Matches) > 0:
			return fmt.Sprintf("%d watchlist match(es) require review", len(s.Matches))
		default:
			return fmt.Sprintf("%d screening alert(s) require review", len(s.Alerts))
		}
	}
	return ""
}
