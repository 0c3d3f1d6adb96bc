package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideIsIndependentOfBanding(t *testing.T) {
	th := DefaultThresholds()

	d, codes := Decide(Screening{Score: 75}, th)
	assert.Equal(t, DecisionReject, d)
	assert.Equal(t, []string{ReasonScoreReject}, codes)

	d, codes = Decide(Screening{Score: 55}, th)
	assert.Equal(t, DecisionManualReview, d)
	assert.Equal(t, []string{ReasonScoreReview}, codes)
	assert.Equal(t, CategoryMedium, CategoryFor(55))

	d, codes = Decide(Screening{Score: 50}, th)
	assert.Equal(t, DecisionPass, d)
	assert.Nil(t, codes)
}

func TestDecideComparesUnroundedScores(t *testing.T) {
	th := DefaultThresholds()

	d, codes := Decide(Screening{Score: 50.4}, th)
	assert.Equal(t, DecisionManualReview, d)
	assert.Equal(t, []string{ReasonScoreReview}, codes)

	d, _ = Decide(Screening{Score: 74.5}, th)
	assert.Equal(t, DecisionManualReview, d)

	d, _ = Decide(Screening{Score: 74.999}, th)
	assert.Equal(t, DecisionManualReview, d)

	d, _ = Decide(Screening{Score: 75}, th)
	assert.Equal(t, DecisionReject, d)

	assert.Equal(t, CategoryHigh, bandOf(79.9))
	assert.Equal(t, CategoryVeryHigh, bandOf(80))
}

func TestDecideCustomThresholds(t *testing.T) {
	th := Thresholds{ReviewAbove: 30, RejectAtOrAbove: 60}

	d, _ := Decide(Screening{Score: 40}, th)
	assert.Equal(t, DecisionManualReview, d)

	d, _ = Decide(Screening{Score: 60}, th)
	assert.Equal(t, DecisionReject, d)
}

func TestDecideDeduplicatesReasonCodes(t *testing.T) {
	_, codes := Decide(Screening{
		Score:   20,
		Matches: []Match{{ListType: "Sanctions"}, {ListType: "sanctions"}, {ListType: "PEP"}},
	}, DefaultThresholds())
	assert.Equal(t, []string{ReasonMatches, "match:sanctions", "match:pep"}, codes)
}

func TestCategoryBoundaries(t *testing.T) {
	for score, want := range map[int]Category{
		0: CategoryVeryLow, 19: CategoryVeryLow,
		20: CategoryLow, 39: CategoryLow,
		40: CategoryMedium, 59: CategoryMedium,
		60: CategoryHigh, 79: CategoryHigh,
		80: CategoryVeryHigh, 100: CategoryVeryHigh,
	} {
		assert.Equal(t, want, CategoryFor(score), "score %d", score)
	}
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{ReviewAbove: 75, RejectAtOrAbove: 75}.Validate())
	assert.Error(t, Thresholds{ReviewAbove: -1, RejectAtOrAbove: 75}.Validate())
	assert.Error(t, Thresholds{ReviewAbove: 50, RejectAtOrAbove: 101}.Validate())
}
