package financial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpendingInsights(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	day := func(n int) string { return now.AddDate(0, 0, -n).Format(time.DateOnly) }
	txs := []Transaction{
		{Date: day(1), Amount: 8000, Category: "income"},
		{Date: day(2), Amount: -2000, Category: "housing", Recurring: true},
		{Date: day(3), Amount: -300, Category: "groceries"},
		{Date: day(35), Amount: -2000, Category: "housing", Recurring: true},
		{Date: day(40), Amount: -6000, Category: "travel"},
		{Date: day(120), Amount: -9999, Category: "travel"},
		{Date: "not-a-date", Amount: -1, Category: "junk"},
	}

	windowed := inWindow(txs, now, 90*24*time.Hour)
	require.Len(t, windowed, 5)

	ranked := spendingByCategory(windowed)
	assert.Equal(t, []CategorySpend{
		{Category: "travel", Total: 6000},
		{Category: "housing", Total: 4000},
		{Category: "groceries", Total: 300},
	}, ranked, "credits excluded, ranked by absolute debit")
	assert.Equal(t, "travel-focused spending", spendingPattern(ranked))

	ins := deriveInsights(&EnrichmentData{Balance: ptr(2500)}, windowed, DefaultInsightRules())
	assert.Empty(t, ins.LowBalanceWarnings)
	assert.Len(t, ins.LargeTransactions, 2, "salary credit and travel debit exceed 5000")
	assert.Equal(t, 4000.0, ins.RecurringBillsTotal)
}

func TestSpendingPatternLabels(t *testing.T) {
	assert.Equal(t, "no recent spending", spendingPattern(nil))
	assert.Equal(t, "balanced spending led by rent, food, fuel", spendingPattern([]CategorySpend{
		{Category: "rent", Total: 40}, {Category: "food", Total: 35}, {Category: "fuel", Total: 25}, {Category: "misc", Total: 5},
	}))
}

func TestMergeNeverAverages(t *testing.T) {
	income, expenses, savings := mergeFigures(
		&PrimaryData{Income: ptr(6500)},
		&Affordability{Income: ptr(7000), Expenses: ptr(3000)},
		&StatementData{RegularIncome: ptr(9000), RegularExpenses: ptr(8000)},
	)
	assert.Equal(t, &Figure{Value: 6500, Source: SourcePrimary}, income)
	assert.Equal(t, &Figure{Value: 3000, Source: SourceVerifier}, expenses)
	assert.Equal(t, &Figure{Value: 1000, Source: SourceStatements}, savings)

	income, _, _ = mergeFigures(nil, nil, nil)
	assert.Nil(t, income)
}
