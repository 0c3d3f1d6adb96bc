package financial

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// InsightRules are the thresholds for advisory insights.
type InsightRules struct {
	Window                time.Duration
	LowBalanceBelow       float64
	LargeTransactionAbove float64
}

func DefaultInsightRules() InsightRules {
	return InsightRules{
		Window:                90 * 24 * time.Hour,
		LowBalanceBelow:       100,
		LargeTransactionAbove: 5000,
	}
}

// inWindow keeps transactions dated within [now-window, now]. Undated or
// unparseable rows are dropped.
func inWindow(txs []Transaction, now time.Time, window time.Duration) []Transaction {
	from := now.Add(-window)
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		d, err := time.Parse(time.DateOnly, tx.Date)
		if err != nil {
			continue
		}
		if d.Before(from.Truncate(24*time.Hour)) || d.After(now) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// spendingByCategory ranks categories by total absolute debit, largest first.
// Ties break alphabetically.
func spendingByCategory(txs []Transaction) []CategorySpend {
	totals := map[string]float64{}
	for _, tx := range txs {
		if tx.Amount >= 0 {
			continue
		}
		cat := tx.Category
		if cat == "" {
			cat = "uncategorized"
		}
		totals[cat] += math.Abs(tx.Amount)
	}
	out := make([]CategorySpend, 0, len(totals))
	for cat, total := range totals {
		out = append(out, CategorySpend{Category: cat, Total: math.Round(total*100) / 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// spendingPattern labels the ranking. The label is advisory only.
func spendingPattern(ranked []CategorySpend) string {
	if len(ranked) == 0 {
		return "no recent spending"
	}
	var total float64
	for _, c := range ranked {
		total += c.Total
	}
	top := ranked[0]
	if len(ranked) == 1 || top.Total/total >= 0.5 {
		return fmt.Sprintf("%s-focused spending", top.Category)
	}
	names := []string{ranked[0].Category, ranked[1].Category}
	if len(ranked) > 2 {
		names = append(names, ranked[2].Category)
	}
	return "balanced spending led by " + strings.Join(names, ", ")
}

func deriveInsights(data *EnrichmentData, windowed []Transaction, rules InsightRules) *Insights {
	ins := &Insights{}
	if data.Balance != nil && *data.Balance < rules.LowBalanceBelow {
		ins.LowBalanceWarnings = append(ins.LowBalanceWarnings,
			fmt.Sprintf("balance %.2f below %.2f", *data.Balance, rules.LowBalanceBelow))
	}
	for _, tx := range windowed {
		if math.Abs(tx.Amount) > rules.LargeTransactionAbove {
			ins.LargeTransactions = append(ins.LargeTransactions, tx)
		}
		if tx.Recurring && tx.Amount < 0 {
			ins.RecurringBillsTotal += math.Abs(tx.Amount)
		}
	}
	ins.RecurringBillsTotal = math.Round(ins.RecurringBillsTotal*100) / 100
	return ins
}
