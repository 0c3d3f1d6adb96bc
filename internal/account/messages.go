package account

import (
	"fmt"
	"strings"

	"onboard/internal/financial"
	platformstrings "onboard/pkg/platform/strings"
)

const (
	ProductEveryday = financial.ProductEveryday
	ProductPremium  = financial.ProductPremium
)

var knownProducts = map[string]bool{ProductEveryday: true, ProductPremium: true}

// SelectProduct maps a recommendation onto an offered product.
func SelectProduct(recommended string) string {
	p := strings.ToLower(strings.TrimSpace(recommended))
	if knownProducts[p] {
		return p
	}
	return ProductEveryday
}

func defaultWelcome(fullName, product string) string {
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Welcome %s, your %s account is open and ready to use.", name, product)
}

var defaultRecommendations = map[string][]string{
	ProductEveryday: {
		"Set up a savings goal to put aside a little each payday.",
		"Turn on balance alerts so you never miss a bill.",
	},
	ProductPremium: {
		"Book a call with your relationship manager to review your portfolio.",
		"Link your investment accounts to see your net worth in one place.",
	},
}

// parseRecommendations splits generated text into one recommendation per line.
func parseRecommendations(text string) []string {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' })
	for i, l := range lines {
		lines[i] = strings.TrimLeft(strings.TrimSpace(l), "-*• ")
	}
	return platformstrings.DedupeAndTrim(lines)
}
