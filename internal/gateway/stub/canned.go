package stub

import (
	"fmt"
	"time"

	"github.com/spaolacci/murmur3"

	"onboard/internal/gateway/providers"
)

type definition struct {
	id      string
	kind    providers.Kind
	respond responder
}

func definitions() []definition {
	return []definition{
		{providers.IDDocumentAnalysis, providers.KindDocumentAnalysis, documentAnalysis},
		{providers.IDIdentity, providers.KindIdentity, identity},
		{providers.IDFace, providers.KindFace, face},
		{providers.IDLiveness, providers.KindLiveness, liveness},
		{providers.IDPrimaryFinancial, providers.KindFinancialPrimary, primaryFinancial},
		{providers.IDAccountVerifier, providers.KindAccountVerifier, accountVerifier},
		{providers.IDEnrichment, providers.KindEnrichment, enrichment},
		{providers.IDScreening, providers.KindScreening, screening},
		{providers.IDCoreBanking, providers.KindAccount, coreBanking},
		{providers.IDTextGeneration, providers.KindTextGeneration, textGeneration},
	}
}

// digits derives a stable numeric string of width n from seed.
func digits(seed string, n int) string {
	h := murmur3.Sum64([]byte(seed))
	s := fmt.Sprintf("%020d", h)
	return s[len(s)-n:]
}

func param(req providers.Request, key, fallback string) string {
	if v, ok := req.Params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// documentAnalysis echoes the declared identity back as the extracted fields.
func documentAnalysis(req providers.Request, now time.Time) map[string]any {
	return map[string]any{
		"document_type":   "passport",
		"full_name":       param(req, "full_name", "Alex Sample"),
		"date_of_birth":   param(req, "date_of_birth", "1990-01-01"),
		"document_number": "PA" + digits("doc:"+req.ProcessID.String(), 7),
		"nationality":     "AUS",
		"expiry_date":     now.AddDate(5, 0, 0).Format(time.DateOnly),
	}
}

func identity(req providers.Request, _ time.Time) map[string]any {
	return map[string]any{
		"match_score":     98.0,
		"document_number": param(req, "document_number", ""),
	}
}

func face(req providers.Request, _ time.Time) map[string]any {
	if req.Operation == "compare" {
		return map[string]any{"similarity": 97.5}
	}
	return map[string]any{
		"face_present": true,
		"confidence":   99.2,
		"sharpness":    78.0,
		"brightness":   64.0,
	}
}

func liveness(_ providers.Request, _ time.Time) map[string]any {
	return map[string]any{"confidence": 96.0}
}

func primaryFinancial(req providers.Request, _ time.Time) map[string]any {
	return map[string]any{
		"account_holder": param(req, "full_name", "Alex Sample"),
		"balance":        12500.0,
		"income":         96000.0,
		"expenses":       54000.0,
		"savings":        18000.0,
	}
}

func accountVerifier(req providers.Request, _ time.Time) map[string]any {
	return map[string]any{
		"account_name":  param(req, "full_name", "Alex Sample"),
		"income":        94000.0,
		"expenses":      56000.0,
		"savings_ratio": 0.2,
	}
}

func enrichment(_ providers.Request, now time.Time) map[string]any {
	day := func(n int) string { return now.AddDate(0, 0, -n).Format(time.DateOnly) }
	return map[string]any{
		"balance":   12500.0,
		"net_worth": 185000.0,
		"holdings": []any{
			map[string]any{"name": "Index fund", "value": 42000.0},
			map[string]any{"name": "Term deposit", "value": 15000.0},
		},
		"transactions": []any{
			map[string]any{"date": day(3), "amount": 7400.0, "category": "income", "description": "Salary"},
			map[string]any{"date": day(5), "amount": -2100.0, "category": "housing", "description": "Rent", "recurring": true},
			map[string]any{"date": day(9), "amount": -420.5, "category": "groceries", "description": "Supermarket"},
			map[string]any{"date": day(12), "amount": -180.0, "category": "utilities", "description": "Electricity", "recurring": true},
			map[string]any{"date": day(20), "amount": -95.0, "category": "dining", "description": "Restaurant"},
			map[string]any{"date": day(40), "amount": -2100.0, "category": "housing", "description": "Rent", "recurring": true},
			map[string]any{"date": day(44), "amount": -388.2, "category": "groceries", "description": "Supermarket"},
			map[string]any{"date": day(200), "amount": -9000.0, "category": "travel", "description": "Old holiday"},
		},
	}
}

func screening(_ providers.Request, _ time.Time) map[string]any {
	return map[string]any{
		"risk_score": 20.0,
		"alerts":     []any{},
		"matches":    []any{},
	}
}

func coreBanking(req providers.Request, _ time.Time) map[string]any {
	return map[string]any{
		"account_number": digits("acct:"+req.IdempotencyKey, 9),
		"routing_code":   "062-" + digits("bsb:"+req.IdempotencyKey, 3),
		"product":        param(req, "product", "everyday"),
	}
}

func textGeneration(req providers.Request, _ time.Time) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("Welcome aboard, %s. Your %s account is ready.",
			param(req, "full_name", "customer"), param(req, "product", "everyday")),
	}
}
