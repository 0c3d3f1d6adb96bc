package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"onboard/internal/gateway"
	"onboard/internal/gateway/providers"
	"onboard/internal/objectstore"
	"onboard/internal/process/models"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// IdentityVerifier checks the uploaded identity document against the
// declared customer details and an identity provider.
type IdentityVerifier struct {
	gateway   ProviderGateway
	objects   ObjectReader
	customers CustomerEnricher
	logger    *slog.Logger
}

type IdentityOption func(*IdentityVerifier)

func WithIdentityLogger(logger *slog.Logger) IdentityOption {
	return func(v *IdentityVerifier) { v.logger = logger }
}

func NewIdentityVerifier(gw ProviderGateway, objects ObjectReader, customers CustomerEnricher, opts ...IdentityOption) *IdentityVerifier {
	v := &IdentityVerifier{gateway: gw, objects: objects, customers: customers, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns an error only for missing inputs (CodeNotFound); every
// provider outcome is folded into the result.
func (v *IdentityVerifier) Verify(ctx context.Context, processID domain.ProcessID, customer *models.CustomerProfile) (*IdentityResult, error) {
	if customer == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "customer profile not found")
	}
	doc, err := v.objects.Get(ctx, processID, objectstore.PurposeIDDocument)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "identity document not uploaded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read identity document")
	}

	analysis := v.gateway.Call(ctx, providers.IDDocumentAnalysis, providers.Request{
		Operation: "analyze",
		ProcessID: processID,
		Params: map[string]any{
			"full_name":     customer.FullName,
			"date_of_birth": customer.DateOfBirth,
		},
		Blobs: map[string][]byte{"document": doc},
	})
	result := &IdentityResult{Simulated: analysis.Simulated, DocumentDigest: DigestOf(doc)}
	if rejected := negative(analysis, "document analysis failed"); rejected != nil {
		result.Reason, result.ProviderFailure = rejected.reason, rejected.providerFailure
		return result, nil
	}
	if err := analysis.Decode(&result.Document); err != nil {
		result.Reason = "document analysis returned unreadable fields"
		return result, nil
	}

	if reason := compareDocument(result.Document, customer, requestcontext.Now(ctx)); reason != "" {
		result.Reason = reason
		return result, nil
	}

	check := v.gateway.Call(ctx, providers.IDIdentity, providers.Request{
		Operation:      "verify",
		ProcessID:      processID,
		IdempotencyKey: processID.String() + ":identity",
		Params: map[string]any{
			"full_name":       result.Document.FullName,
			"date_of_birth":   result.Document.DateOfBirth,
			"document_number": result.Document.DocumentNumber,
			"document_type":   result.Document.DocumentType,
			"nationality":     result.Document.Nationality,
		},
	})
	result.Simulated = result.Simulated || check.Simulated
	if rejected := negative(check, "identity check failed"); rejected != nil {
		result.Reason, result.ProviderFailure = rejected.reason, rejected.providerFailure
		return result, nil
	}
	var score struct {
		MatchScore float64 `json:"match_score"`
	}
	if err := check.Decode(&score); err != nil {
		v.logger.WarnContext(ctx, "identity check returned unreadable match score",
			"process_id", processID.String(),
			"error", err,
		)
	}
	result.MatchScore = score.MatchScore
	result.Verified = true

	v.enrich(ctx, customer.ID, result.Document.Nationality)
	return result, nil
}

// enrich is best effort: a conflicting nationality is logged, not fatal.
func (v *IdentityVerifier) enrich(ctx context.Context, id domain.CustomerID, nationality string) {
	if nationality == "" || v.customers == nil {
		return
	}
	if _, err := v.customers.EnrichCustomer(ctx, id, models.Enrichment{Nationality: nationality}, requestcontext.Now(ctx)); err != nil {
		v.logger.WarnContext(ctx, "customer enrichment skipped",
			"customer_id", id.String(),
			"error", err,
		)
	}
}

type negativeOutcome struct {
	reason          string
	providerFailure bool
}

// negative reports why an outcome is not a pass, or nil when it is.
func negative(out gateway.Outcome, prefix string) *negativeOutcome {
	switch out.Kind {
	case gateway.OutcomeVerified:
		return nil
	case gateway.OutcomeNotVerified:
		return &negativeOutcome{reason: fmt.Sprintf("%s: %s", prefix, out.Reason)}
	default:
		return &negativeOutcome{reason: prefix + ": provider unavailable", providerFailure: true}
	}
}

// compareDocument returns a rejection reason, or "" when the document
// matches the declared details and has not expired.
func compareDocument(doc ExtractedDocument, customer *models.CustomerProfile, now time.Time) string {
	if normalizeName(doc.FullName) != normalizeName(customer.FullName) {
		return "name on document does not match declared name"
	}
	if doc.DateOfBirth != customer.DateOfBirth {
		return "date of birth on document does not match declared date of birth"
	}
	if doc.ExpiryDate != "" {
		expiry, err := time.Parse(time.DateOnly, doc.ExpiryDate)
		if err != nil {
			return "document expiry date unreadable"
		}
		if !now.Before(expiry.AddDate(0, 0, 1)) {
			return "identity document expired"
		}
	}
	return ""
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
