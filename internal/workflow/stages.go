package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"strings"
	"time"

	"onboard/internal/account"
	"onboard/internal/financial"
	"onboard/internal/process/models"
	"onboard/internal/risk"
	"onboard/internal/verification"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// StageOutcome is what a stage reports back to the engine.
type StageOutcome struct {
	Signal    models.Signal
	Reason    string
	Data      any
	Simulated bool
	// CustomerID is reported by the details stage only.
	CustomerID *domain.CustomerID
}

// StageExecutor runs one stage for a loaded process. Provider failures are
// folded into the outcome. Returned errors are validation errors (the stage
// was not attempted), NotFound for a missing referenced record, or internal
// failures.
type StageExecutor interface {
	Execute(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error)
}

// StageFunc adapts a function to StageExecutor.
type StageFunc func(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error)

func (f StageFunc) Execute(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error) {
	return f(ctx, p)
}

type IdentityVerifier interface {
	Verify(ctx context.Context, processID domain.ProcessID, customer *models.CustomerProfile) (*verification.IdentityResult, error)
}

type BiometricVerifier interface {
	Verify(ctx context.Context, processID domain.ProcessID, documentDigest string) (*verification.BiometricResult, error)
}

type FinancialAggregator interface {
	Aggregate(ctx context.Context, req financial.Request) (*financial.Result, error)
}

type RiskGate interface {
	Assess(ctx context.Context, req risk.ScreeningRequest) *risk.Assessment
}

type AccountOpener interface {
	Open(ctx context.Context, req account.Request) (*account.Result, error)
}

// StageDeps are the services behind the default stages.
type StageDeps struct {
	Customers CustomerStore
	Identity  IdentityVerifier
	Biometric BiometricVerifier
	Financial FinancialAggregator
	Risk      RiskGate
	Account   AccountOpener
}

// NewStages wires the default executor for every stage of DefaultGraph.
func NewStages(d StageDeps) map[models.Stage]StageExecutor {
	return map[models.Stage]StageExecutor{
		models.StageCollectDetails:        StageFunc(d.collectDetails),
		models.StageIdentityVerification:  StageFunc(d.verifyIdentity),
		models.StageBiometricVerification: StageFunc(d.verifyBiometrics),
		models.StageFinancialVerification: StageFunc(d.verifyFinancials),
		models.StageAMLScreening:          StageFunc(d.screen),
		models.StageAccountCreation:       StageFunc(d.openAccount),
		models.StageCompletion:            StageFunc(complete),
	}
}

// ValidateDetails checks submitted details before any stage runs.
func ValidateDetails(d *models.CustomerDetails, now time.Time) error {
	if d == nil {
		return dErrors.New(dErrors.CodeValidation, "customer details are required")
	}
	var missing []string
	if strings.TrimSpace(d.FullName) == "" {
		missing = append(missing, "full_name")
	}
	if strings.TrimSpace(d.DateOfBirth) == "" {
		missing = append(missing, "date_of_birth")
	}
	if strings.TrimSpace(d.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(d.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing customer details: "+strings.Join(missing, ", "))
	}
	dob, err := time.Parse(time.DateOnly, d.DateOfBirth)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "date_of_birth must be YYYY-MM-DD")
	}
	if !dob.Before(now) {
		return dErrors.New(dErrors.CodeValidation, "date_of_birth must be in the past")
	}
	if _, err := mail.ParseAddress(d.Email); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "email is not a valid address")
	}
	return nil
}

// collectDetails creates the customer profile once. A replay after a lost
// commit reuses the stored profile only when it holds the same details.
func (d StageDeps) collectDetails(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error) {
	if p.Input.Details == nil {
		return StageOutcome{}, dErrors.Wrap(ErrAwaitingDetails, dErrors.CodeValidation, "customer details not submitted")
	}
	now := requestcontext.Now(ctx)
	if err := ValidateDetails(p.Input.Details, now); err != nil {
		return StageOutcome{}, err
	}
	id := domain.CustomerIDFor(p.ID)
	err := d.Customers.CreateCustomer(ctx, models.NewCustomerProfile(id, *p.Input.Details, now))
	switch {
	case errors.Is(err, sentinel.ErrAlreadyExists):
		existing, gerr := d.Customers.GetCustomer(ctx, id)
		if gerr != nil {
			return StageOutcome{}, dErrors.Wrap(gerr, dErrors.CodeInternal, "failed to load existing customer profile")
		}
		if !existing.Declares(*p.Input.Details) {
			return StageOutcome{}, dErrors.New(dErrors.CodeConflict, "customer profile already exists with different details")
		}
	case err != nil:
		return StageOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create customer profile")
	}
	return StageOutcome{Signal: models.SignalVerified, Data: p.Input.Details, CustomerID: &id}, nil
}

func (d StageDeps) customer(ctx context.Context, p *models.OnboardingProcess) (*models.CustomerProfile, error) {
	if p.CustomerID == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "process has no customer profile")
	}
	c, err := d.Customers.GetCustomer(ctx, *p.CustomerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "customer profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load customer profile")
	}
	return c, nil
}

func (d StageDeps) verifyIdentity(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error) {
	c, err := d.customer(ctx, p)
	if err != nil {
		return StageOutcome{}, err
	}
	res, err := d.Identity.Verify(ctx, p.ID, c)
	if err != nil {
		return StageOutcome{}, err
	}
	return StageOutcome{Signal: signalOf(res.Verified), Reason: res.Reason, Data: res, Simulated: res.Simulated}, nil
}

// verifyBiometrics compares the selfie with the same document bytes the
// identity stage accepted.
func (d StageDeps) verifyBiometrics(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error) {
	var identity verification.IdentityResult
	if _, err := stageData(p, models.StageIdentityVerification, &identity); err != nil {
		return StageOutcome{}, err
	}
	res, err := d.Biometric.Verify(ctx, p.ID, identity.DocumentDigest)
	if err != nil {
		return StageOutcome{}, err
	}
	return StageOutcome{Signal: signalOf(res.Verified), Reason: res.Reason, Data: res, Simulated: res.Simulated}, nil
}

func (d StageDeps) verifyFinancials(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error) {
	bank := p.Input.Bank
	if bank == nil || bank.AccountNumber == "" || bank.RoutingCode == "" {
		return StageOutcome{}, dErrors.New(dErrors.CodeValidation, "bank account details are required for financial verification")
	}
	c, err := d.customer(ctx, p)
	if err != nil {
		return StageOutcome{}, err
	}
	res, err := d.Financial.Aggregate(ctx, financial.Request{
		ProcessID:       p.ID,
		AccountHolder:   c.FullName,
		AccountNumber:   bank.AccountNumber,
		RoutingCode:     bank.RoutingCode,
		InstitutionID:   bank.InstitutionID,
		CredentialToken: bank.CredentialToken,
	})
	if err != nil {
		return StageOutcome{}, err
	}
	if !res.Verified {
		return StageOutcome{Signal: models.SignalNotVerified, Reason: res.Reason, Data: res}, nil
	}
	return StageOutcome{Signal: models.SignalVerified, Data: res.Profile, Simulated: res.Profile.Simulated}, nil
}

func (d StageDeps) screen(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error) {
	c, err := d.customer(ctx, p)
	if err != nil {
		return StageOutcome{}, err
	}
	req := risk.ScreeningRequest{
		ProcessID:   p.ID,
		FullName:    c.FullName,
		DateOfBirth: c.DateOfBirth,
		Address:     c.Address,
		Nationality: c.Nationality,
	}
	var identity verification.IdentityResult
	if ok, err := stageData(p, models.StageIdentityVerification, &identity); err != nil {
		return StageOutcome{}, err
	} else if ok {
		req.DocumentType = identity.Document.DocumentType
		req.DocumentNumber = identity.Document.DocumentNumber
		if req.Nationality == "" {
			req.Nationality = identity.Document.Nationality
		}
	}

	a := d.Risk.Assess(ctx, req)
	out := StageOutcome{Reason: a.Reason, Data: a, Simulated: a.Simulated}
	switch a.Decision {
	case risk.DecisionPass:
		out.Signal = models.SignalVerified
	case risk.DecisionManualReview:
		out.Signal = models.SignalNeedsReview
	default:
		out.Signal = models.SignalNotVerified
	}
	return out, nil
}

func (d StageDeps) openAccount(ctx context.Context, p *models.OnboardingProcess) (StageOutcome, error) {
	c, err := d.customer(ctx, p)
	if err != nil {
		return StageOutcome{}, err
	}
	req := account.Request{ProcessID: p.ID, CustomerID: c.ID, FullName: c.FullName, Email: c.Email}
	var profile financial.Profile
	if ok, err := stageData(p, models.StageFinancialVerification, &profile); err != nil {
		return StageOutcome{}, err
	} else if ok {
		req.Product = profile.RecommendedProduct
		req.SpendingPattern = profile.SpendingPattern
	}

	res, err := d.Account.Open(ctx, req)
	if err != nil {
		return StageOutcome{}, err
	}
	if !res.Created {
		return StageOutcome{Signal: models.SignalNotVerified, Reason: res.Reason}, nil
	}
	return StageOutcome{Signal: models.SignalVerified, Data: res.Account, Simulated: res.Account.Simulated}, nil
}

type completion struct {
	CompletedAt time.Time `json:"completed_at"`
}

func complete(ctx context.Context, _ *models.OnboardingProcess) (StageOutcome, error) {
	return StageOutcome{Signal: models.SignalVerified, Data: completion{CompletedAt: requestcontext.Now(ctx)}}, nil
}

// stageData decodes an earlier stage's blob into dst.
func stageData(p *models.OnboardingProcess, stage models.Stage, dst any) (bool, error) {
	r, ok := p.Result(stage)
	if !ok || len(r.Data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(r.Data, dst); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "stored "+string(stage)+" result is unreadable")
	}
	return true, nil
}

func signalOf(verified bool) models.Signal {
	if verified {
		return models.SignalVerified
	}
	return models.SignalNotVerified
}
