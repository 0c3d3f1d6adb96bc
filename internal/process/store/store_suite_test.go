package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"onboard/internal/process/models"
	"onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// processStore is the surface exercised by the shared suite.
type processStore interface {
	Create(ctx context.Context, p *models.OnboardingProcess) error
	Get(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error)
	ApplyStageResult(ctx context.Context, id domain.ProcessID, u models.StageUpdate, expected models.Status) (*models.OnboardingProcess, error)
	ListActive(ctx context.Context, now time.Time, limit int) ([]domain.ProcessID, error)
	PurgeExpired(ctx context.Context, now time.Time) ([]domain.ProcessID, error)
	CreateCustomer(ctx context.Context, c *models.CustomerProfile) error
	GetCustomer(ctx context.Context, id domain.CustomerID) (*models.CustomerProfile, error)
	EnrichCustomer(ctx context.Context, id domain.CustomerID, e models.Enrichment, now time.Time) (*models.CustomerProfile, error)
}

// StoreSuite runs against every implementation. Set newStore before running.
type StoreSuite struct {
	suite.Suite
	newStore func() processStore
	store    processStore
	ctx      context.Context
	now      time.Time
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore()
	s.ctx = context.Background()
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *StoreSuite) newProcess() *models.OnboardingProcess {
	p := models.NewProcess(domain.NewProcessID(), models.InitialContext{
		Details: &models.CustomerDetails{FullName: "Grace Hopper", DateOfBirth: "1906-12-09"},
	}, s.now, time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, p))
	return p
}

func (s *StoreSuite) detailsUpdate(at time.Time) models.StageUpdate {
	return models.StageUpdate{
		Result:     models.StageResult{Stage: models.StageCollectDetails, Signal: models.SignalVerified, Data: json.RawMessage(`{"ok":true}`), RecordedAt: at},
		NextStatus: models.StatusDetailsCollected,
		At:         at,
	}
}

// =============================================================================
// Create / Get
// =============================================================================

func (s *StoreSuite) TestCreateAndGet() {
	p := s.newProcess()

	got, err := s.store.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInitiated, got.Status)
	s.Equal("Grace Hopper", got.Input.Details.FullName)
	s.Empty(got.Results)
}

func (s *StoreSuite) TestCreateCollision() {
	p := s.newProcess()
	err := s.store.Create(s.ctx, p)
	s.ErrorIs(err, sentinel.ErrAlreadyExists)
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, domain.NewProcessID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// =============================================================================
// ApplyStageResult
// =============================================================================

func (s *StoreSuite) TestApplyStageResult_Advances() {
	p := s.newProcess()
	cid := domain.CustomerIDFor(p.ID)
	u := s.detailsUpdate(s.now.Add(time.Second))
	u.CustomerID = &cid

	got, err := s.store.ApplyStageResult(s.ctx, p.ID, u, models.StatusInitiated)
	s.Require().NoError(err)
	s.Equal(models.StatusDetailsCollected, got.Status)
	s.Require().NotNil(got.CustomerID)
	s.Equal(cid, *got.CustomerID)
	s.Contains(got.Results, models.StageCollectDetails)
}

func (s *StoreSuite) TestApplyStageResult_StaleExpectedIsConflictAndNoMutation() {
	p := s.newProcess()
	_, err := s.store.ApplyStageResult(s.ctx, p.ID, s.detailsUpdate(s.now.Add(time.Second)), models.StatusInitiated)
	s.Require().NoError(err)
	before, err := s.store.Get(s.ctx, p.ID)
	s.Require().NoError(err)

	replay := s.detailsUpdate(s.now.Add(2 * time.Second))
	replay.Result.Data = json.RawMessage(`{"ok":false}`)
	_, err = s.store.ApplyStageResult(s.ctx, p.ID, replay, models.StatusInitiated)
	s.ErrorIs(err, sentinel.ErrConflict)

	after, err := s.store.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(before.Status, after.Status)
	s.Equal(before.UpdatedAt, after.UpdatedAt)
	s.JSONEq(string(before.Results[models.StageCollectDetails].Data), string(after.Results[models.StageCollectDetails].Data))
}

func (s *StoreSuite) TestApplyStageResult_FailureRecordsReason() {
	p := s.newProcess()
	_, err := s.store.ApplyStageResult(s.ctx, p.ID, s.detailsUpdate(s.now.Add(time.Second)), models.StatusInitiated)
	s.Require().NoError(err)

	got, err := s.store.ApplyStageResult(s.ctx, p.ID, models.StageUpdate{
		Result:     models.StageResult{Stage: models.StageIdentityVerification, Signal: models.SignalNotVerified, Reason: "name mismatch"},
		NextStatus: models.StatusIDVerificationFailed,
		Reason:     "name mismatch",
		At:         s.now.Add(2 * time.Second),
	}, models.StatusDetailsCollected)
	s.Require().NoError(err)
	s.Equal(models.StatusIDVerificationFailed, got.Status)
	s.Equal("name mismatch", got.Reason)
}

func (s *StoreSuite) TestApplyStageResult_TerminalExpectedIsInvalidState() {
	p := s.newProcess()
	_, err := s.store.ApplyStageResult(s.ctx, p.ID, s.detailsUpdate(s.now), models.StatusCompleted)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *StoreSuite) TestApplyStageResult_RejectsImpossibleNextStatus() {
	tests := []struct {
		name     string
		next     models.Status
		expected models.Status
	}{
		{"same status", models.StatusInitiated, models.StatusInitiated},
		{"same mid-graph status", models.StatusDetailsCollected, models.StatusDetailsCollected},
		{"back to initiated", models.StatusInitiated, models.StatusDetailsCollected},
		{"unknown status", models.Status("APPROVED"), models.StatusInitiated},
		{"empty status", models.Status(""), models.StatusInitiated},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			p := s.newProcess()
			if tt.expected == models.StatusDetailsCollected {
				_, err := s.store.ApplyStageResult(s.ctx, p.ID, s.detailsUpdate(s.now), models.StatusInitiated)
				s.Require().NoError(err)
			}
			u := s.detailsUpdate(s.now.Add(time.Second))
			u.NextStatus = tt.next

			_, err := s.store.ApplyStageResult(s.ctx, p.ID, u, tt.expected)
			s.ErrorIs(err, sentinel.ErrInvalidState)

			got, err := s.store.Get(s.ctx, p.ID)
			s.Require().NoError(err)
			s.Equal(tt.expected, got.Status, "record untouched")
		})
	}
}

func (s *StoreSuite) TestApplyStageResult_Missing() {
	_, err := s.store.ApplyStageResult(s.ctx, domain.NewProcessID(), s.detailsUpdate(s.now), models.StatusInitiated)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestApplyStageResult_Expired() {
	p := s.newProcess()
	_, err := s.store.ApplyStageResult(s.ctx, p.ID, s.detailsUpdate(s.now.Add(2*time.Hour)), models.StatusInitiated)
	s.ErrorIs(err, sentinel.ErrExpired)
}

func (s *StoreSuite) TestApplyStageResult_ConcurrentWritersOneWins() {
	p := s.newProcess()

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.ApplyStageResult(s.ctx, p.ID, s.detailsUpdate(s.now.Add(time.Duration(i+1)*time.Millisecond)), models.StatusInitiated)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if s.ErrorIs(err, sentinel.ErrConflict) {
				conflicts++
			}
		}(i)
	}
	wg.Wait()
	s.Equal(1, wins)
	s.Equal(writers-1, conflicts)
}

// =============================================================================
// Expiry and listing
// =============================================================================

func (s *StoreSuite) TestListActiveAndPurge() {
	active := s.newProcess()
	done := s.newProcess()
	_, err := s.store.ApplyStageResult(s.ctx, done.ID, models.StageUpdate{
		Result:     models.StageResult{Stage: models.StageCollectDetails, Signal: models.SignalNotVerified},
		NextStatus: models.StatusManualReview,
		Reason:     "test",
		At:         s.now,
	}, models.StatusInitiated)
	s.Require().NoError(err)

	ids, err := s.store.ListActive(s.ctx, s.now, 10)
	s.Require().NoError(err)
	s.Contains(ids, active.ID)
	s.NotContains(ids, done.ID)

	purged, err := s.store.PurgeExpired(s.ctx, s.now.Add(30*time.Minute))
	s.Require().NoError(err)
	s.Empty(purged)

	purged, err = s.store.PurgeExpired(s.ctx, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.ElementsMatch([]domain.ProcessID{active.ID, done.ID}, purged)
	_, err = s.store.Get(s.ctx, active.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// =============================================================================
// Customers
// =============================================================================

func (s *StoreSuite) TestCustomerLifecycle() {
	id := domain.CustomerIDFor(domain.NewProcessID())
	c := models.NewCustomerProfile(id, models.CustomerDetails{FullName: "Grace Hopper", DateOfBirth: "1906-12-09", Address: "1 Navy Way", Email: "g@example.com"}, s.now)

	s.Require().NoError(s.store.CreateCustomer(s.ctx, c))
	s.ErrorIs(s.store.CreateCustomer(s.ctx, c), sentinel.ErrAlreadyExists)

	got, err := s.store.EnrichCustomer(s.ctx, id, models.Enrichment{Nationality: "US"}, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal("US", got.Nationality)

	_, err = s.store.EnrichCustomer(s.ctx, id, models.Enrichment{Nationality: "US"}, s.now.Add(2*time.Minute))
	s.NoError(err, "same value is idempotent")

	_, err = s.store.EnrichCustomer(s.ctx, id, models.Enrichment{Nationality: "GB"}, s.now.Add(3*time.Minute))
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.GetCustomer(s.ctx, domain.CustomerID(domain.NewProcessID()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
