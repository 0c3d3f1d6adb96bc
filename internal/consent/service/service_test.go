package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboard/internal/consent/store"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	auditpublisher "onboard/pkg/platform/audit/publisher"
	auditmemory "onboard/pkg/platform/audit/store/memory"
	"onboard/pkg/requestcontext"
)

type ConsentServiceSuite struct {
	suite.Suite
	service   *Service
	audit     *auditmemory.InMemoryStore
	ctx       context.Context
	now       time.Time
	processID domain.ProcessID
}

func TestConsentServiceSuite(t *testing.T) {
	suite.Run(t, new(ConsentServiceSuite))
}

func (s *ConsentServiceSuite) SetupTest() {
	s.audit = auditmemory.NewInMemoryStore()
	svc, err := New(store.NewInMemoryStore(), WithAuditPublisher(auditpublisher.NewPublisher(s.audit)))
	s.Require().NoError(err)
	s.service = svc
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.processID = domain.NewProcessID()
}

func (s *ConsentServiceSuite) TestGrantThenRequire() {
	records, err := s.service.Grant(s.ctx, s.processID, []string{"cdr_financial_data"}, time.Hour)
	s.Require().NoError(err)
	s.Len(records, 1)

	s.NoError(s.service.Require(s.ctx, s.processID, domain.ConsentPurposeFinancialData))

	later := requestcontext.WithTime(context.Background(), s.now.Add(2*time.Hour))
	err = s.service.Require(later, s.processID, domain.ConsentPurposeFinancialData)
	s.True(dErrors.HasCode(err, dErrors.CodeConsentRequired), "expired consent")

	events, _ := s.audit.ListByProcess(s.ctx, s.processID)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventConsentGranted), events[0].Action)
}

func (s *ConsentServiceSuite) TestGrantRejectsUnknownPurpose() {
	_, err := s.service.Grant(s.ctx, s.processID, []string{"cdr_financial_data", "marketing"}, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	err = s.service.Require(s.ctx, s.processID, domain.ConsentPurposeFinancialData)
	s.True(dErrors.HasCode(err, dErrors.CodeConsentRequired), "nothing saved when any purpose is invalid")
}

func (s *ConsentServiceSuite) TestRevoke() {
	_, err := s.service.Grant(s.ctx, s.processID, []string{"cdr_financial_data"}, 0)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Revoke(s.ctx, s.processID, domain.ConsentPurposeFinancialData))
	err = s.service.Require(s.ctx, s.processID, domain.ConsentPurposeFinancialData)
	s.True(dErrors.HasCode(err, dErrors.CodeConsentRequired))

	err = s.service.Revoke(s.ctx, s.processID, domain.ConsentPurposeFinancialData)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ConsentServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}
