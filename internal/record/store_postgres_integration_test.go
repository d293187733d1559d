//go:build integration

package record_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/rauletepaz/account-verifactu/internal/record"
	"github.com/rauletepaz/account-verifactu/pkg/platform/sentinel"
	"github.com/rauletepaz/account-verifactu/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *record.PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = record.NewPostgresStore(s.pg.DB)
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func (s *PostgresStoreSuite) buildIssuance(invoiceID string, generatedAt time.Time) *record.FiscalRecord {
	snap := record.InvoiceSnapshot{
		InvoiceID:      invoiceID,
		IssuerTaxID:    "ES89890001K",
		IssuerCountry:  "ES",
		IssuerName:     "Acme SL",
		DocumentNumber: invoiceID,
		IssueDate:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		InvoiceType:    "F1",
		TaxTotal:       decimal.RequireFromString("21.00"),
		GrandTotal:     decimal.RequireFromString("121.00"),
	}
	b := record.NewBuilder(record.SystemInfo{SystemID: "77", Version: "1.0", InstallationNumber: "1"})
	r, err := b.BuildIssuance(snap, generatedAt)
	s.Require().NoError(err)
	s.Require().NoError(record.ComputeFingerprint(r))
	return r
}

func (s *PostgresStoreSuite) TestSaveAndGet() {
	r := s.buildIssuance("INV-1", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(s.store.Save(s.ctx, r))
	s.Require().NotZero(r.Seq)

	got, err := s.store.GetByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.Fingerprint, got.Fingerprint)
	s.Equal(r.Fields, got.Fields)
	s.Equal(record.StateDraft, got.State)
}

func (s *PostgresStoreSuite) TestUpdateOutcome() {
	r := s.buildIssuance("INV-1", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(s.store.Save(s.ctx, r))

	sent := time.Now().UTC().Truncate(time.Microsecond)
	r.State = record.StateAccepted
	r.SentAt = &sent
	r.TransportResponse = "<Respuesta/>"
	s.Require().NoError(s.store.Update(s.ctx, r))

	got, err := s.store.GetByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(record.StateAccepted, got.State)
	s.Require().NotNil(got.SentAt)
	s.True(sent.Equal(*got.SentAt))
}

func (s *PostgresStoreSuite) TestLatestChainableOrdering() {
	base := time.Now().UTC().Truncate(time.Microsecond)

	first := s.buildIssuance("INV-1", base)
	s.Require().NoError(s.store.Save(s.ctx, first))
	sentFirst := base.Add(time.Hour)
	first.State = record.StateAccepted
	first.SentAt = &sentFirst
	s.Require().NoError(s.store.Update(s.ctx, first))

	second := s.buildIssuance("INV-2", base.Add(time.Minute))
	s.Require().NoError(s.store.Save(s.ctx, second))
	sentSecond := base.Add(2 * time.Hour)
	second.State = record.StatePartiallyAccepted
	second.SentAt = &sentSecond
	s.Require().NoError(s.store.Update(s.ctx, second))

	got, err := s.store.LatestChainable(s.ctx, first.IssuerID, record.LaneInvoicing)
	s.Require().NoError(err)
	s.Equal(second.ID, got.ID)
}

func (s *PostgresStoreSuite) TestRejectedIsSentButNotChainable() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	r := s.buildIssuance("INV-1", base)
	s.Require().NoError(s.store.Save(s.ctx, r))
	sent := base.Add(time.Hour)
	r.State = record.StateRejected
	r.SentAt = &sent
	s.Require().NoError(s.store.Update(s.ctx, r))

	got, err := s.store.LatestSent(s.ctx, r.IssuerID, record.LaneInvoicing)
	s.Require().NoError(err)
	s.Equal(r.ID, got.ID)

	_, err = s.store.LatestChainable(s.ctx, r.IssuerID, record.LaneInvoicing)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByState() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	a := s.buildIssuance("INV-1", base)
	b := s.buildIssuance("INV-2", base.Add(time.Minute))
	s.Require().NoError(s.store.Save(s.ctx, a))
	s.Require().NoError(s.store.Save(s.ctx, b))

	drafts, err := s.store.ListByState(s.ctx, record.StateDraft)
	s.Require().NoError(err)
	s.Require().Len(drafts, 2)
	s.Equal(a.ID, drafts[0].ID)
	s.Equal(b.ID, drafts[1].ID)
}
