package services

import (
	"errors"
	"testing"
	"time"

	"coaching-crm-system/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	return db, mock
}

func conversionRows(convs ...models.AffiliateConversion) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "affiliate_id", "conversion_type", "customer_email",
		"amount", "commission_amount", "commission_status",
		"hold_until", "released_at", "created_at",
	})
	for _, c := range convs {
		rows.AddRow(c.ID, c.AffiliateID, c.ConversionType, c.CustomerEmail,
			c.Amount, c.CommissionAmount, c.CommissionStatus,
			c.HoldUntil, c.ReleasedAt, c.CreatedAt)
	}
	return rows
}

func TestReleaseEligibleCommissionsReleasesMatchingRows(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCommissionService(db)

	yesterday := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "affiliate_conversions"`).
		WillReturnRows(conversionRows(
			models.AffiliateConversion{ID: "x", CommissionAmount: 50, CommissionStatus: models.CommissionStatusHeld, HoldUntil: &yesterday},
			models.AffiliateConversion{ID: "y", CommissionAmount: 25.5, CommissionStatus: models.CommissionStatusHeld, HoldUntil: &yesterday},
		))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "affiliate_conversions"`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	result, err := s.ReleaseEligibleCommissions()
	require.NoError(t, err)

	assert.Equal(t, 2, result.ReleasedCount)
	assert.InDelta(t, 75.5, result.ReleasedAmount, 0.001)
	assert.Equal(t, []string{"x", "y"}, result.ReleasedIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseEligibleCommissionsNothingToReleaseIsNotAnError(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCommissionService(db)

	mock.ExpectQuery(`SELECT \* FROM "affiliate_conversions"`).
		WillReturnRows(conversionRows())

	result, err := s.ReleaseEligibleCommissions()
	require.NoError(t, err)

	assert.Equal(t, 0, result.ReleasedCount)
	assert.Equal(t, 0.0, result.ReleasedAmount)
	assert.Empty(t, result.ReleasedIDs)
	assert.NoError(t, mock.ExpectationsWereMet(), "no update must be issued")
}

func TestForceReleaseCommissionNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCommissionService(db)

	mock.ExpectQuery(`SELECT \* FROM "affiliate_conversions"`).
		WillReturnRows(conversionRows())

	_, err := s.ForceReleaseCommission("missing")
	assert.ErrorIs(t, err, ErrCommissionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForceReleaseCommissionInvalidState(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCommissionService(db)

	released := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "affiliate_conversions"`).
		WillReturnRows(conversionRows(models.AffiliateConversion{
			ID:               "x",
			CommissionAmount: 50,
			CommissionStatus: models.CommissionStatusAvailable,
			ReleasedAt:       &released,
		}))

	_, err := s.ForceReleaseCommission("x")

	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, models.CommissionStatusAvailable, stateErr.Status)
	assert.Contains(t, err.Error(), "available", "message carries the actual status")
	assert.NoError(t, mock.ExpectationsWereMet(), "row must be left unchanged")
}

func TestForceReleaseCommissionBypassesHoldWindow(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCommissionService(db)

	tomorrow := time.Now().Add(24 * time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "affiliate_conversions"`).
		WillReturnRows(conversionRows(models.AffiliateConversion{
			ID:               "y",
			CommissionAmount: 80,
			CommissionStatus: models.CommissionStatusHeld,
			HoldUntil:        &tomorrow,
		}))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "affiliate_conversions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	conv, err := s.ForceReleaseCommission("y")
	require.NoError(t, err)

	assert.Equal(t, models.CommissionStatusAvailable, conv.CommissionStatus)
	require.NotNil(t, conv.ReleasedAt)
	assert.Equal(t, 80.0, conv.CommissionAmount, "amount is never modified")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCommissionStatusBuckets(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCommissionService(db)

	bucket := func(count int64, total float64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"count", "total"}).AddRow(count, total)
	}
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnRows(bucket(1, 50))   // ready
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnRows(bucket(3, 200))  // held
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnRows(bucket(7, 1250)) // available

	report, err := s.GetCommissionStatus()
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.ReadyForRelease.Count)
	assert.Equal(t, 50.0, report.ReadyForRelease.Total)
	assert.Equal(t, int64(3), report.Held.Count)
	assert.Equal(t, 200.0, report.Held.Total)
	assert.Equal(t, int64(7), report.Available.Count)
	assert.Equal(t, 1250.0, report.Available.Total)
	assert.False(t, report.CurrentDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseEligibleCommissionsPropagatesDBErrors(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCommissionService(db)

	mock.ExpectQuery(`SELECT \* FROM "affiliate_conversions"`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.ReleaseEligibleCommissions()
	assert.Error(t, err)
}
