package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitegen-portal/internal/clock"
	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/store"
)

var now = time.Unix(1700000000, 0).UTC()

func newMockStore(t *testing.T) (*StatusStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewStatusStoreWithPool(mock, "generation_status", time.Hour, clock.NewManual(now))
	require.NoError(t, err)
	return s, mock
}

func TestStatusStorePutUpserts(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	rec := generation.FromEvent(generation.WebhookEvent{Status: "started", ClientName: "acme-1"}, now)

	mock.ExpectExec("INSERT INTO generation_status").
		WithArgs("acme-1", pgxmock.AnyArg(), now, now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusStoreGetDecodesRecord(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	rec := generation.FromEvent(generation.WebhookEvent{Status: "content_generated", ClientName: "acme-1"}, now)
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT record FROM generation_status").
		WithArgs("acme-1", now).
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(raw))

	got, err := s.Get(context.Background(), "acme-1")
	require.NoError(t, err)
	require.Equal(t, generation.StatusInProgress, got.Status)
	require.Equal(t, 60, got.Progress)
	require.Equal(t, generation.StepInProgress, got.Steps[generation.StepCreateRepo])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusStoreGetNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT record FROM generation_status").
		WithArgs("missing", now).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatusStoreGetPropagatesErrors(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT record").
		WithArgs("acme-1", now).
		WillReturnError(errors.New("connection reset"))

	_, err := s.Get(context.Background(), "acme-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrNotFound)
}

func TestStatusStoreSweepReportsRows(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM generation_status WHERE expires_at").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	removed, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 3, removed)
}

func TestStatusStoreDelete(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM generation_status WHERE client_id").
		WithArgs("acme-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Delete(context.Background(), "acme-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusStoreEnsureSchema(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS generation_status").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStatusStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewStatusStoreWithPool(mock, "status; DROP TABLE x", time.Hour, nil)
	require.Error(t, err)

	_, err = NewStatusStoreWithPool(nil, "", time.Hour, nil)
	require.Error(t, err)
}
