package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
	"trackdesk/internal/ports"
)

var reminderRowColumns = []string{"id", "invoice_id", "owner_id", "state", "last_contact_at", "resolved_at", "created_at", "updated_at"}

func newMockDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newDB(mock), mock
}

func resolveFor(owner string, at time.Time) ports.Transition {
	return ports.Transition{
		ReminderID: "rem_1",
		OwnerID:    owner,
		From:       domain.AllowedFrom(domain.ReminderResolved),
		To:         domain.ReminderResolved,
		At:         at,
	}
}

func TestTransitionOtherOwnerNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE reminder_states").
		WithArgs("rem_1", "resolved", at, []string{"pending", "escalated"}, "intruder").
		WillReturnRows(pgxmock.NewRows(reminderRowColumns))
	mock.ExpectQuery("SELECT state FROM reminder_states").
		WithArgs("rem_1", "intruder").
		WillReturnRows(pgxmock.NewRows([]string{"state"}))
	mock.ExpectRollback()

	_, err := db.Transition(context.Background(), resolveFor("intruder", at))
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionFromTerminalState(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE reminder_states").
		WithArgs("rem_1", "resolved", at, []string{"pending", "escalated"}, "owner-1").
		WillReturnRows(pgxmock.NewRows(reminderRowColumns))
	mock.ExpectQuery("SELECT state FROM reminder_states").
		WithArgs("rem_1", "owner-1").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow("resolved"))
	mock.ExpectRollback()

	_, err := db.Transition(context.Background(), resolveFor("owner-1", at))
	require.Error(t, err)
	assert.True(t, ierr.IsInvalidTransition(err))
	assert.False(t, ierr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionEscalateRecordsContact(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	at := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE reminder_states").
		WithArgs("rem_1", "escalated", at, []string{"pending", "escalated"}, "owner-1").
		WillReturnRows(pgxmock.NewRows(reminderRowColumns).
			AddRow("rem_1", "inv-1", "owner-1", "escalated", &at, (*time.Time)(nil), created, at))
	mock.ExpectExec("INSERT INTO reminder_contacts").
		WithArgs(pgxmock.AnyArg(), "rem_1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	r, err := db.Transition(context.Background(), ports.Transition{
		ReminderID: "rem_1",
		OwnerID:    "owner-1",
		From:       domain.AllowedFrom(domain.ReminderEscalated),
		To:         domain.ReminderEscalated,
		At:         at,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderEscalated, r.State)
	require.NotNil(t, r.LastContactAt)
	assert.Equal(t, at, *r.LastContactAt)
	assert.Nil(t, r.ResolvedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionBeginFails(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	_, err := db.Transition(context.Background(), resolveFor("owner-1", time.Now()))
	require.Error(t, err)
	assert.Equal(t, ierr.ErrCodeDatabase, ierr.Code(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReminderScopedToOwner(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("FROM reminder_states WHERE id = ").
		WithArgs("rem_1", "intruder").
		WillReturnRows(pgxmock.NewRows(reminderRowColumns))

	_, err := db.GetReminder(context.Background(), "intruder", "rem_1")
	assert.True(t, ierr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
