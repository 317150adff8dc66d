package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
	"trackdesk/internal/ports"
)

const reminderColumns = `id, invoice_id, owner_id, state, last_contact_at, resolved_at, created_at, updated_at`

func scanReminder(row pgx.Row) (domain.ReminderState, error) {
	var r domain.ReminderState
	var state string
	err := row.Scan(&r.ID, &r.InvoiceID, &r.OwnerID, &state, &r.LastContactAt, &r.ResolvedAt, &r.CreatedAt, &r.UpdatedAt)
	r.State = domain.ReminderStatus(state)
	return r, err
}

// CreateIfAbsent inserts r unless a reminder already exists for its invoice.
// The unique invoice_id constraint makes concurrent calls safe.
func (db *DB) CreateIfAbsent(ctx context.Context, r domain.ReminderState) (domain.ReminderState, bool, error) {
	out, err := scanReminder(db.conn.QueryRow(ctx, `
        INSERT INTO reminder_states (id, invoice_id, owner_id, state, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (invoice_id) DO NOTHING
        RETURNING `+reminderColumns,
		r.ID, r.InvoiceID, r.OwnerID, string(r.State), r.CreatedAt))
	if err == nil {
		return out, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ReminderState{}, false, dbErr(err, "reminder creation failed")
	}

	existing, err := scanReminder(db.conn.QueryRow(ctx, `
        SELECT `+reminderColumns+` FROM reminder_states WHERE invoice_id = $1
    `, r.InvoiceID))
	if err != nil {
		return domain.ReminderState{}, false, dbErr(err, "reminder lookup failed")
	}
	return existing, false, nil
}

func (db *DB) GetReminder(ctx context.Context, ownerID, id string) (domain.ReminderState, error) {
	r, err := scanReminder(db.conn.QueryRow(ctx, `
        SELECT `+reminderColumns+` FROM reminder_states WHERE id = $1 AND owner_id = $2
    `, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ierr.WithError(err).WithHintf("reminder %s not found", id).Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return r, dbErr(err, "reminder lookup failed")
	}
	return r, nil
}

func (db *DB) ListReminders(ctx context.Context, ownerID string) ([]domain.ReminderState, error) {
	rows, err := db.conn.Query(ctx, `
        SELECT `+reminderColumns+` FROM reminder_states WHERE owner_id = $1 ORDER BY created_at, id
    `, ownerID)
	if err != nil {
		return nil, dbErr(err, "reminder listing failed")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReminderState, error) {
		return scanReminder(row)
	})
	if err != nil {
		return nil, dbErr(err, "reminder listing failed")
	}
	return out, nil
}

// Transition applies t as a conditional update keyed on the current state, so
// two concurrent requests can never both act on the same observed state.
// Escalations append to reminder_contacts in the same transaction.
func (db *DB) Transition(ctx context.Context, t ports.Transition) (r domain.ReminderState, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return r, dbErr(err, "reminder transition failed")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	from := lo.Map(t.From, func(s domain.ReminderStatus, _ int) string { return string(s) })
	r, err = scanReminder(tx.QueryRow(ctx, `
        UPDATE reminder_states
        SET state = $2,
            updated_at = $3,
            last_contact_at = CASE WHEN $2 = 'escalated' THEN $3 ELSE last_contact_at END,
            resolved_at = CASE WHEN $2 = 'resolved' THEN $3 ELSE resolved_at END
        WHERE id = $1 AND state = ANY($4) AND owner_id = $5
        RETURNING `+reminderColumns,
		t.ReminderID, string(t.To), t.At, from, t.OwnerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, db.rejectTransition(ctx, tx, t)
	}
	if err != nil {
		return r, dbErr(err, "reminder transition failed")
	}

	if t.To == domain.ReminderEscalated {
		if _, err = tx.Exec(ctx, `
            INSERT INTO reminder_contacts (id, reminder_id, contacted_at) VALUES ($1, $2, $3)
        `, domain.NewID("rct"), r.ID, t.At); err != nil {
			return r, dbErr(err, "reminder contact recording failed")
		}
	}
	return r, nil
}

// rejectTransition tells an unknown id apart from a state that does not allow t.
// Another owner's reminder is unknown.
func (db *DB) rejectTransition(ctx context.Context, tx pgx.Tx, t ports.Transition) error {
	var current string
	err := tx.QueryRow(ctx, `
        SELECT state FROM reminder_states WHERE id = $1 AND owner_id = $2
    `, t.ReminderID, t.OwnerID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ierr.NewError("reminder not found").
			WithHintf("reminder %s not found", t.ReminderID).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return dbErr(err, "reminder lookup failed")
	}
	return ierr.NewError("invalid reminder transition").
		WithHintf("cannot move reminder from %s to %s", current, t.To).
		WithReportableDetails(map[string]any{"reminder_id": t.ReminderID, "from": current, "to": string(t.To)}).
		Mark(ierr.ErrInvalidTransition)
}

func (db *DB) ListContacts(ctx context.Context, reminderID string) ([]domain.ReminderContact, error) {
	rows, err := db.conn.Query(ctx, `
        SELECT id, reminder_id, contacted_at FROM reminder_contacts
        WHERE reminder_id = $1
        ORDER BY contacted_at, id
    `, reminderID)
	if err != nil {
		return nil, dbErr(err, "reminder contact listing failed")
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.ReminderContact])
	if err != nil {
		return nil, dbErr(err, "reminder contact listing failed")
	}
	return out, nil
}
