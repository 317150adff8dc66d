package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
)

func dbErr(err error, hint string) error {
	return ierr.WithError(err).WithHint(hint).Mark(ierr.ErrDatabase)
}

// DomainStore
func (db *DB) ListDomains(ctx context.Context, ownerID string) ([]domain.DomainRecord, error) {
	rows, err := db.conn.Query(ctx, `
        SELECT id::text, user_id, nom_client, nom_domaine, hebergement, date_expiration, date_rappel
        FROM domaines
        WHERE user_id = $1
        ORDER BY date_expiration, nom_domaine
    `, ownerID)
	if err != nil {
		return nil, dbErr(err, "domain listing failed")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DomainRecord, error) {
		var r domain.DomainRecord
		err := row.Scan(&r.ID, &r.OwnerID, &r.ClientName, &r.DomainName, &r.Hosted, &r.ExpirationDate, &r.ReminderDate)
		return r, err
	})
	if err != nil {
		return nil, dbErr(err, "domain listing failed")
	}
	return out, nil
}

// HostingStore
func (db *DB) ListHosting(ctx context.Context, ownerID string) ([]domain.HostingRecord, error) {
	rows, err := db.conn.Query(ctx, `
        SELECT id::text, user_id, nom_client, serveur, type_hebergement, date_expiration, date_rappel
        FROM hebergements
        WHERE user_id = $1
        ORDER BY date_expiration, serveur
    `, ownerID)
	if err != nil {
		return nil, dbErr(err, "hosting listing failed")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HostingRecord, error) {
		var r domain.HostingRecord
		err := row.Scan(&r.ID, &r.OwnerID, &r.ClientName, &r.Server, &r.HostingType, &r.ExpirationDate, &r.ReminderDate)
		return r, err
	})
	if err != nil {
		return nil, dbErr(err, "hosting listing failed")
	}
	return out, nil
}

// Loi25Store
func (db *DB) ListLoi25(ctx context.Context, ownerID string) ([]domain.Loi25Record, error) {
	rows, err := db.conn.Query(ctx, `
        SELECT id::text, user_id, nom_client, domaine, date_expiration, date_rappel
        FROM loi25_entries
        WHERE user_id = $1
        ORDER BY date_expiration, domaine
    `, ownerID)
	if err != nil {
		return nil, dbErr(err, "law 25 listing failed")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Loi25Record, error) {
		var r domain.Loi25Record
		err := row.Scan(&r.ID, &r.OwnerID, &r.ClientName, &r.Domain, &r.ExpirationDate, &r.ReminderDate)
		return r, err
	})
	if err != nil {
		return nil, dbErr(err, "law 25 listing failed")
	}
	return out, nil
}

// InvoiceStore

const invoiceColumns = `
    i.id::text, i.user_id, i.numero_facture, COALESCE(c.nom, ''), i.date_echeance, i.total::text, i.statut
`

func scanInvoice(row pgx.CollectableRow) (domain.Invoice, error) {
	var inv domain.Invoice
	var total, status string
	if err := row.Scan(&inv.ID, &inv.OwnerID, &inv.Number, &inv.ClientName, &inv.DueDate, &total, &status); err != nil {
		return inv, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return inv, err
	}
	inv.Total = amount
	inv.Status = domain.InvoiceStatus(status)
	return inv, nil
}

func (db *DB) ListUnpaidDueBefore(ctx context.Context, ownerID string, day time.Time) ([]domain.Invoice, error) {
	rows, err := db.conn.Query(ctx, `
        SELECT `+invoiceColumns+`
        FROM invoices i
        LEFT JOIN clients c ON c.id = i.client_id
        WHERE i.user_id = $1 AND i.statut <> 'paid' AND i.date_echeance < $2::date
        ORDER BY i.date_echeance, i.numero_facture
    `, ownerID, day)
	if err != nil {
		return nil, dbErr(err, "invoice listing failed")
	}
	out, err := pgx.CollectRows(rows, scanInvoice)
	if err != nil {
		return nil, dbErr(err, "invoice listing failed")
	}
	return out, nil
}

func (db *DB) GetInvoices(ctx context.Context, ids []string) (map[string]domain.Invoice, error) {
	out := make(map[string]domain.Invoice, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.conn.Query(ctx, `
        SELECT `+invoiceColumns+`
        FROM invoices i
        LEFT JOIN clients c ON c.id = i.client_id
        WHERE i.id::text = ANY($1)
    `, ids)
	if err != nil {
		return nil, dbErr(err, "invoice lookup failed")
	}
	list, err := pgx.CollectRows(rows, scanInvoice)
	if err != nil {
		return nil, dbErr(err, "invoice lookup failed")
	}
	for _, inv := range list {
		out[inv.ID] = inv
	}
	return out, nil
}

func (db *DB) ListOverdueOwners(ctx context.Context, day time.Time) ([]string, error) {
	rows, err := db.conn.Query(ctx, `
        SELECT DISTINCT user_id
        FROM invoices
        WHERE statut <> 'paid' AND date_echeance < $1::date
        ORDER BY user_id
    `, day)
	if err != nil {
		return nil, dbErr(err, "overdue owner listing failed")
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, dbErr(err, "overdue owner listing failed")
	}
	return owners, nil
}
