// Package supabase reads the record tables from a hosted Supabase project
// through its PostgREST API. It implements the read-side store ports only;
// reminder state needs conditional updates and stays in Postgres.
package supabase

import (
	"context"
	"sort"
	"time"

	"github.com/nedpals/supabase-go"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"trackdesk/internal/domain"
	ierr "trackdesk/internal/errors"
)

const dateLayout = "2006-01-02"

type Store struct {
	client *supabase.Client
}

func New(url, serviceKey string) (*Store, error) {
	client := supabase.CreateClient(url, serviceKey)
	if client == nil {
		return nil, ierr.NewError("supabase client creation failed").
			WithHint("Check SUPABASE_URL and SUPABASE_KEY").
			Mark(ierr.ErrValidation)
	}
	return &Store{client: client}, nil
}

func apiErr(err error, hint string) error {
	return ierr.WithError(err).WithHint(hint).Mark(ierr.ErrDatabase)
}

// the PostgREST client has no context support; at least do not start a
// request for a caller that already gave up
func live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ierr.WithError(err).WithHint("request cancelled").Mark(ierr.ErrSourceUnavailable)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type domaineRow struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	NomClient      string  `json:"nom_client"`
	NomDomaine     string  `json:"nom_domaine"`
	Hebergement    bool    `json:"hebergement"`
	DateExpiration string  `json:"date_expiration"`
	DateRappel     *string `json:"date_rappel"`
}

func (s *Store) ListDomains(ctx context.Context, ownerID string) ([]domain.DomainRecord, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	var rows []domaineRow
	if err := s.client.DB.From("domaines").Select("*").Eq("user_id", ownerID).Execute(&rows); err != nil {
		return nil, apiErr(err, "domain listing failed")
	}
	out := make([]domain.DomainRecord, 0, len(rows))
	for _, r := range rows {
		exp, err := parseDate(r.DateExpiration)
		if err != nil {
			return nil, apiErr(err, "domain row has an invalid expiration date")
		}
		rem, err := parseOptionalDate(r.DateRappel)
		if err != nil {
			return nil, apiErr(err, "domain row has an invalid reminder date")
		}
		out = append(out, domain.DomainRecord{
			ID:             r.ID,
			OwnerID:        r.UserID,
			ClientName:     r.NomClient,
			DomainName:     r.NomDomaine,
			Hosted:         r.Hebergement,
			ExpirationDate: exp,
			ReminderDate:   rem,
		})
	}
	return out, nil
}

type hebergementRow struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	NomClient       string  `json:"nom_client"`
	Serveur         string  `json:"serveur"`
	TypeHebergement string  `json:"type_hebergement"`
	DateExpiration  string  `json:"date_expiration"`
	DateRappel      *string `json:"date_rappel"`
}

func (s *Store) ListHosting(ctx context.Context, ownerID string) ([]domain.HostingRecord, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	var rows []hebergementRow
	if err := s.client.DB.From("hebergements").Select("*").Eq("user_id", ownerID).Execute(&rows); err != nil {
		return nil, apiErr(err, "hosting listing failed")
	}
	out := make([]domain.HostingRecord, 0, len(rows))
	for _, r := range rows {
		exp, err := parseDate(r.DateExpiration)
		if err != nil {
			return nil, apiErr(err, "hosting row has an invalid expiration date")
		}
		rem, err := parseOptionalDate(r.DateRappel)
		if err != nil {
			return nil, apiErr(err, "hosting row has an invalid reminder date")
		}
		out = append(out, domain.HostingRecord{
			ID:             r.ID,
			OwnerID:        r.UserID,
			ClientName:     r.NomClient,
			Server:         r.Serveur,
			HostingType:    r.TypeHebergement,
			ExpirationDate: exp,
			ReminderDate:   rem,
		})
	}
	return out, nil
}

type loi25Row struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	NomClient      string  `json:"nom_client"`
	Domaine        string  `json:"domaine"`
	DateExpiration string  `json:"date_expiration"`
	DateRappel     *string `json:"date_rappel"`
}

func (s *Store) ListLoi25(ctx context.Context, ownerID string) ([]domain.Loi25Record, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	var rows []loi25Row
	if err := s.client.DB.From("loi25_entries").Select("*").Eq("user_id", ownerID).Execute(&rows); err != nil {
		return nil, apiErr(err, "law 25 listing failed")
	}
	out := make([]domain.Loi25Record, 0, len(rows))
	for _, r := range rows {
		exp, err := parseDate(r.DateExpiration)
		if err != nil {
			return nil, apiErr(err, "law 25 row has an invalid expiration date")
		}
		rem, err := parseOptionalDate(r.DateRappel)
		if err != nil {
			return nil, apiErr(err, "law 25 row has an invalid reminder date")
		}
		out = append(out, domain.Loi25Record{
			ID:             r.ID,
			OwnerID:        r.UserID,
			ClientName:     r.NomClient,
			Domain:         r.Domaine,
			ExpirationDate: exp,
			ReminderDate:   rem,
		})
	}
	return out, nil
}

const invoiceSelect = "id,user_id,numero_facture,date_echeance,total,statut,clients(nom)"

type invoiceRow struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	NumeroFacture string          `json:"numero_facture"`
	DateEcheance  string          `json:"date_echeance"`
	Total         decimal.Decimal `json:"total"`
	Statut        string          `json:"statut"`
	Clients       *struct {
		Nom string `json:"nom"`
	} `json:"clients"`
}

func (r invoiceRow) toDomain() (domain.Invoice, error) {
	due, err := parseDate(r.DateEcheance)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv := domain.Invoice{
		ID:      r.ID,
		OwnerID: r.UserID,
		Number:  r.NumeroFacture,
		DueDate: due,
		Total:   r.Total,
		Status:  domain.InvoiceStatus(r.Statut),
	}
	if r.Clients != nil {
		inv.ClientName = r.Clients.Nom
	}
	return inv, nil
}

func (s *Store) ListUnpaidDueBefore(ctx context.Context, ownerID string, day time.Time) ([]domain.Invoice, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	var rows []invoiceRow
	err := s.client.DB.From("invoices").
		Select(invoiceSelect).
		Eq("user_id", ownerID).
		Neq("statut", string(domain.InvoicePaid)).
		Lt("date_echeance", day.Format(dateLayout)).
		Execute(&rows)
	if err != nil {
		return nil, apiErr(err, "invoice listing failed")
	}
	out := make([]domain.Invoice, 0, len(rows))
	for _, r := range rows {
		inv, err := r.toDomain()
		if err != nil {
			return nil, apiErr(err, "invoice row has an invalid due date")
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Store) GetInvoices(ctx context.Context, ids []string) (map[string]domain.Invoice, error) {
	out := make(map[string]domain.Invoice, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if err := live(ctx); err != nil {
		return nil, err
	}
	var rows []invoiceRow
	if err := s.client.DB.From("invoices").Select(invoiceSelect).In("id", ids).Execute(&rows); err != nil {
		return nil, apiErr(err, "invoice lookup failed")
	}
	for _, r := range rows {
		inv, err := r.toDomain()
		if err != nil {
			return nil, apiErr(err, "invoice row has an invalid due date")
		}
		out[inv.ID] = inv
	}
	return out, nil
}

type ownerRow struct {
	UserID string `json:"user_id"`
}

func (s *Store) ListOverdueOwners(ctx context.Context, day time.Time) ([]string, error) {
	if err := live(ctx); err != nil {
		return nil, err
	}
	var rows []ownerRow
	err := s.client.DB.From("invoices").
		Select("user_id").
		Neq("statut", string(domain.InvoicePaid)).
		Lt("date_echeance", day.Format(dateLayout)).
		Execute(&rows)
	if err != nil {
		return nil, apiErr(err, "overdue owner listing failed")
	}
	owners := lo.Uniq(lo.Map(rows, func(r ownerRow, _ int) string { return r.UserID }))
	sort.Strings(owners)
	return owners, nil
}
