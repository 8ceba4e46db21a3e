package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/contacts-service/internal/domain"
)

// ContactFilter captures search parameters. Non-nil terms are OR-combined.
type ContactFilter struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// ContactRepository encapsulates contact persistence. Every call is scoped
// to the owning user.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	Update(ctx context.Context, contact *domain.Contact) error
	Delete(ctx context.Context, userID, id string) (*domain.Contact, error)
	GetByID(ctx context.Context, userID, id string) (*domain.Contact, error)
	List(ctx context.Context, userID string, limit, offset int) ([]domain.Contact, error)
	ListWithBirthDate(ctx context.Context, userID string) ([]domain.Contact, error)
	Search(ctx context.Context, userID string, filter ContactFilter) ([]domain.Contact, error)
}

type contactRepository struct {
	db DBTX
}

// NewContactRepository instantiates repository.
func NewContactRepository(db DBTX) ContactRepository {
	return &contactRepository{db: db}
}

const contactColumns = `id, user_id, first_name, last_name, email, phone_number, birth_date, additional_info, created_at, updated_at`

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (user_id, first_name, last_name, email, phone_number, birth_date, additional_info)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.PhoneNumber,
		contact.BirthDate,
		contact.AdditionalInfo,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)
	return mapWriteError(err)
}

func (r *contactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	const query = `
        UPDATE contacts SET first_name=$1, last_name=$2, email=$3, phone_number=$4,
            birth_date=$5, additional_info=$6, updated_at=NOW()
        WHERE id=$7 AND user_id=$8
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.PhoneNumber,
		contact.BirthDate,
		contact.AdditionalInfo,
		contact.ID,
		contact.UserID,
	).Scan(&contact.UpdatedAt)
	return mapWriteError(err)
}

func (r *contactRepository) Delete(ctx context.Context, userID, id string) (*domain.Contact, error) {
	query := `DELETE FROM contacts WHERE id=$1 AND user_id=$2 RETURNING ` + contactColumns
	return scanContact(r.db.QueryRow(ctx, query, id, userID))
}

func (r *contactRepository) GetByID(ctx context.Context, userID, id string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id=$1 AND user_id=$2`
	return scanContact(r.db.QueryRow(ctx, query, id, userID))
}

func (r *contactRepository) List(ctx context.Context, userID string, limit, offset int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id=$1 ORDER BY created_at, id LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (r *contactRepository) ListWithBirthDate(ctx context.Context, userID string) ([]domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id=$1 AND birth_date IS NOT NULL`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (r *contactRepository) Search(ctx context.Context, userID string, filter ContactFilter) ([]domain.Contact, error) {
	args := []any{userID}
	var terms []string

	add := func(column string, value *string) {
		if value == nil || strings.TrimSpace(*value) == "" {
			return
		}
		args = append(args, "%"+likeEscaper.Replace(strings.TrimSpace(*value))+"%")
		terms = append(terms, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
	}
	add("first_name", filter.FirstName)
	add("last_name", filter.LastName)
	add("email", filter.Email)

	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id=$1`
	if len(terms) > 0 {
		query += ` AND (` + strings.Join(terms, " OR ") + `)`
	}
	query += ` ORDER BY last_name, first_name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContacts(rows)
}

// likeEscaper makes user input match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanContact(row pgx.Row) (*domain.Contact, error) {
	var contact domain.Contact
	if err := row.Scan(
		&contact.ID,
		&contact.UserID,
		&contact.FirstName,
		&contact.LastName,
		&contact.Email,
		&contact.PhoneNumber,
		&contact.BirthDate,
		&contact.AdditionalInfo,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &contact, nil
}

func scanContacts(rows pgx.Rows) ([]domain.Contact, error) {
	result := []domain.Contact{}
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *contact)
	}
	return result, rows.Err()
}
