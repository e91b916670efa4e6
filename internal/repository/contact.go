package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/model"
	"github.com/jmoiron/sqlx"
)

const TableContacts = "contacts"

var (
	ErrContactNotFound = errors.New("contact not found")
)

type ContactRepository interface {
	Create(ctx context.Context, contact *model.Contact) error
	ByID(ctx context.Context, contactID string) (*model.Contact, error)
	ByRelationship(ctx context.Context, relationshipID string) (*model.Contact, error)
	Contacts(ctx context.Context) ([]*model.Contact, error)
	MarkAccepted(ctx context.Context, contactID string) error
}

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, contact *model.Contact) error {
	q, err := db.Conn(ctx, r.db, TableContacts)
	if err != nil {
		return err
	}

	query := `INSERT INTO contacts (id, name, email, relationship_id, accepted, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = q.ExecContext(ctx, query,
		contact.ID,
		contact.Name,
		contact.Email,
		contact.RelationshipID,
		contact.Accepted,
		contact.CreatedAt,
	)
	return err
}

func (r *contactRepository) ByID(ctx context.Context, contactID string) (*model.Contact, error) {
	return r.get(ctx, `SELECT * FROM contacts WHERE id = $1`, contactID)
}

func (r *contactRepository) ByRelationship(ctx context.Context, relationshipID string) (*model.Contact, error) {
	return r.get(ctx, `SELECT * FROM contacts WHERE relationship_id = $1`, relationshipID)
}

func (r *contactRepository) get(ctx context.Context, query string, arg string) (*model.Contact, error) {
	q, err := db.Conn(ctx, r.db, TableContacts)
	if err != nil {
		return nil, err
	}

	contact := &model.Contact{}
	err = sqlx.GetContext(ctx, q, contact, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (r *contactRepository) Contacts(ctx context.Context) ([]*model.Contact, error) {
	q, err := db.Conn(ctx, r.db, TableContacts)
	if err != nil {
		return nil, err
	}

	var contacts []*model.Contact
	err = sqlx.SelectContext(ctx, q, &contacts, `SELECT * FROM contacts ORDER BY LOWER(name) ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *contactRepository) MarkAccepted(ctx context.Context, contactID string) error {
	q, err := db.Conn(ctx, r.db, TableContacts)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `UPDATE contacts SET accepted = $1 WHERE id = $2`, true, contactID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrContactNotFound
	}
	return nil
}
