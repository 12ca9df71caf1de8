package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/pickleplay/court-reservation/internal/model"
	"github.com/pickleplay/court-reservation/internal/utils"
)

// OperatorRepo provides data access to the operators table.  Operators
// are the venue staff who sign in to the admin console and receive
// WhatsApp fan-out notifications.
type OperatorRepo struct{ DB *sql.DB }

func NewOperatorRepo(db *sql.DB) *OperatorRepo { return &OperatorRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts an operator and returns its ID.
func (r *OperatorRepo) Create(ctx context.Context, email, password, phone string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO operators (email, password_hash, phone) VALUES (?,?,?)",
		email, hash, phone)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an operator by normalized email.  Inactive
// accounts are returned too; the login handler rejects them with a
// 403 so disabling an account is distinguishable from a wrong
// password.
func (r *OperatorRepo) GetByEmail(ctx context.Context, email string) (model.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var o model.Operator
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,phone,is_active,created_at,updated_at FROM operators WHERE email=? LIMIT 1",
		email).Scan(&o.ID, &o.Email, &o.PasswordHash, &o.Phone, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetByID fetches an operator by id.
func (r *OperatorRepo) GetByID(ctx context.Context, id uint64) (model.Operator, error) {
	var o model.Operator
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,phone,is_active,created_at,updated_at FROM operators WHERE id=? LIMIT 1",
		id).Scan(&o.ID, &o.Email, &o.PasswordHash, &o.Phone, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// ActivePhones returns the WhatsApp handles of all active operators
// for notification fan-out.  Operators without a phone on file are
// skipped.
func (r *OperatorRepo) ActivePhones(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT phone FROM operators WHERE is_active = 1 AND phone <> ''")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	phones := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		phones = append(phones, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return phones, nil
}
