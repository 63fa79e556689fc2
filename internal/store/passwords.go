// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/models"
)

const upsertPassword = `
	INSERT INTO passwords (
		guid,
		hostname,
		form_submit_url,
		http_realm,
		username,
		password,
		username_field,
		password_field,
		time_created,
		time_password_changed,
		modified,
		deleted
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (guid) DO UPDATE SET
		hostname              = excluded.hostname,
		form_submit_url       = excluded.form_submit_url,
		http_realm            = excluded.http_realm,
		username              = excluded.username,
		password              = excluded.password,
		username_field        = excluded.username_field,
		password_field        = excluded.password_field,
		time_created          = excluded.time_created,
		time_password_changed = excluded.time_password_changed,
		modified              = excluded.modified,
		deleted               = excluded.deleted;`

type passwordRepository struct {
	*DB
	logger *logger.Logger
}

func NewPasswordStore(db *DB, logger *logger.Logger) PasswordStore {
	return &passwordRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *passwordRepository) GetByGUID(ctx context.Context, guid string) (models.PasswordItem, error) {
	query, args, err := buildSelectByGUIDQuery("passwords", passwordColumns, guid)
	if err != nil {
		return models.PasswordItem{}, fmt.Errorf("build password query: %w", err)
	}

	item, err := scanPassword(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.PasswordItem{}, ErrItemNotFound
	}
	return item, err
}

func (r *passwordRepository) GetModifiedSince(ctx context.Context, since float64) ([]models.PasswordItem, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildModifiedSinceQuery("passwords", passwordColumns, since)
	if err != nil {
		return nil, fmt.Errorf("build password query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "passwordRepository.GetModifiedSince").
			Msg("failed to execute password query")
		return nil, fmt.Errorf("failed to query passwords: %w", err)
	}
	defer rows.Close()

	var items []models.PasswordItem
	for rows.Next() {
		item, err := scanPassword(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate password rows: %w", err)
	}

	return items, nil
}

func (r *passwordRepository) Upsert(ctx context.Context, item models.PasswordItem) error {
	log := logger.FromContext(ctx)

	_, err := r.DB.ExecContext(ctx, upsertPassword,
		item.GUID,
		item.Hostname,
		item.FormSubmitURL,
		item.HTTPRealm,
		item.Username,
		item.Password,
		item.UsernameField,
		item.PasswordField,
		item.TimeCreated,
		item.TimePasswordChanged,
		item.Modified,
		item.Deleted,
	)
	if err != nil {
		log.Err(err).
			Str("func", "passwordRepository.Upsert").
			Str("guid", item.GUID).
			Msg("failed to execute upsert for password")
		return fmt.Errorf("failed to save password (guid=%s): %w", item.GUID, err)
	}

	return nil
}

func (r *passwordRepository) MarkDeleted(ctx context.Context, guid string, modified float64) error {
	query, args, err := buildMarkDeletedQuery("passwords", guid, modified)
	if err != nil {
		return fmt.Errorf("build password query: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark password deleted (guid=%s): %w", guid, err)
	}
	return nil
}

func (r *passwordRepository) Remove(ctx context.Context, guid string) error {
	query, args, err := buildRemoveQuery("passwords", guid)
	if err != nil {
		return fmt.Errorf("build password query: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove password (guid=%s): %w", guid, err)
	}
	return nil
}

func scanPassword(row rowScanner) (models.PasswordItem, error) {
	var item models.PasswordItem
	err := row.Scan(
		&item.GUID,
		&item.Hostname,
		&item.FormSubmitURL,
		&item.HTTPRealm,
		&item.Username,
		&item.Password,
		&item.UsernameField,
		&item.PasswordField,
		&item.TimeCreated,
		&item.TimePasswordChanged,
		&item.Modified,
		&item.Deleted,
	)
	if err != nil {
		return models.PasswordItem{}, err
	}
	return item, nil
}
