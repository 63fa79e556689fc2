// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	sq "github.com/Masterminds/squirrel"
)

// Column sets per table, in scan order.
var (
	bookmarkColumns = []string{
		"guid",
		"type",
		"title",
		"uri",
		"parent_id",
		"position",
		"tags",
		"modified",
		"deleted",
	}

	historyColumns = []string{
		"guid",
		"uri",
		"title",
		"visits",
		"modified",
		"deleted",
	}

	passwordColumns = []string{
		"guid",
		"hostname",
		"form_submit_url",
		"http_realm",
		"username",
		"password",
		"username_field",
		"password_field",
		"time_created",
		"time_password_changed",
		"modified",
		"deleted",
	}
)

// buildSelectByGUIDQuery selects a single row by guid.
func buildSelectByGUIDQuery(table string, columns []string, guid string) (string, []any, error) {
	return sq.Select(columns...).
		From(table).
		Where(sq.Eq{"guid": guid}).
		ToSql()
}

// buildModifiedSinceQuery lists rows changed strictly after the given
// server time, tombstones included. since == 0 lists everything so a
// first sync pushes the whole table.
func buildModifiedSinceQuery(table string, columns []string, since float64) (string, []any, error) {
	builder := sq.Select(columns...).
		From(table).
		OrderBy("modified ASC, guid ASC")
	if since > 0 {
		builder = builder.Where(sq.Gt{"modified": since})
	}
	return builder.ToSql()
}

// buildChildrenQuery lists the live members of a bookmark folder in
// position order.
func buildChildrenQuery(parentID string) (string, []any, error) {
	return sq.Select(bookmarkColumns...).
		From("bookmarks").
		Where(sq.Eq{"parent_id": parentID, "deleted": false}).
		OrderBy("position ASC, guid ASC").
		ToSql()
}

// buildMarkDeletedQuery turns a row into a local tombstone.
func buildMarkDeletedQuery(table, guid string, modified float64) (string, []any, error) {
	return sq.Update(table).
		Set("deleted", true).
		Set("modified", modified).
		Where(sq.Eq{"guid": guid}).
		ToSql()
}

// buildRemoveQuery hard-deletes a row.
func buildRemoveQuery(table, guid string) (string, []any, error) {
	return sq.Delete(table).
		Where(sq.Eq{"guid": guid}).
		ToSql()
}
