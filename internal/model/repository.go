package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var schemas = map[string][]string{
	DriverSQLite: {
		`create table if not exists logs (
  id integer primary key autoincrement,
  action text not null,
  timestamp text not null
)`,
		`create table if not exists config (
  guild_id text not null,
  scope text not null,
  name text not null,
  value text not null,
  primary key (guild_id, scope, name)
)`,
	},
	DriverPostgres: {
		`create table if not exists logs (
  id bigserial primary key,
  action text not null,
  timestamp text not null
)`,
		`create table if not exists config (
  guild_id text not null,
  scope text not null,
  name text not null,
  value text not null,
  primary key (guild_id, scope, name)
)`,
	},
}

type logRow struct {
	Action    string `db:"action"`
	Timestamp string `db:"timestamp"`
	ID        int64  `db:"id"`
}

func (row *logRow) entry() (Entry, error) {
	ts, err := time.Parse(time.RFC3339Nano, row.Timestamp)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp of entry %d: %w", row.ID, err)
	}

	return Entry{
		ID:        row.ID,
		Action:    row.Action,
		Timestamp: ts,
	}, nil
}

// Migrate creates tables if they do not exist yet
func (repo *Repository) Migrate(ctx context.Context) error {
	stmts, ok := schemas[repo.DB.DriverName()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDriver, repo.DB.DriverName())
	}

	for _, stmt := range stmts {
		if _, err := repo.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}

	return nil
}

// LogAppend stores action with current time and returns stored entry
func (repo *Repository) LogAppend(ctx context.Context, action string) (entry Entry, err error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return entry, ErrEmptyAction
	}

	now := repo.Clock.Now().UTC()
	query := repo.DB.Rebind(`insert into logs(action, timestamp) values (?, ?) returning id`)

	var id int64

	err = repo.DB.QueryRowxContext(ctx, query, action, now.Format(time.RFC3339Nano)).Scan(&id)
	if err != nil {
		return entry, fmt.Errorf("inserting log entry: %w", err)
	}

	return Entry{
		ID:        id,
		Action:    action,
		Timestamp: now,
	}, nil
}

// LogList returns newest entries first, at most limit of them
func (repo *Repository) LogList(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	var rows []logRow

	query := repo.DB.Rebind(`select id, action, timestamp from logs order by id desc limit ?`)

	err := repo.DB.SelectContext(ctx, &rows, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing log entries: %w", err)
	}

	entries := make([]Entry, 0, len(rows))

	for i := range rows {
		e, err := rows[i].entry()
		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// ConfigSet stores guild setting value
func (repo *Repository) ConfigSet(guildID, scope, key, value string) error {
	query := repo.DB.Rebind(`
insert into config(guild_id, scope, name, value) values (?, ?, ?, ?)
on conflict (guild_id, scope, name) do update set value = excluded.value
`)

	_, err := repo.DB.Exec(query, guildID, scope, key, value)
	if err != nil {
		return fmt.Errorf("setting %s.%s.%s: %w", guildID, scope, key, err)
	}

	return nil
}

// ConfigGet returns guild setting value or empty string if not set
func (repo *Repository) ConfigGet(guildID, scope, key string) (s string, err error) {
	query := repo.DB.Rebind(`select value from config where guild_id = ? and scope = ? and name = ?`)

	err = repo.DB.Get(&s, query, guildID, scope, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("getting %s.%s.%s: %w", guildID, scope, key, err)
	}

	return s, nil
}
