package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for entity persistence.
// It lets the registry run against SQLite in production and a mock in tests.
type Repository interface {
	// List retrieves all registered entities.
	List(ctx context.Context) ([]Entity, error)

	// GetByTopicID retrieves one entity.
	// Returns ErrEntityNotFound if the entity does not exist.
	GetByTopicID(ctx context.Context, id TopicID) (*Entity, error)

	// Create inserts a new entity.
	// Returns ErrEntityExists if the topic id or external id is taken.
	Create(ctx context.Context, e *Entity) error

	// Delete removes an entity by topic id.
	// Returns ErrEntityNotFound if the entity does not exist.
	Delete(ctx context.Context, id TopicID) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectEntity = `
	SELECT topic_id, external_id, entity_type, parent, display_name, registered_at
	FROM entities`

// List retrieves all registered entities ordered by registration time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, selectEntity+` ORDER BY registered_at, topic_id`)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// GetByTopicID retrieves one entity.
func (r *SQLiteRepository) GetByTopicID(ctx context.Context, id TopicID) (*Entity, error) {
	row := r.db.QueryRowContext(ctx, selectEntity+` WHERE topic_id = ?`, string(id))
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	return e, nil
}

// Create inserts a new entity.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entity) error {
	if e.RegisteredAt.IsZero() {
		e.RegisteredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entities (topic_id, external_id, entity_type, parent, display_name, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.TopicID),
		e.ExternalID,
		string(e.Type),
		nullString(string(e.Parent)),
		nullString(e.DisplayName),
		e.RegisteredAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrEntityExists, e.TopicID)
		}
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// Delete removes an entity by topic id.
func (r *SQLiteRepository) Delete(ctx context.Context, id TopicID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE topic_id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner) (*Entity, error) {
	var (
		e            Entity
		topicID      string
		entityType   string
		parent       sql.NullString
		displayName  sql.NullString
		registeredAt string
	)

	if err := s.Scan(&topicID, &e.ExternalID, &entityType, &parent, &displayName, &registeredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	e.TopicID = TopicID(topicID)
	e.Type = Type(entityType)
	e.Parent = TopicID(parent.String)
	e.DisplayName = displayName.String

	ts, err := time.Parse(time.RFC3339Nano, registeredAt)
	if err != nil {
		return nil, fmt.Errorf("parsing registered_at for %s: %w", topicID, err)
	}
	e.RegisteredAt = ts

	return &e, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
