package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "grc/pkg/platform/audit"
	txcontext "grc/pkg/platform/tx"
)

// Schema creates the outbox table. Applied by the SQL persister at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS outbox (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	published_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox (created_at) WHERE published_at IS NULL;
`

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the caller's transaction and
// relayed to Kafka by the outbox worker.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the outbox table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create outbox schema: %w", err)
	}
	return nil
}

// Payload is the JSON structure published to Kafka.
type Payload struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp"`
	ActorID     int64  `json:"actor_id,omitempty"`
	Action      string `json:"action"`
	ObjectType  string `json:"object_type,omitempty"`
	ObjectID    int64  `json:"object_id,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Detail      string `json:"detail,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	ClientAgent string `json:"client_agent,omitempty"`
}

// Append writes an audit event to the outbox table. When ctx carries a
// transaction the insert joins it.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := event.ID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	category := audit.AuditEvent(event.Action).Category()
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	payload := Payload{
		ID:          eventID,
		Category:    string(category),
		Timestamp:   ts.Format(time.RFC3339Nano),
		ActorID:     event.ActorID,
		Action:      event.Action,
		ObjectType:  event.ObjectType,
		ObjectID:    event.ObjectID,
		Subject:     event.Subject,
		Detail:      event.Detail,
		RequestID:   event.RequestID,
		ClientAgent: event.ClientAgent,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID
	if event.ObjectType != "" && event.ObjectID != 0 {
		aggregateType = event.ObjectType
		aggregateID = strconv.FormatInt(event.ObjectID, 10)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		aggregateType,
		aggregateID,
		event.Action,
		string(payloadBytes),
		ts,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest outbox events, published or not.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM outbox ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outbox payload: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode outbox payload: %w", err)
		}
		events = append(events, p.Event())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

// Event converts a payload back into an audit event.
func (p Payload) Event() audit.Event {
	ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
	return audit.Event{
		ID:          p.ID,
		Category:    audit.EventCategory(p.Category),
		Timestamp:   ts,
		ActorID:     p.ActorID,
		Action:      p.Action,
		ObjectType:  p.ObjectType,
		ObjectID:    p.ObjectID,
		Subject:     p.Subject,
		Detail:      p.Detail,
		RequestID:   p.RequestID,
		ClientAgent: p.ClientAgent,
	}
}

// Entry is an unpublished outbox row.
type Entry struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Pending returns up to limit unpublished entries, oldest first.
func (s *Store) Pending(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given entries as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])
	`, at, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
