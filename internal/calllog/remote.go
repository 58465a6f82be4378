package calllog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"crm-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// PostgresStore is the remote (primary) call log.
//
// Assumed table:
//
//	call_records (seq BIGSERIAL, id, organization_id, client_id, client_name,
//	  phone_number, start_time, end_time, duration, outcome, notes, follow_up,
//	  follow_up_date, created_by, tags, provider_session_id)
//
// seq preserves insertion order; tags is stored as a JSON text column.
//
// Every operation runs through a circuit breaker so a flapping database fails
// fast instead of stacking timeouts. Change notifications go over redis pub/sub
// keyed by the logical table name.
type PostgresStore struct {
	db  *sql.DB
	rdb *redis.Client

	breaker *gobreaker.CircuitBreaker[any]
	clock   func() time.Time
}

const notifyChannelPrefix = "table:call_records:"

func notifyChannel(organizationID string) string {
	return notifyChannelPrefix + organizationID
}

func NewPostgresStore(db *sql.DB, rdb *redis.Client) *PostgresStore {
	settings := gobreaker.Settings{
		Name:    "calllog-remote",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &PostgresStore{
		db:      db,
		rdb:     rdb,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		clock:   time.Now,
	}
}

func (s *PostgresStore) ListAll(ctx context.Context, organizationID string) ([]CallRecord, error) {
	out, err := s.breaker.Execute(func() (any, error) {
		return s.list(ctx, organizationID, "")
	})
	if err != nil {
		return nil, err
	}
	return out.([]CallRecord), nil
}

func (s *PostgresStore) ListByClient(ctx context.Context, organizationID, clientID string) ([]CallRecord, error) {
	out, err := s.breaker.Execute(func() (any, error) {
		return s.list(ctx, organizationID, clientID)
	})
	if err != nil {
		return nil, err
	}
	return out.([]CallRecord), nil
}

func (s *PostgresStore) Add(ctx context.Context, rec NewCallRecord) (CallRecord, error) {
	if rec.OrganizationID == "" || rec.ClientID == "" || !ValidOutcome(rec.Outcome) {
		return CallRecord{}, ErrInvalidRecord
	}
	if rec.EndTime != nil && rec.EndTime.Before(rec.StartTime) {
		return CallRecord{}, ErrInvalidRecord
	}

	stored := CallRecord{
		ID:                uuid.NewString(),
		OrganizationID:    rec.OrganizationID,
		ClientID:          rec.ClientID,
		ClientName:        rec.ClientName,
		PhoneNumber:       rec.PhoneNumber,
		StartTime:         rec.StartTime,
		EndTime:           rec.EndTime,
		DurationSeconds:   rec.DurationSeconds,
		Outcome:           rec.Outcome,
		Notes:             rec.Notes,
		FollowUp:          rec.FollowUp,
		FollowUpDate:      rec.FollowUpDate,
		CreatedBy:         rec.CreatedBy,
		Tags:              rec.Tags,
		ProviderSessionID: rec.ProviderSessionID,
	}

	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.insert(ctx, stored)
	})
	if err != nil {
		return CallRecord{}, err
	}

	s.publish(ctx, rec.OrganizationID)
	return stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, organizationID, id string, patch Patch) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.update(ctx, organizationID, id, patch)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, organizationID)
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context, organizationID string) (Stats, error) {
	recs, err := s.ListAll(ctx, organizationID)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(recs, s.clock()), nil
}

// Subscribe listens for change notifications on the organization's channel.
// Requires redis; without it remote subscriptions are unavailable and the
// caller should fall back.
func (s *PostgresStore) Subscribe(ctx context.Context, organizationID string, fn func()) (func(), error) {
	if s.rdb == nil {
		return nil, errors.New("calllog: remote subscriptions require redis")
	}

	sub := s.rdb.Subscribe(ctx, notifyChannel(organizationID))
	// Force the subscription to be established so failures surface here,
	// not silently in the reader goroutine.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		for range sub.Channel() {
			fn()
		}
	}()

	return func() { _ = sub.Close() }, nil
}

func (s *PostgresStore) publish(ctx context.Context, organizationID string) {
	if s.rdb == nil {
		return
	}
	// Best-effort: a missed notification only delays a UI refresh.
	_ = s.rdb.Publish(ctx, notifyChannel(organizationID), "updated").Err()
}

const recordColumns = `
id, organization_id, client_id, client_name, phone_number,
start_time, end_time, duration, outcome, notes,
follow_up, follow_up_date, created_by, tags, provider_session_id
`

func (s *PostgresStore) list(ctx context.Context, organizationID, clientID string) ([]CallRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM call_records WHERE organization_id = $1`
	args := []any{organizationID}
	if clientID != "" {
		q += ` AND client_id = $2`
		args = append(args, clientID)
	}
	q += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) insert(ctx context.Context, rec CallRecord) error {
	const q = `
INSERT INTO call_records (
  id, organization_id, client_id, client_name, phone_number,
  start_time, end_time, duration, outcome, notes,
  follow_up, follow_up_date, created_by, tags, provider_session_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`
	tags, err := marshalTags(rec.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q,
		rec.ID,
		rec.OrganizationID,
		rec.ClientID,
		rec.ClientName,
		rec.PhoneNumber,
		rec.StartTime,
		nullTime(rec.EndTime),
		rec.DurationSeconds,
		string(rec.Outcome),
		rec.Notes,
		rec.FollowUp,
		nullTime(rec.FollowUpDate),
		rec.CreatedBy,
		tags,
		rec.ProviderSessionID,
	)
	return err
}

func (s *PostgresStore) update(ctx context.Context, organizationID, id string, patch Patch) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `SELECT ` + recordColumns + ` FROM call_records
WHERE organization_id = $1 AND id = $2
FOR UPDATE`
		row := tx.QueryRowContext(ctx, sel, organizationID, id)
		rec, err := scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			// Absent id is a no-op, matching the local store.
			return nil
		}
		if err != nil {
			return err
		}

		merged := patch.Apply(rec)
		if !ValidOutcome(merged.Outcome) {
			return ErrInvalidRecord
		}
		if merged.EndTime != nil && merged.EndTime.Before(merged.StartTime) {
			return ErrInvalidRecord
		}

		tags, err := marshalTags(merged.Tags)
		if err != nil {
			return err
		}

		const upd = `
UPDATE call_records
SET end_time = $3, duration = $4, outcome = $5, notes = $6,
    follow_up = $7, follow_up_date = $8, tags = $9, provider_session_id = $10
WHERE organization_id = $1 AND id = $2
`
		_, err = tx.ExecContext(ctx, upd,
			organizationID,
			id,
			nullTime(merged.EndTime),
			merged.DurationSeconds,
			string(merged.Outcome),
			merged.Notes,
			merged.FollowUp,
			nullTime(merged.FollowUpDate),
			tags,
			merged.ProviderSessionID,
		)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (CallRecord, error) {
	var (
		rec          CallRecord
		endTime      sql.NullTime
		followUpDate sql.NullTime
		outcome      string
		tags         sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.OrganizationID,
		&rec.ClientID,
		&rec.ClientName,
		&rec.PhoneNumber,
		&rec.StartTime,
		&endTime,
		&rec.DurationSeconds,
		&outcome,
		&rec.Notes,
		&rec.FollowUp,
		&followUpDate,
		&rec.CreatedBy,
		&tags,
		&rec.ProviderSessionID,
	)
	if err != nil {
		return CallRecord{}, err
	}
	rec.Outcome = Outcome(outcome)
	if endTime.Valid {
		t := endTime.Time
		rec.EndTime = &t
	}
	if followUpDate.Valid {
		t := followUpDate.Time
		rec.FollowUpDate = &t
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &rec.Tags); err != nil {
			return CallRecord{}, err
		}
	}
	return rec, nil
}

func marshalTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
