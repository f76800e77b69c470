package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/crmdesk/internal/apperr"
	"github.com/starford/crmdesk/internal/fixtures"
	"github.com/starford/crmdesk/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS leads (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	name    TEXT NOT NULL DEFAULT '',
	email   TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	phone   TEXT NOT NULL DEFAULT '',
	status  TEXT NOT NULL DEFAULT 'New',
	notes   TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS meetings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id     INTEGER NOT NULL REFERENCES leads(id),
	date        TEXT NOT NULL DEFAULT '',
	time        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_meetings_lead ON meetings(lead_id);

CREATE TABLE IF NOT EXISTS messages (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	email     TEXT NOT NULL DEFAULT '',
	subject   TEXT NOT NULL DEFAULT '',
	content   TEXT NOT NULL DEFAULT '',
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite is a Source backed by a SQLite database. The meetings.lead_id
// foreign key keeps meetings from being orphaned.
type SQLite struct {
	conn *sql.DB
}

var _ Source = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("source: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("source: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("source: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// SeedIfEmpty loads set into the database when it holds no leads yet.
// Fixture ids are kept so meeting references stay valid.
func (s *SQLite) SeedIfEmpty(ctx context.Context, set *fixtures.Set) (bool, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM leads`).Scan(&n); err != nil {
		return false, fmt.Errorf("source: count leads: %w", err)
	}
	if n > 0 || set == nil {
		return false, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("source: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, l := range set.Leads {
		notes, _ := json.Marshal(nonNil(l.Notes))
		id := any(nil)
		if l.ID != 0 {
			id = l.ID
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO leads (id, name, email, company, phone, status, notes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, l.Name, l.Email, l.Company, l.Phone, string(l.Status), string(notes))
		if err != nil {
			return false, fmt.Errorf("source: seed lead: %w", err)
		}
		leadID, _ := res.LastInsertId()
		for _, m := range l.Meetings {
			mid := any(nil)
			if m.ID != 0 {
				mid = m.ID
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO meetings (id, lead_id, date, time, description) VALUES (?, ?, ?, ?, ?)`,
				mid, leadID, m.Date, m.Time, m.Description); err != nil {
				return false, fmt.Errorf("source: seed meeting: %w", err)
			}
		}
	}
	for _, m := range set.Messages {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, email, subject, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
			id, m.Email, m.Subject, m.Content, m.Timestamp.UTC()); err != nil {
			return false, fmt.Errorf("source: seed message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("source: commit seed: %w", err)
	}
	return true, nil
}

// GetLeads returns every lead with its meetings, ordered by id.
func (s *SQLite) GetLeads(ctx context.Context) ([]models.Lead, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, email, company, phone, status, notes FROM leads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("source: get leads: %w", err)
	}
	defer rows.Close()

	var out []models.Lead
	byID := make(map[int]int)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		byID[l.ID] = len(out)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := s.conn.QueryContext(ctx,
		`SELECT id, lead_id, date, time, description FROM meetings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("source: get meetings: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var m models.Meeting
		if err := mrows.Scan(&m.ID, &m.LeadID, &m.Date, &m.Time, &m.Description); err != nil {
			return nil, err
		}
		if i, ok := byID[m.LeadID]; ok {
			out[i].Meetings = append(out[i].Meetings, m)
		}
	}
	return out, mrows.Err()
}

// GetLead returns one lead with its meetings.
func (s *SQLite) GetLead(ctx context.Context, id int) (models.Lead, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, name, email, company, phone, status, notes FROM leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lead{}, fmt.Errorf("source: lead %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Lead{}, err
	}
	l.Meetings, err = s.meetings(ctx, s.conn, id)
	if err != nil {
		return models.Lead{}, err
	}
	return l, nil
}

// CreateLead inserts a lead and any meetings supplied with it.
func (s *SQLite) CreateLead(ctx context.Context, in models.LeadInput) (models.Lead, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Lead{}, fmt.Errorf("source: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	notes, _ := json.Marshal(nonNil(in.Notes))
	res, err := tx.ExecContext(ctx,
		`INSERT INTO leads (name, email, company, phone, status, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Email, in.Company, in.Phone, string(in.Status), string(notes))
	if err != nil {
		return models.Lead{}, fmt.Errorf("source: insert lead: %w", err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return models.Lead{}, fmt.Errorf("source: lead id: %w", err)
	}
	id := int(id64)
	for _, m := range in.Meetings {
		if _, err := insertMeeting(ctx, tx, id, m.Date, m.Time, m.Description); err != nil {
			return models.Lead{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Lead{}, fmt.Errorf("source: commit: %w", err)
	}
	return s.GetLead(ctx, id)
}

// UpdateLead replaces a lead's fields, notes and meetings.
func (s *SQLite) UpdateLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Lead{}, fmt.Errorf("source: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	notes, _ := json.Marshal(nonNil(lead.Notes))
	res, err := tx.ExecContext(ctx,
		`UPDATE leads SET name = ?, email = ?, company = ?, phone = ?, status = ?, notes = ? WHERE id = ?`,
		lead.Name, lead.Email, lead.Company, lead.Phone, string(lead.Status), string(notes), lead.ID)
	if err != nil {
		return models.Lead{}, fmt.Errorf("source: update lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Lead{}, fmt.Errorf("source: lead %d: %w", lead.ID, apperr.ErrNotFound)
	}

	// Replace meetings. An id is kept only when it already belongs to this
	// lead; anything else gets a fresh one.
	existing, err := s.meetings(ctx, tx, lead.ID)
	if err != nil {
		return models.Lead{}, err
	}
	owned := make(map[int]bool, len(existing))
	for _, m := range existing {
		owned[m.ID] = true
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meetings WHERE lead_id = ?`, lead.ID); err != nil {
		return models.Lead{}, fmt.Errorf("source: clear meetings: %w", err)
	}
	for _, m := range lead.Meetings {
		if !owned[m.ID] {
			if _, err := insertMeeting(ctx, tx, lead.ID, m.Date, m.Time, m.Description); err != nil {
				return models.Lead{}, err
			}
			continue
		}
		delete(owned, m.ID)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meetings (id, lead_id, date, time, description) VALUES (?, ?, ?, ?, ?)`,
			m.ID, lead.ID, m.Date, m.Time, m.Description); err != nil {
			return models.Lead{}, fmt.Errorf("source: insert meeting: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Lead{}, fmt.Errorf("source: commit: %w", err)
	}
	return s.GetLead(ctx, lead.ID)
}

// AddNote appends a note to a lead.
func (s *SQLite) AddNote(ctx context.Context, leadID int, note string) error {
	l, err := s.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	notes, _ := json.Marshal(append(nonNil(l.Notes), note))
	if _, err := s.conn.ExecContext(ctx, `UPDATE leads SET notes = ? WHERE id = ?`, string(notes), leadID); err != nil {
		return fmt.Errorf("source: add note: %w", err)
	}
	return nil
}

// GetMeetings returns the meetings of one lead.
func (s *SQLite) GetMeetings(ctx context.Context, leadID int) ([]models.Meeting, error) {
	if _, err := s.GetLead(ctx, leadID); err != nil {
		return nil, err
	}
	return s.meetings(ctx, s.conn, leadID)
}

// CreateMeeting schedules a meeting under an existing lead.
func (s *SQLite) CreateMeeting(ctx context.Context, leadID int, in models.MeetingInput) (models.Meeting, error) {
	if _, err := s.GetLead(ctx, leadID); err != nil {
		return models.Meeting{}, err
	}
	id, err := insertMeeting(ctx, s.conn, leadID, in.Date, in.Time, in.Description)
	if err != nil {
		return models.Meeting{}, err
	}
	return models.Meeting{ID: id, LeadID: leadID, Date: in.Date, Time: in.Time, Description: in.Description}, nil
}

// UpdateMeeting replaces a meeting's fields.
func (s *SQLite) UpdateMeeting(ctx context.Context, m models.Meeting) (models.Meeting, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE meetings SET date = ?, time = ?, description = ? WHERE id = ? AND lead_id = ?`,
		m.Date, m.Time, m.Description, m.ID, m.LeadID)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("source: update meeting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Meeting{}, fmt.Errorf("source: meeting %d: %w", m.ID, apperr.ErrNotFound)
	}
	return m, nil
}

// GetMessages returns every message in insertion order.
func (s *SQLite) GetMessages(ctx context.Context) ([]models.Message, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, email, subject, content, timestamp FROM messages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("source: get messages: %w", err)
	}
	defer rows.Close()
	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Email, &m.Subject, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMessage inserts a message with a fresh id.
func (s *SQLite) CreateMessage(ctx context.Context, in models.MessageInput) (models.Message, error) {
	m := models.Message{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Subject:   in.Subject,
		Content:   in.Content,
		Timestamp: in.Timestamp.UTC(),
	}
	if _, err := s.conn.ExecContext(ctx,
		`INSERT INTO messages (id, email, subject, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Email, m.Subject, m.Content, m.Timestamp); err != nil {
		return models.Message{}, fmt.Errorf("source: insert message: %w", err)
	}
	return m, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (models.Lead, error) {
	var (
		l      models.Lead
		status string
		notes  string
	)
	if err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Company, &l.Phone, &status, &notes); err != nil {
		return models.Lead{}, err
	}
	l.Status = models.LeadStatus(status)
	if err := json.Unmarshal([]byte(notes), &l.Notes); err != nil {
		return models.Lead{}, fmt.Errorf("source: decode notes for lead %d: %w", l.ID, err)
	}
	l.Notes = nonNil(l.Notes)
	l.Meetings = []models.Meeting{}
	return l, nil
}

func (s *SQLite) meetings(ctx context.Context, q execer, leadID int) ([]models.Meeting, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, lead_id, date, time, description FROM meetings WHERE lead_id = ? ORDER BY id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("source: meetings: %w", err)
	}
	defer rows.Close()
	out := []models.Meeting{}
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.LeadID, &m.Date, &m.Time, &m.Description); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func insertMeeting(ctx context.Context, q execer, leadID int, date, tm, desc string) (int, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO meetings (lead_id, date, time, description) VALUES (?, ?, ?, ?)`,
		leadID, date, tm, desc)
	if err != nil {
		return 0, fmt.Errorf("source: insert meeting: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("source: meeting id: %w", err)
	}
	return int(id), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
