package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	core "github.com/mohammad-safakhou/dockagent/internal/agent/core"
)

// Store persists docking sessions in Postgres. It implements core.Storage
// for the orchestrator's write path and carries the read side the HTTP API
// serves from. Schema lives in migrations/.
type Store struct {
	DB *sql.DB
}

// New wraps an already-open database handle.
func New(db *sql.DB) *Store { return &Store{DB: db} }

// NewWithDSN opens a Postgres connection and verifies it before returning.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Session write path (core.Storage)

// CreateSession registers a fresh session row. Re-registering the same id is
// a no-op so a retried request cannot clobber an in-flight run.
func (s *Store) CreateSession(ctx context.Context, rec core.SessionRecord) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO sessions (id, query, protein, ligand, status, progress, created_at)
VALUES ($1,$2,$3,$4,$5,0,$6)
ON CONFLICT (id) DO NOTHING
`, rec.SessionID, rec.UserQuery, rec.ProteinPDB, rec.LigandSDF, rec.Status, rec.StartTime)
	return err
}

func (s *Store) UpdateStatus(ctx context.Context, sessionID, status string, progress float64) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE sessions SET status=$2, progress=$3 WHERE id=$1`, sessionID, status, progress)
	return err
}

// AppendStep records one executed step. (session_id, step_num) is unique;
// a duplicate append is dropped rather than erroring so the orchestrator's
// retry-on-warn logging stays harmless.
func (s *Store) AppendStep(ctx context.Context, sessionID string, step core.Step) error {
	input, err := json.Marshal(step.ActionInput)
	if err != nil {
		return fmt.Errorf("marshal action input: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO session_steps (session_id, step_num, thought, action, action_input, observation, reasoning, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (session_id, step_num) DO NOTHING
`, sessionID, step.StepNum, step.Thought, step.Action, input, step.Observation, step.Reasoning, step.Timestamp)
	return err
}

func (s *Store) SaveRefinement(ctx context.Context, sessionID string, rec core.RefinementRecord) error {
	proposal, err := json.Marshal(rec.Plan)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	concerns, err := json.Marshal(rec.ConcernsAddressed)
	if err != nil {
		return fmt.Errorf("marshal concerns: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO refinements (session_id, after_step, proposal, executed, concerns, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
`, sessionID, rec.AfterStep, proposal, rec.Executed, concerns)
	return err
}

// SaveSession writes the two terminal artifacts in one transaction: the
// structured record upserted over the sessions row, and the rendered trace.
// Upsert rather than update so the record survives even when the initial
// CreateSession was lost to a transient outage.
func (s *Store) SaveSession(ctx context.Context, rec core.SessionRecord, trace string) (err error) {
	planJSON, err := json.Marshal(rec.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	resultsJSON, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	strategy := ""
	if rec.Plan != nil {
		strategy = rec.Plan.Strategy
	}
	totalMS := int64(rec.TotalTime * 1000)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO sessions (id, query, protein, ligand, status, progress, strategy, plan, results, final_answer, total_time_ms, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5,1,$6,$7,$8,$9,$10,$11,NOW())
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  strategy = EXCLUDED.strategy,
  plan = EXCLUDED.plan,
  results = EXCLUDED.results,
  final_answer = EXCLUDED.final_answer,
  total_time_ms = EXCLUDED.total_time_ms,
  completed_at = EXCLUDED.completed_at
`, rec.SessionID, rec.UserQuery, rec.ProteinPDB, rec.LigandSDF, rec.Status, strategy, planJSON, resultsJSON, rec.FinalAnswer, totalMS, rec.StartTime); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
INSERT INTO session_traces (session_id, trace) VALUES ($1,$2)
ON CONFLICT (session_id) DO UPDATE SET trace = EXCLUDED.trace
`, rec.SessionID, trace); err != nil {
		return err
	}

	return tx.Commit()
}

// Session read path

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	SessionID   string     `json:"session_id"`
	Query       string     `json:"query"`
	Status      string     `json:"status"`
	Progress    float64    `json:"progress"`
	Strategy    string     `json:"strategy,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepRow is one persisted step of a session.
type StepRow struct {
	StepNum     int             `json:"step_num"`
	Thought     string          `json:"thought"`
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input"`
	Observation string          `json:"observation"`
	Reasoning   string          `json:"reasoning"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SessionDetail is the full persisted record of one session.
type SessionDetail struct {
	SessionSummary
	Protein     string          `json:"protein,omitempty"`
	Ligand      string          `json:"ligand,omitempty"`
	Plan        json.RawMessage `json:"plan,omitempty"`
	Results     json.RawMessage `json:"results,omitempty"`
	FinalAnswer string          `json:"final_answer"`
	TotalTimeMS int64           `json:"total_time_ms"`
	Steps       []StepRow       `json:"steps"`
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, query, status, progress, strategy, created_at, completed_at
FROM sessions ORDER BY created_at DESC LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionSummary
	for rows.Next() {
		var row SessionSummary
		if err := rows.Scan(&row.SessionID, &row.Query, &row.Status, &row.Progress, &row.Strategy, &row.CreatedAt, &row.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetSession fetches one session with its steps. The second return reports
// whether the session exists.
func (s *Store) GetSession(ctx context.Context, sessionID string) (SessionDetail, bool, error) {
	var d SessionDetail
	err := s.DB.QueryRowContext(ctx, `
SELECT id, query, protein, ligand, status, progress, strategy, plan, results, final_answer, total_time_ms, created_at, completed_at
FROM sessions WHERE id=$1
`, sessionID).Scan(&d.SessionID, &d.Query, &d.Protein, &d.Ligand, &d.Status, &d.Progress, &d.Strategy,
		&d.Plan, &d.Results, &d.FinalAnswer, &d.TotalTimeMS, &d.CreatedAt, &d.CompletedAt)
	if err == sql.ErrNoRows {
		return SessionDetail{}, false, nil
	}
	if err != nil {
		return SessionDetail{}, false, err
	}

	rows, err := s.DB.QueryContext(ctx, `
SELECT step_num, thought, action, action_input, observation, reasoning, created_at
FROM session_steps WHERE session_id=$1 ORDER BY step_num
`, sessionID)
	if err != nil {
		return SessionDetail{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var st StepRow
		if err := rows.Scan(&st.StepNum, &st.Thought, &st.Action, &st.ActionInput, &st.Observation, &st.Reasoning, &st.CreatedAt); err != nil {
			return SessionDetail{}, false, err
		}
		d.Steps = append(d.Steps, st)
	}
	return d, true, rows.Err()
}

// GetTrace fetches the rendered text trace for a session.
func (s *Store) GetTrace(ctx context.Context, sessionID string) (string, bool, error) {
	var trace string
	err := s.DB.QueryRowContext(ctx, `SELECT trace FROM session_traces WHERE session_id=$1`, sessionID).Scan(&trace)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return trace, true, nil
}

// MarkStaleSessions aborts sessions that have sat in a non-terminal status
// since before the cutoff. Used by the janitor; returns how many rows moved.
func (s *Store) MarkStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
UPDATE sessions SET status=$1, progress=1, completed_at=NOW()
WHERE status NOT IN ($1,$2) AND created_at < $3
`, core.StatusAborted, core.StatusFinished, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
