package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step is one executed-and-recorded plan iteration. Owned exclusively by
// SessionMemory and never mutated after append.
type Step struct {
	StepNum     int                    `json:"step_num"`
	Timestamp   time.Time              `json:"timestamp"`
	Thought     string                 `json:"thought"`
	Action      string                 `json:"action"`
	ActionInput map[string]interface{} `json:"action_input"`
	Observation string                 `json:"observation"`
	Reasoning   string                 `json:"reasoning"`
}

// SessionRecord is the lossless structured snapshot of one session, the first
// of the two persisted artifacts (the second is the rendered trace).
type SessionRecord struct {
	SessionID   string                            `json:"session_id"`
	UserQuery   string                            `json:"user_query"`
	ProteinPDB  string                            `json:"protein_pdb,omitempty"`
	LigandSDF   string                            `json:"ligand_sdf,omitempty"`
	Status      string                            `json:"status,omitempty"`
	StartTime   time.Time                         `json:"start_time"`
	Steps       []Step                            `json:"steps"`
	FinalAnswer string                            `json:"final_answer"`
	TotalTime   float64                           `json:"total_time"`
	Plan        *Plan                             `json:"plan,omitempty"`
	Results     map[string]map[string]interface{} `json:"results,omitempty"`
}

// SessionMemory is the append-only record of one run. Steps arrive strictly
// in execution order with contiguous 1-based numbering; the final answer is
// set at most once.
type SessionMemory struct {
	mu          sync.RWMutex
	sessionID   string
	userQuery   string
	startTime   time.Time
	steps       []Step
	finalAnswer string
	answerSet   bool
	totalTime   time.Duration
}

// NewSessionMemory starts memory for a fresh session. Session IDs are the
// first eight characters of a v4 UUID, short enough for log lines and file
// names while unique enough for one deployment's history.
func NewSessionMemory(userQuery string) *SessionMemory {
	return &SessionMemory{
		sessionID: uuid.New().String()[:8],
		userQuery: userQuery,
		startTime: time.Now(),
	}
}

// NewSessionMemoryWithID starts memory for a session whose identifier was
// assigned by the caller. An empty id falls back to a generated one.
func NewSessionMemoryWithID(sessionID, userQuery string) *SessionMemory {
	m := NewSessionMemory(userQuery)
	if sessionID != "" {
		m.sessionID = sessionID
	}
	return m
}

// SessionID returns the session's opaque identifier.
func (m *SessionMemory) SessionID() string { return m.sessionID }

// UserQuery returns the query the session was started for.
func (m *SessionMemory) UserQuery() string { return m.userQuery }

// StartTime returns when the session began.
func (m *SessionMemory) StartTime() time.Time { return m.startTime }

// AddStep appends a step. The step number must equal the previous one plus
// one; anything else is rejected so the trace can never reorder or gap.
func (m *SessionMemory) AddStep(step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if want := len(m.steps) + 1; step.StepNum != want {
		return fmt.Errorf("step_num %d out of order, want %d", step.StepNum, want)
	}
	if strings.TrimSpace(step.Observation) == "" {
		return fmt.Errorf("step %d: empty observation", step.StepNum)
	}
	m.steps = append(m.steps, step)
	return nil
}

// Steps returns a copy of the recorded steps in execution order.
func (m *SessionMemory) Steps() []Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Step, len(m.steps))
	copy(out, m.steps)
	return out
}

// StepCount returns how many steps have been recorded.
func (m *SessionMemory) StepCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.steps)
}

// SetFinalAnswer records the session's answer. A second call is rejected.
func (m *SessionMemory) SetFinalAnswer(answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answerSet {
		return fmt.Errorf("final answer already set")
	}
	m.finalAnswer = answer
	m.answerSet = true
	return nil
}

// FinalAnswer returns the recorded answer, empty until SetFinalAnswer.
func (m *SessionMemory) FinalAnswer() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.finalAnswer
}

// Finalize stamps the session's total wall-clock time.
func (m *SessionMemory) Finalize(total time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalTime = total
}

// TotalTime returns the stamped wall-clock duration.
func (m *SessionMemory) TotalTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalTime
}

// RenderTrace renders the human-readable trace: a header, one block per step
// and the final answer when set. Pure with respect to memory state, so
// repeated calls yield identical text.
func (m *SessionMemory) RenderTrace() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := []string{
		fmt.Sprintf("Session: %s", m.sessionID),
		fmt.Sprintf("Query: %s", m.userQuery),
		fmt.Sprintf("Started: %s", m.startTime.Format(time.RFC3339)),
		"\n" + strings.Repeat("=", 70),
	}
	for _, step := range m.steps {
		input, err := json.MarshalIndent(step.ActionInput, "", "  ")
		if err != nil {
			input = []byte("{}")
		}
		lines = append(lines,
			fmt.Sprintf("\nSTEP %d:", step.StepNum),
			fmt.Sprintf("Thought: %s", step.Thought),
			fmt.Sprintf("Action: %s", step.Action),
			fmt.Sprintf("Input: %s", input),
			fmt.Sprintf("Observation: %s", step.Observation),
			fmt.Sprintf("Reasoning: %s", step.Reasoning),
			strings.Repeat("-", 70),
		)
	}
	if m.finalAnswer != "" {
		lines = append(lines, "\nFINAL ANSWER:", m.finalAnswer)
	}
	return strings.Join(lines, "\n")
}

// Snapshot produces the structured record for persistence. The caller
// enriches it with plan, results and terminal status before saving.
func (m *SessionMemory) Snapshot() SessionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	steps := make([]Step, len(m.steps))
	copy(steps, m.steps)
	return SessionRecord{
		SessionID:   m.sessionID,
		UserQuery:   m.userQuery,
		StartTime:   m.startTime,
		Steps:       steps,
		FinalAnswer: m.finalAnswer,
		TotalTime:   m.totalTime.Seconds(),
	}
}
