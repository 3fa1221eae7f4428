package convstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/corebridge/agentcore/pkg/orchestrator"
)

// querier is the subset of *sql.DB / *sql.Tx the helpers below need,
// so AppendTurn's insert, touch, and retention-elision all run inside
// one transaction instead of three independently-committed statements.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AppendTurn inserts one turn row, serialized per session so
// concurrent appends to the same session never interleave (spec.md
// §4.9 "append_turn must be linearizable per session"). Appends
// across different sessions proceed without contending on this lock.
// The insert, the session touch, and retention elision all run inside
// one transaction: a crash between them must never leave a turn
// recorded without its session timestamp bumped, or a half-applied
// elision.
//
// The turn_number assigned to this row (the caller's turn.TurnNumber
// is advisory only; this per-session sequence is authoritative) is
// returned so the caller can hand it back to whoever is waiting on
// the answer.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, turn orchestrator.Turn) (int, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	recordsJSON, err := json.Marshal(turn.Records)
	if err != nil {
		return 0, fmt.Errorf("convstore: marshal records: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("convstore: begin transaction: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.nextSequence(ctx, tx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("convstore: next sequence: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO turns (session_id, turn_number, user_message, assistant_message, records_json, is_summary, started_at, completed_at, sequence_num)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
		s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9),
	)
	_, err = tx.ExecContext(ctx, query,
		sessionID, seq, turn.UserMessage, turn.AssistantMessage, string(recordsJSON),
		false, turn.StartedAt, turn.CompletedAt, seq,
	)
	if err != nil {
		return 0, fmt.Errorf("convstore: insert turn: %w", err)
	}

	if err := s.touchSession(ctx, tx, sessionID); err != nil {
		return 0, fmt.Errorf("convstore: touch session: %w", err)
	}

	if err := s.elideIfOverRetention(ctx, tx, sessionID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("convstore: commit turn: %w", err)
	}
	return int(seq), nil
}

// RecentTurns returns the last n turns for a session in chronological
// order (spec.md §4.9 `recent_turns(session_id, n)`).
func (s *Store) RecentTurns(ctx context.Context, sessionID string, n int) ([]orchestrator.Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT turn_number, user_message, assistant_message, records_json, started_at, completed_at
		 FROM turns WHERE session_id = %s ORDER BY sequence_num DESC LIMIT %s`,
		s.placeholder(1), s.placeholder(2),
	)
	rows, err := s.db.QueryContext(ctx, query, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("convstore: query recent turns: %w", err)
	}
	defer rows.Close()

	var reversed []orchestrator.Turn
	for rows.Next() {
		var t orchestrator.Turn
		var recordsJSON string
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&t.TurnNumber, &t.UserMessage, &t.AssistantMessage, &recordsJSON, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("convstore: scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(recordsJSON), &t.Records); err != nil {
			return nil, fmt.Errorf("convstore: unmarshal records: %w", err)
		}
		t.StartedAt = startedAt.Time
		t.CompletedAt = completedAt.Time
		reversed = append(reversed, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	turns := make([]orchestrator.Turn, len(reversed))
	for i, t := range reversed {
		turns[len(reversed)-1-i] = t
	}
	return turns, nil
}

func (s *Store) nextSequence(ctx context.Context, q querier, sessionID string) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM turns WHERE session_id = %s`, s.placeholder(1))
	var seq int64
	if err := q.QueryRowContext(ctx, query, sessionID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) touchSession(ctx context.Context, q querier, sessionID string) error {
	query := fmt.Sprintf(`UPDATE sessions SET updated_at = %s WHERE id = %s`, s.placeholder(1), s.placeholder(2))
	_, err := q.ExecContext(ctx, query, time.Now(), sessionID)
	return err
}

// elideIfOverRetention collapses the oldest turns into one synthetic
// summary turn once a session exceeds maxTurnsRetained, bounding the
// history the orchestrator splices into context (spec.md's
// `max_turns_retained` design note).
func (s *Store) elideIfOverRetention(ctx context.Context, q querier, sessionID string) error {
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM turns WHERE session_id = %s`, s.placeholder(1))
	var count int
	if err := q.QueryRowContext(ctx, countQuery, sessionID).Scan(&count); err != nil {
		return err
	}
	if count <= s.maxTurnsRetained {
		return nil
	}

	overflow := count - (s.maxTurnsRetained - 1)
	selectQuery := fmt.Sprintf(
		`SELECT id, user_message, assistant_message, sequence_num FROM turns WHERE session_id = %s ORDER BY sequence_num ASC LIMIT %s`,
		s.placeholder(1), s.placeholder(2),
	)
	rows, err := q.QueryContext(ctx, selectQuery, sessionID, overflow)
	if err != nil {
		return err
	}

	var ids []int64
	var minSeq int64
	var summary strings.Builder
	summary.WriteString("Earlier in this conversation:\n")
	for rows.Next() {
		var id, seq int64
		var userMsg, assistantMsg string
		if err := rows.Scan(&id, &userMsg, &assistantMsg, &seq); err != nil {
			rows.Close()
			return err
		}
		if minSeq == 0 || seq < minSeq {
			minSeq = seq
		}
		ids = append(ids, id)
		fmt.Fprintf(&summary, "- user asked: %s\n  assistant answered: %s\n", truncate(userMsg, 200), truncate(assistantMsg, 200))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = s.placeholder(i + 1)
		args[i] = id
	}
	deleteQuery := fmt.Sprintf(`DELETE FROM turns WHERE id IN (%s)`, strings.Join(placeholders, ", "))
	if _, err := q.ExecContext(ctx, deleteQuery, args...); err != nil {
		return err
	}

	insertQuery := fmt.Sprintf(
		`INSERT INTO turns (session_id, turn_number, user_message, assistant_message, records_json, is_summary, started_at, completed_at, sequence_num)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
		s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9),
	)
	now := time.Now()
	_, err = q.ExecContext(ctx, insertQuery,
		sessionID, 0, summary.String(), "", "[]", true, now, now, minSeq,
	)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
