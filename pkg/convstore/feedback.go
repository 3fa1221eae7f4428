package convstore

import (
	"context"
	"fmt"
	"time"
)

// SubmitFeedback records a caller's rating of one turn (spec.md
// [FULL] supplement: `submit_feedback(session_id, turn_number,
// rating, comment)`, grounded on the original feedback repository).
func (s *Store) SubmitFeedback(ctx context.Context, sessionID string, turnNumber, rating int, comment string) error {
	query := fmt.Sprintf(
		`INSERT INTO feedback (session_id, turn_number, rating, comment, created_at) VALUES (%s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
	)
	_, err := s.db.ExecContext(ctx, query, sessionID, turnNumber, rating, comment, time.Now())
	if err != nil {
		return fmt.Errorf("convstore: insert feedback: %w", err)
	}
	return nil
}
