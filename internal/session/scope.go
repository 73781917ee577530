package session

import (
	"context"
	"errors"
	"fmt"

	"loginsight-backend/internal/model"

	"github.com/rs/zerolog/log"
)

// Scope is the exclusive view of one session handed to WithSession callbacks.
// It must not be retained after the callback returns.
type Scope struct {
	m      *manager
	id     string
	state  *sessionState
	closed bool
}

func (s *Scope) close() {
	s.closed = true
}

func (s *Scope) ID() string {
	return s.id
}

func (s *Scope) Session() model.Session {
	return s.state.meta
}

// Full reports whether the session has reached its turn limit.
func (s *Scope) Full() bool {
	return s.m.maxTurns > 0 && len(s.state.turns) >= s.m.maxTurns
}

// NextSeq is the sequence position the next appended turn will get.
func (s *Scope) NextSeq() int {
	return len(s.state.turns) + 1
}

// Context returns the most recent window turns, oldest first.
func (s *Scope) Context(window int) []model.Turn {
	if window <= 0 {
		return []model.Turn{}
	}
	turns := s.state.turns
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	return out
}

// Append persists a finalized turn, then the updated session meta. The turn is
// written only once it is complete so a crash never leaves a partial record.
func (s *Scope) Append(ctx context.Context, turn *model.Turn) error {
	if s.closed {
		return errors.New("session scope used after release")
	}
	if !turn.Finalized() {
		return fmt.Errorf("turn for session %s is not finalized (status %q)", s.id, turn.Status)
	}
	if s.Full() {
		return ErrSessionFull
	}

	seq := s.NextSeq()
	if turn.Seq != 0 && turn.Seq != seq {
		return fmt.Errorf("turn sequence %d does not follow %d in session %s", turn.Seq, seq-1, s.id)
	}
	record := *turn
	record.Seq = seq
	record.SessionID = s.id

	if err := s.m.putJSON(ctx, turnKey(s.id, seq), record); err != nil {
		return err
	}

	meta := s.state.meta
	meta.TurnCount = seq
	meta.LastActivityAt = record.FinalizedAt
	if meta.LastActivityAt.IsZero() {
		meta.LastActivityAt = s.m.now().UTC()
	}
	if meta.Title == "" {
		meta.Title = titleFrom(record.UserMessage)
	}
	if err := s.m.putJSON(ctx, metaKey(s.id), meta); err != nil {
		if delErr := s.m.kv.Delete(ctx, turnKey(s.id, seq)); delErr != nil {
			log.Warn().Err(delErr).Str("session_id", s.id).Int("seq", seq).
				Msg("Failed to roll back turn after meta write failure")
		}
		return err
	}

	s.state.meta = meta
	s.state.turns = append(s.state.turns, record)
	s.m.mu.Lock()
	s.state.summary = summarize(meta, s.state.turns)
	s.m.mu.Unlock()
	turn.Seq = seq
	turn.SessionID = s.id

	log.Debug().
		Str("session_id", s.id).
		Int("seq", seq).
		Str("status", string(record.Status)).
		Msg("Appended turn")
	return nil
}
