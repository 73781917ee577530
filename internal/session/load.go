package session

import (
	"context"

	"loginsight-backend/internal/model"

	"github.com/rs/zerolog/log"
)

// Load rebuilds the in-memory registry from the key-value backend. Turns are
// read past the recorded count to pick up one written before its meta update.
func (m *manager) Load(ctx context.Context) error {
	var index []string
	if _, err := m.getJSON(ctx, indexKey, &index); err != nil {
		return err
	}

	sessions := make(map[string]*sessionState, len(index))
	live := make([]string, 0, len(index))
	recovered := 0
	for _, id := range index {
		var meta model.Session
		found, err := m.getJSON(ctx, metaKey(id), &meta)
		if err != nil {
			return err
		}
		if !found {
			log.Warn().Str("session_id", id).Msg("Session listed in index has no meta, skipping")
			continue
		}

		st := &sessionState{meta: meta}
		for seq := 1; ; seq++ {
			var turn model.Turn
			found, err := m.getJSON(ctx, turnKey(id, seq), &turn)
			if err != nil {
				return err
			}
			if !found {
				break
			}
			st.turns = append(st.turns, turn)
		}

		if n := len(st.turns); n != meta.TurnCount {
			log.Warn().
				Str("session_id", id).
				Int("meta_turns", meta.TurnCount).
				Int("stored_turns", n).
				Msg("Repairing session meta from stored turns")
			st.meta.TurnCount = n
			if n > 0 && st.turns[n-1].FinalizedAt.After(st.meta.LastActivityAt) {
				st.meta.LastActivityAt = st.turns[n-1].FinalizedAt
			}
			if err := m.putJSON(ctx, metaKey(id), st.meta); err != nil {
				return err
			}
			recovered++
		}
		st.summary = summarize(st.meta, st.turns)
		sessions[id] = st
		live = append(live, id)
	}

	m.indexMu.Lock()
	m.index = live
	m.indexMu.Unlock()

	m.mu.Lock()
	m.sessions = sessions
	m.mu.Unlock()

	log.Info().Int("sessions", len(sessions)).Int("repaired", recovered).Msg("Loaded sessions from store")
	return nil
}
