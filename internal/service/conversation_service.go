package service

import (
	"context"
	"errors"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/chart"
	"loginsight-backend/internal/elasticsearch"
	"loginsight-backend/internal/kafka"
	"loginsight-backend/internal/model"
	"loginsight-backend/internal/normalizer"
	"loginsight-backend/internal/session"
	"loginsight-backend/internal/translator"

	"github.com/rs/zerolog/log"
)

// Turn states, logged on every transition.
const (
	stateReceived          = "received"
	stateTranslating       = "translating"
	stateTranslated        = "translated"
	stateTranslationFailed = "translation_failed"
	stateExecuting         = "executing"
	stateExecuted          = "executed"
	stateExecutionFailed   = "execution_failed"
	stateNormalizing       = "normalizing"
	stateNormalized        = "normalized"
	stateShapeFailed       = "shape_failed"
	stateRendering         = "rendering"
	stateRendered          = "rendered"
	stateRenderFailed      = "render_failed"
	stateFinalized         = "finalized"
)

const publishTimeout = 5 * time.Second

// ConversationService runs one user message through translation, execution,
// normalization and rendering, and appends the resulting turn.
type ConversationService interface {
	// HandleMessage always returns the turn it finalized. The error is non-nil
	// only when the turn could not be recorded.
	HandleMessage(ctx context.Context, sessionID, text string, kind model.ChartKind) (*model.Turn, error)
	// PreviewChart renders a stored turn's table with another kind. The turn is not changed.
	PreviewChart(ctx context.Context, sessionID string, seq int, kind model.ChartKind) (*model.ChartSpec, error)
}

type conversationService struct {
	sessions      session.Manager
	translator    translator.Translator
	executor      elasticsearch.Executor
	normalizer    normalizer.Normalizer
	renderer      chart.Renderer
	publisher     kafka.TurnPublisher
	contextWindow int
	now           func() time.Time
}

func NewConversationService(
	cfg *config.Config,
	sessions session.Manager,
	tr translator.Translator,
	executor elasticsearch.Executor,
	norm normalizer.Normalizer,
	renderer chart.Renderer,
	publisher kafka.TurnPublisher,
) ConversationService {
	return &conversationService{
		sessions:      sessions,
		translator:    tr,
		executor:      executor,
		normalizer:    norm,
		renderer:      renderer,
		publisher:     publisher,
		contextWindow: cfg.Translator.ContextWindow,
		now:           time.Now,
	}
}

func (s *conversationService) HandleMessage(ctx context.Context, sessionID, text string, kind model.ChartKind) (*model.Turn, error) {
	// A started unit runs to a terminal state even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	var turn *model.Turn
	err := s.sessions.WithSession(ctx, sessionID, func(scope *session.Scope) error {
		if scope.Full() {
			return session.ErrSessionFull
		}
		turn = s.process(ctx, scope.ID(), scope.NextSeq(), text, kind, scope.Context(s.contextWindow))

		if err := scope.Append(ctx, turn); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Int("seq", turn.Seq).Msg("Failed to append turn")
			if errors.Is(err, session.ErrSessionFull) {
				return err
			}
			if model.KindOf(err) == "" {
				err = model.PersistenceError(err, "append turn to session %s", sessionID)
			}
			turn.Status = model.TurnFailed
			turn.Error = &model.TurnError{Kind: model.KindPersistence, Stage: "append", Message: causeOf(err)}
			turn.Chart = nil
			return err
		}
		return nil
	})
	if err != nil {
		if turn != nil && model.IsKind(err, model.KindPersistence) {
			return turn, err
		}
		return nil, err
	}

	s.publish(ctx, turn)
	return turn, nil
}

// process drives the state machine for one message. It never returns an
// unfinalized turn.
func (s *conversationService) process(ctx context.Context, sessionID string, seq int, text string, kind model.ChartKind, history []model.Turn) *model.Turn {
	turn := &model.Turn{
		Seq:         seq,
		SessionID:   sessionID,
		UserMessage: text,
		Status:      model.TurnPending,
		CreatedAt:   s.now().UTC(),
	}
	transition := func(state string) {
		log.Info().Str("session_id", sessionID).Int("seq", seq).Str("state", state).Msg("Turn state changed")
	}
	fail := func(state, stage string, err error) *model.Turn {
		transition(state)
		errKind := model.KindOf(err)
		if errKind == "" {
			errKind = stageKinds[stage]
		}
		log.Warn().Err(err).Str("session_id", sessionID).Int("seq", seq).Str("kind", string(errKind)).Msg("Turn failed")
		turn.Status = model.TurnFailed
		turn.Error = &model.TurnError{Kind: errKind, Stage: stage, Message: causeOf(err)}
		return s.finalize(turn, transition)
	}

	transition(stateReceived)

	transition(stateTranslating)
	req, err := s.translator.Translate(ctx, text, history)
	if err != nil {
		return fail(stateTranslationFailed, "translate", err)
	}
	turn.Query = req
	transition(stateTranslated)

	transition(stateExecuting)
	raw, err := s.executor.Execute(ctx, req)
	if err != nil {
		return fail(stateExecutionFailed, "execute", err)
	}
	turn.RawResult = raw.Ref()
	transition(stateExecuted)

	transition(stateNormalizing)
	table, err := s.normalizer.Normalize(raw, req.ExpectedShape())
	if err != nil {
		return fail(stateShapeFailed, "normalize", err)
	}
	turn.Table = table
	transition(stateNormalized)

	transition(stateRendering)
	if kind == "" {
		kind = s.renderer.Recommend(table)
	}
	spec, err := s.renderer.Render(table, kind, chart.Hints{})
	if err != nil {
		return fail(stateRenderFailed, "render", err)
	}
	turn.Chart = spec
	transition(stateRendered)

	turn.Status = model.TurnSucceeded
	return s.finalize(turn, transition)
}

var stageKinds = map[string]model.ErrorKind{
	"translate": model.KindTranslation,
	"execute":   model.KindExecution,
	"normalize": model.KindShape,
	"render":    model.KindIncompatibleChart,
}

// causeOf is the human-readable part of err, without the kind prefix.
func causeOf(err error) string {
	var e *model.Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	return err.Error()
}

func (s *conversationService) finalize(turn *model.Turn, transition func(string)) *model.Turn {
	turn.FinalizedAt = s.now().UTC()
	transition(stateFinalized)
	return turn
}

func (s *conversationService) publish(ctx context.Context, turn *model.Turn) {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, model.NewTurnEvent(*turn)); err != nil {
		log.Warn().Err(err).Str("session_id", turn.SessionID).Int("seq", turn.Seq).Msg("Failed to publish turn audit event")
	}
}

func (s *conversationService) PreviewChart(ctx context.Context, sessionID string, seq int, kind model.ChartKind) (*model.ChartSpec, error) {
	turn, err := s.sessions.GetTurn(ctx, sessionID, seq)
	if err != nil {
		return nil, err
	}
	if turn.Table == nil {
		return nil, model.IncompatibleChartError("turn %d has no result table to chart", seq)
	}
	if kind == "" {
		kind = s.renderer.Recommend(turn.Table)
	}
	return s.renderer.Render(turn.Table, kind, chart.Hints{})
}
