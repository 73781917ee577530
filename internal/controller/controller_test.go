package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loginsight-backend/internal/dto"
	"loginsight-backend/internal/kvstore"
	"loginsight-backend/internal/model"
	"loginsight-backend/internal/savedquery"
	"loginsight-backend/internal/schema"
	"loginsight-backend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConversations struct {
	turn     *model.Turn
	err      error
	spec     *model.ChartSpec
	gotKind  model.ChartKind
	gotText  string
	sessions session.Manager
}

func (s *stubConversations) HandleMessage(ctx context.Context, sessionID, text string, kind model.ChartKind) (*model.Turn, error) {
	s.gotText, s.gotKind = text, kind
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.turn, s.err
}

func (s *stubConversations) PreviewChart(ctx context.Context, sessionID string, seq int, kind model.ChartKind) (*model.ChartSpec, error) {
	s.gotKind = kind
	if s.err != nil {
		return nil, s.err
	}
	return s.spec, nil
}

type staticSchema struct{ s *model.Schema }

func (r staticSchema) Current() *model.Schema            { return r.s }
func (r staticSchema) Refresh(ctx context.Context) error { return nil }

func (r staticSchema) UpdateDescription(ctx context.Context, pattern, field, description string) (*model.IndexSchema, error) {
	idx, ok := r.s.Index(pattern)
	if !ok {
		return nil, fmt.Errorf("index %q: %w", pattern, schema.ErrNotFound)
	}
	if field == "" {
		idx.Description = description
	}
	out := *idx
	return &out, nil
}

func newRouter(t *testing.T) (*gin.Engine, session.Manager, *stubConversations) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessions := session.NewManager(kvstore.NewMemoryStore(), 0)
	conv := &stubConversations{sessions: sessions}

	r := gin.New()
	RegisterSessionRoutes(r, NewSessionController(sessions))
	RegisterChatRoutes(r, NewChatController(conv))
	RegisterSchemaRoutes(r, NewSchemaController(staticSchema{s: &model.Schema{
		Indices: []model.IndexSchema{{Pattern: "logs-*", TimestampField: "@timestamp"}},
	}}))
	RegisterSavedQueryRoutes(r, NewSavedQueryController(savedquery.NewStore(kvstore.NewMemoryStore())))
	return r, sessions, conv
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func finalizedTurn(msg string) *model.Turn {
	now := time.Now().UTC()
	return &model.Turn{UserMessage: msg, Status: model.TurnSucceeded, CreatedAt: now, FinalizedAt: now}
}

func TestSessionLifecycle(t *testing.T) {
	r, sessions, _ := newRouter(t)

	w := do(r, http.MethodPost, "/api/v1/sessions", dto.CreateSessionRequest{Title: "Checkout errors"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created model.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Checkout errors", created.Title)

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, sessions.AppendTurn(context.Background(), created.ID, finalizedTurn(q)))
	}

	w = do(r, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.ListSessionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, 3, list.Sessions[0].TurnCount)

	w = do(r, http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail dto.SessionDetailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Len(t, detail.Turns, 3)

	w = do(r, http.MethodGet, "/api/v1/sessions/"+created.ID+"/turns?window=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var turns dto.TurnsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turns))
	require.Len(t, turns.Turns, 2)
	assert.Equal(t, "b", turns.Turns[0].UserMessage)
	assert.Equal(t, "c", turns.Turns[1].UserMessage)

	w = do(r, http.MethodGet, "/api/v1/sessions/"+created.ID+"/turns?window=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, "/api/v1/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodDelete, "/api/v1/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type brokenStore struct {
	kvstore.Store
}

func (brokenStore) Put(ctx context.Context, key string, value []byte) error {
	return errors.New("connection reset")
}

func TestCreateSession_PersistenceFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterSessionRoutes(r, NewSessionController(session.NewManager(brokenStore{kvstore.NewMemoryStore()}, 0)))

	w := do(r, http.MethodPost, "/api/v1/sessions", dto.CreateSessionRequest{Title: "x"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp model.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, string(model.KindPersistence))
	assert.Contains(t, resp.Message, "write sessions/")
	assert.NotContains(t, resp.Message, "connection reset")
}

func TestCreateSession_NoBody(t *testing.T) {
	r, _, _ := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSendMessage(t *testing.T) {
	r, sessions, conv := newRouter(t)
	s, err := sessions.CreateSession(context.Background(), "")
	require.NoError(t, err)

	failed := finalizedTurn("error counts by hour")
	failed.Status = model.TurnFailed
	failed.Error = &model.TurnError{Kind: model.KindTranslation, Stage: "translate", Message: "no valid query after 3 attempts"}
	conv.turn = failed

	w := do(r, http.MethodPost, "/api/v1/sessions/"+s.ID+"/messages", dto.SendMessageRequest{Message: "error counts by hour", ChartKind: "bar"})
	require.Equal(t, http.StatusOK, w.Code, "failed turns are still a successful request")
	var got model.Turn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.TurnFailed, got.Status)
	assert.Equal(t, model.KindTranslation, got.Error.Kind)
	assert.Equal(t, model.ChartBar, conv.gotKind)
	assert.Equal(t, "error counts by hour", conv.gotText)
}

func TestSendMessage_Errors(t *testing.T) {
	r, sessions, conv := newRouter(t)
	s, err := sessions.CreateSession(context.Background(), "")
	require.NoError(t, err)
	path := "/api/v1/sessions/" + s.ID + "/messages"

	w := do(r, http.MethodPost, path, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "message is required")

	w = do(r, http.MethodPost, path, dto.SendMessageRequest{Message: "q", ChartKind: "donut"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/sessions/nope/messages", dto.SendMessageRequest{Message: "q"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	conv.err = session.ErrSessionFull
	w = do(r, http.MethodPost, path, dto.SendMessageRequest{Message: "q"})
	assert.Equal(t, http.StatusConflict, w.Code)

	conv.err = model.PersistenceError(errors.New("disk full"), "append turn")
	conv.turn = finalizedTurn("q")
	w = do(r, http.MethodPost, path, dto.SendMessageRequest{Message: "q"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body dto.TurnErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Turn)
}

func TestPreviewChart(t *testing.T) {
	r, _, conv := newRouter(t)
	conv.spec = &model.ChartSpec{Kind: model.ChartArea, Title: "count by hour"}

	w := do(r, http.MethodGet, "/api/v1/sessions/s1/turns/1/chart?kind=area", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var spec model.ChartSpec
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spec))
	assert.Equal(t, model.ChartArea, spec.Kind)
	assert.Equal(t, model.ChartArea, conv.gotKind)

	w = do(r, http.MethodGet, "/api/v1/sessions/s1/turns/zero/chart", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	conv.err = model.IncompatibleChartError("scatter needs at least two numeric columns")
	w = do(r, http.MethodGet, "/api/v1/sessions/s1/turns/1/chart?kind=scatter", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	conv.err = kvstore.ErrNotFound
	w = do(r, http.MethodGet, "/api/v1/sessions/s1/turns/7/chart", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSchema(t *testing.T) {
	r, _, _ := newRouter(t)
	w := do(r, http.MethodGet, "/api/v1/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s model.Schema
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.Len(t, s.Indices, 1)
	assert.Equal(t, "logs-*", s.Indices[0].Pattern)
}

func TestUpdateDescription(t *testing.T) {
	r, _, _ := newRouter(t)

	w := do(r, http.MethodPut, "/api/v1/schema/descriptions", dto.UpdateDescriptionRequest{Index: "logs-*", Description: "Application logs"})
	require.Equal(t, http.StatusOK, w.Code)
	var idx model.IndexSchema
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &idx))
	assert.Equal(t, "Application logs", idx.Description)

	w = do(r, http.MethodPut, "/api/v1/schema/descriptions", dto.UpdateDescriptionRequest{Index: "metrics-*", Description: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/api/v1/schema/descriptions", map[string]string{"description": "no index"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSavedQueryLifecycle(t *testing.T) {
	r, _, _ := newRouter(t)
	body := dto.SaveQueryRequest{
		Index:       "logs-*",
		Description: "error counts by hour",
		Query:       json.RawMessage(`{"index":"logs-*","aggregation":{"type":"date_histogram","field":"@timestamp","interval":"1h"}}`),
	}

	w := do(r, http.MethodPost, "/api/v1/queries", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created model.SavedQuery
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	body.Description = "errors per hour"
	w = do(r, http.MethodPut, "/api/v1/queries/"+created.ID, body)
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.SavedQuery
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 2, updated.Version)

	w = do(r, http.MethodGet, "/api/v1/queries?index=logs-*", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.ListSavedQueriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Queries, 1)
	assert.Equal(t, "errors per hour", list.Queries[0].Description)

	w = do(r, http.MethodDelete, "/api/v1/queries/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodGet, "/api/v1/queries/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodPut, "/api/v1/queries/"+created.ID, body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveQueryRejectsNonObjectQuery(t *testing.T) {
	r, _, _ := newRouter(t)
	w := do(r, http.MethodPost, "/api/v1/queries", dto.SaveQueryRequest{
		Index:       "logs-*",
		Description: "broken",
		Query:       json.RawMessage(`"not an object"`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
