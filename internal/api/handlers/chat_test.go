package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Chat(ctx context.Context, userID, message string) (*service.ChatResult, error) {
	args := m.Called(ctx, userID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResult), args.Error(1)
}

func (m *MockChatService) History(ctx context.Context, userID, cursor string, limit int) (*service.HistoryPage, error) {
	args := m.Called(ctx, userID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HistoryPage), args.Error(1)
}

func (m *MockChatService) ClearHistory(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func TestChatHandler_Chat_Success(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Chat", mock.Anything, "user-123", "remember my wifi password is hunter2").Return(&service.ChatResult{
		Response: "Information stored successfully with tags: wifi, password",
		Suggestions: []service.Suggestion{
			{ID: "m-1", Content: "My router is in the hallway...", FullContent: "My router is in the hallway closet"},
		},
	}, nil)

	body := `{"message":"remember my wifi password is hunter2"}`
	req := requestWithUserID(http.MethodPost, "/chat", []byte(body))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Information stored successfully with tags: wifi, password", data["response"])
	suggestions := data["suggestions"].([]interface{})
	assert.Len(t, suggestions, 1)
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_Chat_NilSuggestionsSerializeAsEmptyArray(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Chat", mock.Anything, "user-123", "hello").Return(&service.ChatResult{Response: "Hi!"}, nil)

	req := requestWithUserID(http.MethodPost, "/chat", []byte(`{"message":"hello"}`))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"suggestions":[]`)
}

func TestChatHandler_Chat_EmptyMessage(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	req := requestWithUserID(http.MethodPost, "/chat", []byte(`{"message":""}`))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Chat")
}

func TestChatHandler_Chat_Unauthorized(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatHandler_History_Success(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mockSvc.On("History", mock.Anything, "user-123", "", 20).Return(&service.HistoryPage{
		Items: []*domain.ChatMessage{
			{ID: "msg-2", UserID: "user-123", Role: domain.MessageRoleAssistant, Content: "Hi!", CreatedAt: now},
			{ID: "msg-1", UserID: "user-123", Role: domain.MessageRoleUser, Content: "hello", CreatedAt: now.Add(-time.Minute)},
		},
		NextCursor: "cursor-abc",
		HasMore:    true,
	}, nil)

	req := requestWithUserID(http.MethodGet, "/history?limit=20", nil)
	w := httptest.NewRecorder()

	handler.History(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	assert.Len(t, items, 2)
	assert.Equal(t, "cursor-abc", data["cursor"])
	assert.Equal(t, true, data["has_more"])
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_History_InvalidLimit(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	req := requestWithUserID(http.MethodGet, "/history?limit=abc", nil)
	w := httptest.NewRecorder()

	handler.History(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "History")
}

func TestChatHandler_ClearHistory_Success(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("ClearHistory", mock.Anything, "user-123").Return(int64(14), nil)

	req := requestWithUserID(http.MethodDelete, "/history", nil)
	w := httptest.NewRecorder()

	handler.ClearHistory(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "History cleared", data["status"])
	assert.Equal(t, float64(14), data["deleted"])
	mockSvc.AssertExpectations(t)
}
