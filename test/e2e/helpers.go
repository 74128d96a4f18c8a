//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ainotes/secondbrain/internal/api/handlers"
	"github.com/ainotes/secondbrain/internal/auth"
	"github.com/ainotes/secondbrain/internal/repository"
	"github.com/ainotes/secondbrain/internal/server"
	"github.com/ainotes/secondbrain/internal/service"
	"github.com/ainotes/secondbrain/internal/storage"
	"github.com/ainotes/secondbrain/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	openai "github.com/sashabaranov/go-openai"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	AuthToken    string
	UserID       string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and an
// in-process server. The model provider is replaced by a scripted client
// so the agent loop, retrieval and persistence run for real without
// network calls.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// SignIn exchanges a synthetic Google credential for a session token.
func (e *E2ETestEnv) SignIn(sub, email, name string) {
	resp, err := e.Post("/auth/google", map[string]string{
		"credential": MakeGoogleCredential(sub, email, name),
	}, "")
	if err != nil {
		e.T.Fatalf("failed to sign in: %v", err)
	}

	var data struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		e.T.Fatalf("failed to parse auth response: %v", err)
	}
	e.AuthToken = data.AccessToken
	e.UserID = data.User.ID
}

// MakeGoogleCredential builds an unsigned JWT shaped like a Google ID
// token. The server only decodes the payload.
func MakeGoogleCredential(sub, email, name string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload, _ := json.Marshal(map[string]string{
		"sub":   sub,
		"email": email,
		"name":  name,
	})
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

// Chat sends one chat message and returns the assistant's response text.
func (e *E2ETestEnv) Chat(message string) (string, error) {
	resp, err := e.Post("/chat", map[string]string{"message": message}, e.AuthToken)
	if err != nil {
		return "", err
	}
	var data struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", err
	}
	return data.Response, nil
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// UploadDocument sends a multipart upload and returns the raw HTTP status.
func (e *E2ETestEnv) UploadDocument(filename string, content []byte) (int, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return 0, "", err
	}
	if _, err := fw.Write(content); err != nil {
		return 0, "", err
	}
	if err := mw.Close(); err != nil {
		return 0, "", err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/documents/upload", &buf)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.AuthToken)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), nil
}

// startServer wires the real stack with a scripted model client.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	userRepo := repository.NewUserRepository(pool)
	memoryRepo := repository.NewMemoryRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	aiClient := &scriptedModel{}
	tagger := service.NewTagger(aiClient)
	memorySvc := service.NewMemoryService(memoryRepo, aiClient, tagger, service.DefaultMemoryConfig())

	ingestor := service.NewIngestor(txRunner, aiClient, tagger, s3Client)
	toolset := service.NewToolset(memorySvc, ingestor, s3Client)
	brain := service.NewBrain(aiClient, toolset, 10, 40)
	chatSvc := service.NewChatService(brain, memorySvc, messageRepo, txRunner, 40)

	tokenSvc := auth.NewTokenService("e2e-secret", 1)
	authSvc := service.NewAuthService(userRepo, googleDecoder{}, tokenSvc)

	cfg := server.RouterConfig{
		TokenVerifier:    tokenSvc,
		AuthHandler:      handlers.NewAuthHandler(authSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		DocumentHandler:  handlers.NewDocumentHandler(ingestor, s3Client),
		TagHandler:       handlers.NewTagHandler(memorySvc),
		KnowledgeHandler: handlers.NewKnowledgeHandler(memorySvc),
		ChatRateLimit:    0,
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// googleDecoder adapts the credential parser to the auth service.
type googleDecoder struct{}

func (googleDecoder) Decode(credential string) (*service.GoogleProfile, error) {
	profile, err := auth.DecodeGoogleCredential(credential)
	if err != nil {
		return nil, err
	}
	return &service.GoogleProfile{
		Sub:     profile.Sub,
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
	}, nil
}

// scriptedModel stands in for the model provider. Embeddings are
// bag-of-words vectors, so texts sharing words come out cosine-similar,
// and the chat side plays a fixed agent script: imperative messages turn
// into tool calls, tool results are echoed back as the final answer.
type scriptedModel struct{}

func (m *scriptedModel) ChatModel() string { return "scripted" }

func (m *scriptedModel) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 1536)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%1536]++
	}
	return v, nil
}

func (m *scriptedModel) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	last := req.Messages[len(req.Messages)-1]

	// Tagging prompts get a canned tag list.
	if last.Role == openai.ChatMessageRoleUser && strings.HasPrefix(last.Content, "Analyze this information") {
		return textResponse("notes, e2e"), nil
	}

	// After a tool ran, surface its output as the final answer.
	if last.Role == openai.ChatMessageRoleTool {
		return textResponse(last.Content), nil
	}

	msg := strings.ToLower(last.Content)
	switch {
	case strings.HasPrefix(msg, "remember "):
		return toolResponse(service.ToolAddRecall, map[string]string{
			"content": strings.TrimSpace(last.Content[len("remember "):]),
		}), nil
	case strings.HasPrefix(msg, "what"):
		return toolResponse(service.ToolQueryRecall, map[string]string{"query": last.Content}), nil
	case strings.HasPrefix(msg, "forget "):
		return toolResponse(service.ToolDeleteRecall, map[string]string{
			"description": strings.TrimSpace(last.Content[len("forget "):]),
		}), nil
	default:
		return textResponse("Hi! I can remember things for you."), nil
	}
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func toolResponse(tool string, args map[string]string) openai.ChatCompletionResponse {
	arguments, _ := json.Marshal(args)
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{
					{
						ID:       "call-1",
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: tool, Arguments: string(arguments)},
					},
				},
			}},
		},
	}
}
