package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/cache"
	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/models"
	"github.com/pdf-annotator/backend/internal/session"
	"github.com/pdf-annotator/backend/internal/storage"
)

// stubCounter reports a fixed page count without touching the file.
type stubCounter struct {
	pages int
	err   error
}

func (s stubCounter) PageCount(string) (int, error) { return s.pages, s.err }

func setupTestHandler(t *testing.T, repo storage.Repository, counter stubCounter) (*gin.Engine, *auth.Service, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
		Placement:      config.DefaultPlacement(),
	}
	authsvc := auth.NewService(cfg)
	syncer := session.NewSynchronizer(repo, cache.NewNoopCache(), zap.NewNop())
	h := NewHandler(repo, syncer, authsvc, counter, cfg, zap.NewNop())

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router, authsvc, cfg
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// registerUser creates an account through the API and returns its token.
func registerUser(t *testing.T, router *gin.Engine, name, email string) (string, models.User) {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: "secret-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User
}

// uploadDocument uploads a fake PDF through the API and returns the
// created record. The stub counter decides the page count.
func uploadDocument(t *testing.T, router *gin.Engine, token string) models.Document {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf", "paper.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func highlightBody(id string, page int) models.Annotation {
	return models.Annotation{
		ID:        id,
		Type:      models.TypeHighlight,
		Page:      page,
		X:         10,
		Y:         20,
		Highlight: &models.HighlightExtent{Width: 5, Height: 2},
		Color:     "#FFEB3B",
		Opacity:   0.6,
		Content:   "Highlight",
		CreatedAt: time.Now().UTC(),
		CreatedBy: "Alice",
	}
}

func TestRegister(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})

	token, user := registerUser(t, router, "Alice", "alice@example.com")
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)

	// The token works against a protected endpoint.
	w := doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
	assert.NotContains(t, w.Body.String(), "PasswordHash")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	registerUser(t, router, "Alice", "alice@example.com")

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Name:     "Impostor",
		Email:    "alice@example.com",
		Password: "secret-pass",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_InvalidBody(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Name:     "Alice",
		Email:    "not-an-email",
		Password: "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	registerUser(t, router, "Alice", "alice@example.com")

	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Email:    "alice@example.com",
		Password: "secret-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
}

func TestLogin_BadCredentials(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	registerUser(t, router, "Alice", "alice@example.com")

	// Wrong password and unknown email yield the same answer.
	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	wrongPass := w.Body.String()

	w = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "secret-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, wrongPass, w.Body.String())
}

func TestDocuments_RequireAuthentication(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})

	w := doJSON(t, router, http.MethodGet, "/api/v1/documents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/v1/documents/some-id/annotations", "", models.ReplaceAnnotationsRequest{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpload(t *testing.T) {
	router, _, cfg := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 7})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")

	doc := uploadDocument(t, router, token)
	assert.Equal(t, "paper.pdf", doc.OriginalName)
	assert.Equal(t, 7, doc.Pages)
	assert.Equal(t, 0, doc.AnnotationsCount)
	assert.NotEmpty(t, doc.ID)

	entries, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpload_InvalidPDF(t *testing.T) {
	router, _, cfg := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()),
		stubCounter{err: fmt.Errorf("pdfcpu read: malformed xref")})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf", "broken.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a pdf at all"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The rejected file does not linger on disk.
	entries, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_MissingFileField(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")

	w := doJSON(t, router, http.MethodPost, "/api/v1/documents/upload", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	router, _, cfg := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")

	cfg.MaxUploadBytes = 4

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf", "huge.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 well over four bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestList(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")

	uploadDocument(t, router, token)
	uploadDocument(t, router, token)

	w := doJSON(t, router, http.MethodGet, "/api/v1/documents", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.DocumentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestAnnotations_ReplaceAndGet(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")
	doc := uploadDocument(t, router, token)

	path := "/api/v1/documents/" + doc.ID + "/annotations"

	w := doJSON(t, router, http.MethodPut, path, token, models.ReplaceAnnotationsRequest{
		Annotations: []models.Annotation{
			highlightBody("a", 1),
			highlightBody("b", 3),
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AnnotationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "a", resp.Data[0].ID)
	assert.Equal(t, "b", resp.Data[1].ID)
	assert.Equal(t, 3, resp.Data[1].Page)
}

func TestAnnotations_ReplaceValidation(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")
	doc := uploadDocument(t, router, token)

	path := "/api/v1/documents/" + doc.ID + "/annotations"

	missingAuthor := highlightBody("a", 1)
	missingAuthor.CreatedBy = ""
	w := doJSON(t, router, http.MethodPut, path, token, models.ReplaceAnnotationsRequest{
		Annotations: []models.Annotation{missingAuthor},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, path, token, models.ReplaceAnnotationsRequest{
		Annotations: []models.Annotation{highlightBody("a", 11)},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Failed saves leave the stored sequence empty.
	w = doJSON(t, router, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.AnnotationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
}

func TestAnnotations_UnknownDocument(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")

	w := doJSON(t, router, http.MethodGet, "/api/v1/documents/no-such-id/annotations", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnnotations_CrossOwnerIsNotFound(t *testing.T) {
	router, _, _ := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	aliceToken, _ := registerUser(t, router, "Alice", "alice@example.com")
	bobToken, _ := registerUser(t, router, "Bob", "bob@example.com")

	doc := uploadDocument(t, router, aliceToken)
	path := "/api/v1/documents/" + doc.ID + "/annotations"

	w := doJSON(t, router, http.MethodGet, path, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPut, path, bobToken, models.ReplaceAnnotationsRequest{
		Annotations: []models.Annotation{highlightBody("a", 1)},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+doc.ID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete(t *testing.T) {
	router, _, cfg := setupTestHandler(t, storage.NewMemoryRepository(zap.NewNop()), stubCounter{pages: 10})
	token, _ := registerUser(t, router, "Alice", "alice@example.com")
	doc := uploadDocument(t, router, token)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+doc.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/documents/"+doc.ID+"/annotations", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	entries, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "stored file removed with the document")
}

func TestList_StorageUnavailable(t *testing.T) {
	mockRepo := new(MockRepository)
	router, authsvc, _ := setupTestHandler(t, mockRepo, stubCounter{pages: 10})

	token, err := authsvc.GenerateToken(models.User{ID: "u1", Name: "Alice"})
	require.NoError(t, err)

	mockRepo.On("ListDocuments", mock.Anything, "u1").
		Return(nil, fmt.Errorf("%w: dial tcp: connection refused", models.ErrTransport))

	w := doJSON(t, router, http.MethodGet, "/api/v1/documents", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	mockRepo.AssertExpectations(t)
}

// MockRepository mocks the storage.Repository interface.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	args := m.Called(ctx, name, email, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *MockRepository) ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *MockRepository) GetDocument(ctx context.Context, id, ownerID string) (*models.Document, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *MockRepository) DeleteDocument(ctx context.Context, id, ownerID string) error {
	args := m.Called(ctx, id, ownerID)
	return args.Error(0)
}

func (m *MockRepository) GetAnnotations(ctx context.Context, id, ownerID string) ([]models.Annotation, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Annotation), args.Error(1)
}

func (m *MockRepository) ReplaceAnnotations(ctx context.Context, id, ownerID string, annotations []models.Annotation) (*models.Document, error) {
	args := m.Called(ctx, id, ownerID, annotations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *MockRepository) Close() {
	m.Called()
}
