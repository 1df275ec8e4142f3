package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/estatehub/backend/internal/filestore"
	"github.com/estatehub/backend/internal/handlers"
	"github.com/estatehub/backend/internal/models"
	"github.com/estatehub/backend/internal/queue"
	"github.com/estatehub/backend/internal/routes"
	"github.com/estatehub/backend/internal/services/kyc"
	"github.com/estatehub/backend/internal/store"
	"github.com/estatehub/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dateLayout = "2006-01-02"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	service *kyc.Service
	files   *filestore.LocalStore
	issuer  *utils.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	files, err := filestore.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	service := kyc.NewService(kyc.Dependencies{
		Documents: store.NewMemoryDocumentStore(),
		Accounts:  store.NewMemoryAccountStore(),
		History:   store.NewMemoryHistoryStore(),
		Orphans:   store.NewMemoryOrphanStore(),
		Files:     files,
	})
	issuer := utils.NewTokenIssuer("test-secret", time.Hour)

	router := gin.New()
	routes.RegisterRoutes(router, routes.Handlers{
		KYC:    handlers.NewKYCHandler(service, 5),
		Admin:  handlers.NewKYCAdminHandler(service),
		Files:  handlers.NewFileHandler(files, service),
		Queue:  handlers.NewQueueHandler(nil),
		Health: handlers.NewHealthHandler(nil),
	}, issuer)

	return &testServer{router: router, service: service, files: files, issuer: issuer}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, isAdmin bool) string {
	t.Helper()
	token, err := s.issuer.GenerateToken(userID, "", isAdmin)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, token string, fields map[string]string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if content != nil {
		part, err := writer.CreateFormFile("file", "license scan.png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestCatalogIsPublic(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/kyc/catalog", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		DocumentTypes     []models.DocumentTypeInfo `json:"document_types"`
		RequiredDocuments []models.DocumentType     `json:"required_documents"`
	}
	decode(t, w, &body)
	assert.Len(t, body.DocumentTypes, 12)
	assert.Equal(t, models.RequiredDocumentTypes(), body.RequiredDocuments)
}

func TestUploadDocument(t *testing.T) {
	s := newTestServer(t)
	userID := uuid.New()
	token := s.token(t, userID, false)

	w := s.upload(t, token, map[string]string{
		"document_type":   "agent_license",
		"document_number": "AL-77",
		"expiry_date":     "2028-06-30",
		"is_primary":      "true",
	}, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var doc handlers.DocumentResponse
	decode(t, w, &doc)
	assert.Equal(t, userID, doc.UserID)
	assert.Equal(t, models.DocumentStatusPending, doc.Status)
	assert.True(t, doc.IsPrimary)
	require.NotNil(t, doc.ExpiryDate)
	assert.Equal(t, "2028-06-30", doc.ExpiryDate.Format(dateLayout))
	require.NotNil(t, doc.FileReference)
	assert.Contains(t, doc.PreviewURL, *doc.FileReference+"/preview")
	assert.Contains(t, doc.DownloadURL, *doc.FileReference+"/download")

	w = s.do(t, http.MethodGet, "/api/kyc/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state kyc.AccountVerificationState
	decode(t, w, &state)
	assert.Equal(t, models.VerificationStatusPending, state.Status)
	assert.Equal(t, 1, state.PendingCount)
}

func TestUploadDocumentValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, uuid.New(), false)

	tests := []struct {
		name    string
		fields  map[string]string
		content []byte
		status  int
	}{
		{"unknown type", map[string]string{"document_type": "selfie"}, pngBytes, http.StatusBadRequest},
		{"bad expiry", map[string]string{"document_type": "passport", "expiry_date": "30/06/2028"}, pngBytes, http.StatusBadRequest},
		{"bad is_primary", map[string]string{"document_type": "passport", "is_primary": "maybe"}, pngBytes, http.StatusBadRequest},
		{"missing file", map[string]string{"document_type": "passport"}, nil, http.StatusBadRequest},
		{"plain text file", map[string]string{"document_type": "passport"}, []byte("just some text"), http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(t, token, tt.fields, tt.content)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestUploadBlockedWhenSuspended(t *testing.T) {
	s := newTestServer(t)
	userID := uuid.New()

	_, err := s.service.SuspendAccount(context.Background(), userID, "fraud review")
	require.NoError(t, err)

	w := s.upload(t, s.token(t, userID, false), map[string]string{"document_type": "passport"}, pngBytes)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/kyc/status", s.token(t, userID, false), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state kyc.AccountVerificationState
	decode(t, w, &state)
	assert.True(t, state.IsSuspended)
	assert.Equal(t, models.VerificationStatusSuspended, state.EffectiveStatus)
	assert.Empty(t, state.AllowedActions)
}

func TestDocumentsAreOwnerScoped(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	other := uuid.New()

	w := s.upload(t, s.token(t, owner, false), map[string]string{"document_type": "passport"}, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code)
	var doc handlers.DocumentResponse
	decode(t, w, &doc)
	path := "/api/kyc/documents/" + doc.ID.String()

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, s.token(t, owner, false), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, s.token(t, other, false), nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, s.token(t, other, false), nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/kyc/documents/not-a-uuid", s.token(t, owner, false), nil).Code)

	w = s.do(t, http.MethodGet, "/api/kyc/documents", s.token(t, other, false), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Documents []handlers.DocumentResponse `json:"documents"`
	}
	decode(t, w, &list)
	assert.Empty(t, list.Documents)
}

func TestUpdateDocument(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	token := s.token(t, owner, false)

	w := s.upload(t, token, map[string]string{"document_type": "passport", "notes": "first"}, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code)
	var doc handlers.DocumentResponse
	decode(t, w, &doc)
	path := "/api/kyc/documents/" + doc.ID.String()

	w = s.do(t, http.MethodPatch, path, token, gin.H{"document_number": "P-1", "notes": "", "expiry_date": "2030-01-31"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated handlers.DocumentResponse
	decode(t, w, &updated)
	require.NotNil(t, updated.DocumentNumber)
	assert.Equal(t, "P-1", *updated.DocumentNumber)
	assert.Nil(t, updated.Notes)
	require.NotNil(t, updated.ExpiryDate)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, path, token, gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, path, token, gin.H{"expiry_date": "soon"}).Code)
}

func TestDeleteDocument(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	token := s.token(t, owner, false)
	adminToken := s.token(t, uuid.New(), true)

	w := s.upload(t, token, map[string]string{"document_type": "passport"}, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code)
	var pending handlers.DocumentResponse
	decode(t, w, &pending)

	w = s.upload(t, token, map[string]string{"document_type": "national_id"}, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code)
	var verified handlers.DocumentResponse
	decode(t, w, &verified)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/admin/kyc/documents/"+verified.ID.String()+"/verify", adminToken, nil).Code)

	w = s.do(t, http.MethodDelete, "/api/kyc/documents/"+verified.ID.String(), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodDelete, "/api/kyc/documents/"+pending.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result kyc.DeleteResult
	decode(t, w, &result)
	assert.True(t, result.FileDeleted)
	assert.False(t, result.FileCleanupDeferred)

	_, _, err := s.files.Open(context.Background(), s.service.Bucket(), *pending.FileReference)
	assert.ErrorIs(t, err, filestore.ErrFileNotFound)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/kyc/documents/"+pending.ID.String(), token, nil).Code)
}

func TestAdminReviewFlow(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	token := s.token(t, owner, false)
	adminToken := s.token(t, uuid.New(), true)

	var ids []string
	for _, docType := range []string{"national_id", "agent_license", "proof_of_address"} {
		w := s.upload(t, token, map[string]string{"document_type": docType}, pngBytes)
		require.Equal(t, http.StatusCreated, w.Code)
		var doc handlers.DocumentResponse
		decode(t, w, &doc)
		ids = append(ids, doc.ID.String())
	}

	// Non-admins cannot review
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/admin/kyc/documents/"+ids[0]+"/verify", token, nil).Code)

	w := s.do(t, http.MethodPost, "/api/admin/kyc/documents/"+ids[0]+"/reject", adminToken, gin.H{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/kyc/documents/"+ids[0]+"/reject", adminToken, gin.H{"reason": "Blurry scan"})
	require.Equal(t, http.StatusOK, w.Code)
	var rejected models.KYCDocument
	decode(t, w, &rejected)
	assert.Equal(t, models.DocumentStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "Blurry scan", *rejected.RejectionReason)

	for _, id := range ids {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/admin/kyc/documents/"+id+"/verify", adminToken, nil).Code)
	}

	w = s.do(t, http.MethodGet, "/api/admin/kyc/users/"+owner.String()+"/status", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state kyc.AccountVerificationState
	decode(t, w, &state)
	assert.Equal(t, models.VerificationStatusVerified, state.Status)
	assert.True(t, state.IsFullyVerified)
	assert.Empty(t, state.MissingDocuments)

	w = s.do(t, http.MethodGet, "/api/admin/kyc/documents/"+ids[0]+"/history", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []models.KYCDocumentHistory `json:"history"`
	}
	decode(t, w, &history)
	assert.Len(t, history.History, 2)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/admin/kyc/documents/"+uuid.NewString()+"/verify", adminToken, nil).Code)
}

func TestAdminListDocuments(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	token := s.token(t, owner, false)
	adminToken := s.token(t, uuid.New(), true)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, s.upload(t, token, map[string]string{"document_type": "other"}, pngBytes).Code)
	}
	require.Equal(t, http.StatusCreated, s.upload(t, s.token(t, uuid.New(), false), map[string]string{"document_type": "passport"}, pngBytes).Code)

	w := s.do(t, http.MethodGet, "/api/admin/kyc/documents?page=1&page_size=2&user_id="+owner.String(), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Documents  []models.KYCDocument `json:"documents"`
		Pagination struct {
			Total      int64 `json:"total"`
			Page       int   `json:"page"`
			PageSize   int   `json:"page_size"`
			TotalPages int   `json:"total_pages"`
		} `json:"pagination"`
	}
	decode(t, w, &body)
	assert.Len(t, body.Documents, 2)
	assert.Equal(t, int64(3), body.Pagination.Total)
	assert.Equal(t, 2, body.Pagination.TotalPages)

	w = s.do(t, http.MethodGet, "/api/admin/kyc/documents?status=pending&document_type=passport", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	assert.Equal(t, int64(1), body.Pagination.Total)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/admin/kyc/documents?status=archived", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/admin/kyc/documents?user_id=nope", adminToken, nil).Code)
}

func TestAdminSuspendAndReinstate(t *testing.T) {
	s := newTestServer(t)
	userID := uuid.New()
	adminToken := s.token(t, uuid.New(), true)

	w := s.do(t, http.MethodPost, "/api/admin/kyc/users/"+userID.String()+"/suspend", adminToken, gin.H{"reason": "chargebacks"})
	require.Equal(t, http.StatusOK, w.Code)
	var account models.Account
	decode(t, w, &account)
	assert.True(t, account.IsSuspended)

	suspended, err := s.service.IsSuspended(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, suspended)

	w = s.do(t, http.MethodPost, "/api/admin/kyc/users/"+userID.String()+"/reinstate", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	suspended, err = s.service.IsSuspended(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, suspended)
}

func TestFilePreviewAndDownload(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	token := s.token(t, owner, false)

	w := s.upload(t, token, map[string]string{"document_type": "proof_of_address"}, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doc handlers.DocumentResponse
	decode(t, w, &doc)
	base := "/api/files/" + s.service.Bucket() + "/" + *doc.FileReference

	w = s.do(t, http.MethodGet, base+"/preview", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "inline"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	w = s.do(t, http.MethodGet, base+"/download", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment"))

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/files/"+s.service.Bucket()+"/missing.png/preview", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, base+"/preview", "", nil).Code)
}

func TestFilesAreOwnerScoped(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	other := s.token(t, uuid.New(), false)
	adminToken := s.token(t, uuid.New(), true)

	w := s.upload(t, s.token(t, owner, false), map[string]string{"document_type": "agent_license"}, pngBytes)
	require.Equal(t, http.StatusCreated, w.Code)
	var doc handlers.DocumentResponse
	decode(t, w, &doc)
	base := "/api/files/" + s.service.Bucket() + "/" + *doc.FileReference

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, base+"/download", other, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, base+"/preview", other, nil).Code)

	// Files without a document are only visible to admins
	info, err := s.service.UploadFile(context.Background(), "deed.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)
	loose := "/api/files/" + s.service.Bucket() + "/" + info.Ref + "/download"
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, loose, other, nil).Code)

	w = s.do(t, http.MethodGet, base+"/download", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, loose, adminToken, nil).Code)
}

func TestUploadRejectsOversizedFiles(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, uuid.New(), false)
	limit := 5 << 20

	tests := []struct {
		name string
		over int
	}{
		{"just over the limit", 512 << 10},
		{"past the body allowance", 2 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := append(append([]byte{}, pngBytes...), make([]byte, limit+tt.over)...)
			w := s.upload(t, token, map[string]string{"document_type": "passport"}, content)
			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
		})
	}
}

func TestRouteTable(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.token(t, uuid.New(), true)

	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/kyc/queue/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled":false}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/admin/kyc/queue/stats", s.token(t, uuid.New(), false), nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/kyc/status", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", "", nil).Code)
}

type fakeStats struct {
	stats *queue.QueueStats
	err   error
}

func (f fakeStats) Stats(ctx context.Context, queueName string) (*queue.QueueStats, error) {
	return f.stats, f.err
}

func TestQueueStats(t *testing.T) {
	router := gin.New()
	router.GET("/disabled", handlers.NewQueueHandler(nil).GetStats)
	router.GET("/enabled", handlers.NewQueueHandler(fakeStats{stats: &queue.QueueStats{Queue: queue.QueueFileCleanup, Waiting: 2}}).GetStats)
	router.GET("/broken", handlers.NewQueueHandler(fakeStats{err: errors.New("redis down")}).GetStats)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/disabled", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled":false}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/enabled", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"waiting":2`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	router := gin.New()
	router.GET("/ok", handlers.NewHealthHandler(map[string]handlers.Checker{
		"database": func(ctx context.Context) error { return nil },
	}).Health)
	router.GET("/degraded", handlers.NewHealthHandler(map[string]handlers.Checker{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	}).Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/degraded", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
