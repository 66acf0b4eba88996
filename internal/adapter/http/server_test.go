package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func setupTestServer() *Server {
	return NewServer(":8080", Options{RenderPolls: 2})
}

func do(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/auth/register", "", `{"name":"Ada","email":"`+email+`","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("access_token is empty")
	}
	return resp.AccessToken
}

func generate(t *testing.T, srv *Server, token, prompt string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/videos/generate", token, `{"prompt":"`+prompt+`"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp["status"] != "processing" {
		t.Errorf("status = %q, want processing", resp["status"])
	}
	return resp["video_id"]
}

func videoStatus(t *testing.T, srv *Server, token, id string) videoResponse {
	t.Helper()
	rec := do(t, srv, http.MethodGet, "/api/videos/"+id, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get video status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp videoResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return resp
}

func TestServer_Register_Duplicate(t *testing.T) {
	srv := setupTestServer()
	register(t, srv, "ada@example.com")

	rec := do(t, srv, http.MethodPost, "/api/auth/register", "", `{"email":"ada@example.com","password":"pw"}`)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestServer_Login(t *testing.T) {
	srv := setupTestServer()
	register(t, srv, "ada@example.com")

	rec := do(t, srv, http.MethodPost, "/api/auth/login", "", `{"email":"ada@example.com","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = do(t, srv, http.MethodPost, "/api/auth/login", "", `{"email":"ada@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestServer_RequiresToken(t *testing.T) {
	srv := setupTestServer()

	rec := do(t, srv, http.MethodGet, "/api/videos", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["msg"] == "" {
		t.Error("msg is empty, want JWT-style error")
	}

	rec = do(t, srv, http.MethodGet, "/api/videos", "bogus", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestServer_Generate_MissingPrompt(t *testing.T) {
	srv := setupTestServer()
	token := register(t, srv, "ada@example.com")

	rec := do(t, srv, http.MethodPost, "/api/videos/generate", token, `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var resp errorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error != "Missing prompt in request" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestServer_RenderLifecycle(t *testing.T) {
	srv := setupTestServer()
	token := register(t, srv, "ada@example.com")
	id := generate(t, srv, token, "a blue circle")

	if got := videoStatus(t, srv, token, id); got.Status != "processing" {
		t.Errorf("first read status = %q, want processing", got.Status)
	}
	rec := do(t, srv, http.MethodGet, "/api/videos/"+id+"/code", token, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("code before completion status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	got := videoStatus(t, srv, token, id)
	if got.Status != "completed" {
		t.Fatalf("second read status = %q, want completed", got.Status)
	}
	if got.VideoPath == nil {
		t.Error("video_path = nil after completion")
	}
	if got.CreatedAt == "" {
		t.Error("created_at is empty")
	}

	rec = do(t, srv, http.MethodGet, "/api/videos/"+id+"/code", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code status = %d, want %d", rec.Code, http.StatusOK)
	}
	var code map[string]string
	json.NewDecoder(rec.Body).Decode(&code)
	if !strings.Contains(code["code"], "a blue circle") {
		t.Errorf("code = %q, want prompt embedded", code["code"])
	}

	rec = do(t, srv, http.MethodGet, "/api/videos/"+id+"/file", token, "")
	if rec.Code != http.StatusOK {
		t.Errorf("file status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}
}

func TestServer_RenderFailure(t *testing.T) {
	srv := setupTestServer()
	token := register(t, srv, "ada@example.com")
	id := generate(t, srv, token, "please fail")

	videoStatus(t, srv, token, id)
	got := videoStatus(t, srv, token, id)

	if got.Status != "failed" {
		t.Errorf("status = %q, want failed", got.Status)
	}
	// Terminal videos stay put.
	if got := videoStatus(t, srv, token, id); got.Status != "failed" {
		t.Errorf("status after terminal = %q, want failed", got.Status)
	}
}

func TestServer_AssetBaseURL(t *testing.T) {
	srv := NewServer(":8080", Options{RenderPolls: 1, AssetBaseURL: "https://cdn.example.com/"})
	token := register(t, srv, "ada@example.com")
	id := generate(t, srv, token, "square")

	got := videoStatus(t, srv, token, id)

	want := "https://cdn.example.com/videos/" + id + ".mp4"
	if got.S3VideoURL == nil || *got.S3VideoURL != want {
		t.Errorf("s3_video_url = %v, want %q", got.S3VideoURL, want)
	}

	rec := do(t, srv, http.MethodGet, "/api/videos/"+id+"/file", token, "")
	if rec.Code != http.StatusFound {
		t.Errorf("file status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func TestServer_ListPagination(t *testing.T) {
	srv := setupTestServer()
	token := register(t, srv, "ada@example.com")
	first := generate(t, srv, token, "one")
	second := generate(t, srv, token, "two")
	third := generate(t, srv, token, "three")

	rec := do(t, srv, http.MethodGet, "/api/videos?page=1&per_page=2", token, "")
	var page1 []videoResponse
	json.NewDecoder(rec.Body).Decode(&page1)
	if len(page1) != 2 || page1[0].ID != third || page1[1].ID != second {
		t.Errorf("page 1 = %+v, want [%s %s]", page1, third, second)
	}

	rec = do(t, srv, http.MethodGet, "/api/videos?page=2&per_page=2", token, "")
	var page2 []videoResponse
	json.NewDecoder(rec.Body).Decode(&page2)
	if len(page2) != 1 || page2[0].ID != first {
		t.Errorf("page 2 = %+v, want [%s]", page2, first)
	}
}

func TestServer_OtherUsersVideo(t *testing.T) {
	srv := setupTestServer()
	owner := register(t, srv, "ada@example.com")
	other := register(t, srv, "bob@example.com")
	id := generate(t, srv, owner, "mine")

	rec := do(t, srv, http.MethodGet, "/api/videos/"+id, other, "")

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestServer_GetVideo_NotFound(t *testing.T) {
	srv := setupTestServer()
	token := register(t, srv, "ada@example.com")

	rec := do(t, srv, http.MethodGet, "/api/videos/missing", token, "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServer_Profile(t *testing.T) {
	srv := setupTestServer()
	token := register(t, srv, "ada@example.com")

	rec := do(t, srv, http.MethodPut, "/api/auth/me", token, `{"name":"Grace"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = do(t, srv, http.MethodGet, "/api/auth/me", token, "")
	var me userResponse
	json.NewDecoder(rec.Body).Decode(&me)
	if me.Name != "Grace" || me.Email != "ada@example.com" {
		t.Errorf("me = %+v", me)
	}
}

func TestServer_Health(t *testing.T) {
	srv := setupTestServer()

	rec := do(t, srv, http.MethodGet, "/health", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}
