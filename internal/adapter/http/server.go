// Package http serves an in-memory stand-in for the video generation
// backend, for local development and end-to-end tests.
package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Options controls the simulated backend.
type Options struct {
	// RenderPolls is the number of status reads after which a video
	// finishes rendering.
	RenderPolls int
	// AssetBaseURL, when set, makes completed videos carry an externally
	// hosted URL under this prefix.
	AssetBaseURL string
}

// Server is the stub backend.
type Server struct {
	opts   Options
	router *mux.Router
	server *http.Server

	mu     sync.Mutex
	users  map[string]*user // by email
	tokens map[string]string
	videos map[string]*video
	order  []string // newest last
}

type user struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

type video struct {
	ID         string
	UserID     string
	Prompt     string
	Code       string
	Status     string
	Thumbnail  string
	S3URL      string
	CreatedAt  time.Time
	statusHits int
}

// NewServer creates a new stub backend listening on addr.
func NewServer(addr string, opts Options) *Server {
	if opts.RenderPolls <= 0 {
		opts.RenderPolls = 2
	}
	s := &Server{
		opts:   opts,
		router: mux.NewRouter().StrictSlash(true),
		users:  make(map[string]*user),
		tokens: make(map[string]string),
		videos: make(map[string]*video),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    addr,
		Handler: handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stderr, s.router)),
	}
	return s
}

func (s *Server) routes() {
	auth := s.router.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/me", s.requireAuth(s.handleMe)).Methods(http.MethodGet)
	auth.HandleFunc("/me", s.requireAuth(s.handleUpdateMe)).Methods(http.MethodPut)

	videos := s.router.PathPrefix("/api/videos").Subrouter()
	videos.HandleFunc("/generate", s.requireAuth(s.handleGenerate)).Methods(http.MethodPost)
	videos.HandleFunc("", s.requireAuth(s.handleList)).Methods(http.MethodGet)
	videos.HandleFunc("/{id}", s.requireAuth(s.handleGetVideo)).Methods(http.MethodGet)
	videos.HandleFunc("/{id}/code", s.requireAuth(s.handleGetCode)).Methods(http.MethodGet)
	videos.HandleFunc("/{id}/file", s.requireAuth(s.handleGetFile)).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

type userResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	CreatedAt        string `json:"created_at"`
	SubscriptionTier string `json:"subscription_tier"`
}

type videoResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Prompt        string  `json:"prompt"`
	VideoPath     *string `json:"video_path"`
	ThumbnailPath *string `json:"thumbnail_path"`
	CreatedAt     string  `json:"created_at"`
	Status        string  `json:"status"`
	S3VideoURL    *string `json:"s3_video_url"`
}

type ctxKey struct{}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
			return
		}
		s.mu.Lock()
		userID, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token has expired"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.mu.Unlock()
		s.writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	u := &user{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashPassword(req.Password),
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.Email] = u
	token := s.issueTokenLocked(u.ID)
	s.mu.Unlock()

	log.Printf("stub: registered %s", u.Email)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"message":      "User registered successfully",
		"access_token": token,
		"user":         toUserResponse(u),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	if !ok || u.PasswordHash != hashPassword(req.Password) {
		s.mu.Unlock()
		s.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := s.issueTokenLocked(u.ID)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login successful",
		"access_token": token,
		"user":         toUserResponse(u),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.userByIDLocked(userID(r))
	s.mu.Unlock()
	if u == nil {
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "No data provided")
		return
	}

	s.mu.Lock()
	u := s.userByIDLocked(userID(r))
	if u != nil && req.Name != nil {
		u.Name = *req.Name
	}
	s.mu.Unlock()
	if u == nil {
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    toUserResponse(u),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt *string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == nil {
		s.writeError(w, http.StatusBadRequest, "Missing prompt in request")
		return
	}

	v := &video{
		ID:        uuid.NewString(),
		UserID:    userID(r),
		Prompt:    *req.Prompt,
		Code:      sceneCode(*req.Prompt),
		Status:    "processing",
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.videos[v.ID] = v
	s.order = append(s.order, v.ID)
	s.mu.Unlock()

	log.Printf("stub: video %s queued", v.ID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"message":  "Video generation request submitted",
		"video_id": v.ID,
		"status":   v.Status,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 10)
	skip := (page - 1) * perPage
	uid := userID(r)

	s.mu.Lock()
	var out []videoResponse
	for i := len(s.order) - 1; i >= 0; i-- {
		v := s.videos[s.order[i]]
		if v.UserID != uid {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if len(out) == perPage {
			break
		}
		out = append(out, s.toVideoResponse(v))
	}
	s.mu.Unlock()

	if out == nil {
		out = []videoResponse{}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v, status, msg := s.ownedVideoLocked(r)
	if v != nil {
		s.advanceLocked(v)
	}
	var resp videoResponse
	if v != nil {
		resp = s.toVideoResponse(v)
	}
	s.mu.Unlock()

	if v == nil {
		s.writeError(w, status, msg)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v, status, msg := s.ownedVideoLocked(r)
	var code, state string
	if v != nil {
		code, state = v.Code, v.Status
	}
	s.mu.Unlock()

	if v == nil {
		s.writeError(w, status, msg)
		return
	}
	if state != "completed" || code == "" {
		s.writeError(w, http.StatusNotFound, "Code not available for this video")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v, status, msg := s.ownedVideoLocked(r)
	var state, external, id string
	if v != nil {
		state, external, id = v.Status, v.S3URL, v.ID
	}
	s.mu.Unlock()

	if v == nil {
		s.writeError(w, status, msg)
		return
	}
	if state != "completed" {
		s.writeError(w, http.StatusNotFound, "Video file not found")
		return
	}
	if external != "" {
		http.Redirect(w, r, external, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, fakeMP4(id))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// advanceLocked moves a processing video forward on status reads.
func (s *Server) advanceLocked(v *video) {
	if v.Status != "processing" && v.Status != "pending" {
		return
	}
	v.statusHits++
	if v.statusHits < s.opts.RenderPolls {
		return
	}
	if strings.Contains(strings.ToLower(v.Prompt), "fail") {
		v.Status = "failed"
		log.Printf("stub: video %s failed", v.ID)
		return
	}
	v.Status = "completed"
	if s.opts.AssetBaseURL != "" {
		v.S3URL = strings.TrimRight(s.opts.AssetBaseURL, "/") + "/videos/" + v.ID + ".mp4"
		v.Thumbnail = strings.TrimRight(s.opts.AssetBaseURL, "/") + "/thumbnails/" + v.ID + ".jpg"
	}
	log.Printf("stub: video %s completed", v.ID)
}

func (s *Server) ownedVideoLocked(r *http.Request) (*video, int, string) {
	v, ok := s.videos[mux.Vars(r)["id"]]
	if !ok {
		return nil, http.StatusNotFound, "Video not found"
	}
	if v.UserID != userID(r) {
		return nil, http.StatusForbidden, "You don't have permission to access this video"
	}
	return v, 0, ""
}

func (s *Server) userByIDLocked(id string) *user {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Server) issueTokenLocked(userID string) string {
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

func (s *Server) toVideoResponse(v *video) videoResponse {
	resp := videoResponse{
		ID:        v.ID,
		UserID:    v.UserID,
		Prompt:    v.Prompt,
		CreatedAt: v.CreatedAt.Format(http.TimeFormat),
		Status:    v.Status,
	}
	if v.Status == "completed" {
		path := "videos/" + v.ID + "/animation.mp4"
		resp.VideoPath = &path
	}
	if v.Thumbnail != "" {
		resp.ThumbnailPath = &v.Thumbnail
	}
	if v.S3URL != "" {
		resp.S3VideoURL = &v.S3URL
	}
	return resp
}

func toUserResponse(u *user) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		CreatedAt:        u.CreatedAt.Format(http.TimeFormat),
		SubscriptionTier: "free",
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func hashPassword(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

func sceneCode(prompt string) string {
	return fmt.Sprintf(`from manim import *


class GeneratedScene(Scene):
    def construct(self):
        title = Text(%q)
        self.play(Write(title))
        self.wait(1)
`, prompt)
}

func fakeMP4(id string) string {
	return "\x00\x00\x00\x18ftypmp42" + id
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
