package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/moodjournal/api"
	"github.com/MrEthical07/moodjournal/jwt"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessCookie  = "jwt_token"
	RefreshCookie = "refresh_token"
	AdminCookie   = "admin_token"
)

// Options configures a Server. Zero values take defaults.
type Options struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AdminUser     string
	AdminPassword string
	// Secret signs access tokens.
	Secret []byte
	Logger *zap.Logger
}

type user struct {
	id           uint64
	email        string
	name         string
	passwordHash []byte
}

type refreshToken struct {
	id        uint64
	userID    uint64
	value     string
	createdAt time.Time
	expiresAt time.Time
}

// Server is a fake API rooted at URL()+"/api".
type Server struct {
	srv    *httptest.Server
	signer *jwt.Manager
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	users       map[uint64]*user
	entries     map[uint64]*api.Entry
	refresh     map[string]*refreshToken
	admins      map[string]struct{}
	calls       map[string]int
	nextUser    uint64
	nextEntry   uint64
	nextRefresh uint64

	gen             atomic.Uint64
	failRefresh     atomic.Bool
	rejectRefreshed atomic.Bool
	refreshDelay    atomic.Int64
	refreshGate     atomic.Pointer[chan struct{}]
}

// New starts a server. Call Close when done.
func New(opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.AdminUser == "" {
		opts.AdminUser = "admin"
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = "admin"
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("apitest-secret-0123456789")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     opts.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    opts.Secret,
		Issuer:        "moodjournal-apitest",
	})
	if err != nil {
		panic("apitest: " + err.Error())
	}

	s := &Server{
		signer:  signer,
		opts:    opts,
		logger:  logger.Named("apitest"),
		users:   make(map[uint64]*user),
		entries: make(map[uint64]*api.Entry),
		refresh: make(map[string]*refreshToken),
		admins:  make(map[string]struct{}),
		calls:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.countCalls)
	s.registerRoutes(r)
	s.srv = httptest.NewServer(r)
	return s
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)
		r.With(s.requireUser).Get("/auth/me", s.handleMe)

		r.Route("/mood/entries", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handleCreateEntry)
			r.Get("/{id}", s.handleGetEntry)
			r.Put("/{id}", s.handleUpdateEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
			r.Post("/{id}/restore", s.handleRestoreEntry)
		})

		r.Post("/admin/login", s.handleAdminLogin)
		r.Post("/admin/logout", s.handleAdminLogout)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/admin/users", s.handleListUsers)
			r.Post("/admin/users", s.handleCreateUser)
			r.Get("/admin/users/{id}", s.handleGetUser)
			r.Put("/admin/users/{id}", s.handleUpdateUser)
			r.Delete("/admin/users/{id}", s.handleDeleteUser)
			r.Get("/admin/refresh-tokens", s.handleListRefreshTokens)
			r.Delete("/admin/refresh-tokens/{value}", s.handleDeleteRefreshToken)
		})
	})
}

// URL is the server root. Clients use URL()+"/api" as their base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns an http.Client configured for the test server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

func (s *Server) Close() {
	s.srv.Close()
}

// AddUser registers a user and returns its id.
func (s *Server) AddUser(email, name, password string) uint64 {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic("apitest: " + err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	s.users[s.nextUser] = &user{id: s.nextUser, email: email, name: name, passwordHash: hash}
	return s.nextUser
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.gen.Add(1)
}

// FailRefresh makes the refresh endpoint answer 401.
func (s *Server) FailRefresh(fail bool) {
	s.failRefresh.Store(fail)
}

// RejectRefreshed makes protected endpoints reject tokens issued by refresh.
func (s *Server) RejectRefreshed(reject bool) {
	s.rejectRefreshed.Store(reject)
}

// RefreshDelay slows every refresh by d.
func (s *Server) RefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// BlockRefresh holds refresh calls until the returned func is called.
func (s *Server) BlockRefresh() (release func()) {
	gate := make(chan struct{})
	s.refreshGate.Store(&gate)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.refreshGate.Store(nil)
			close(gate)
		})
	}
}

// Calls returns how many requests hit path, e.g. "/api/auth/refresh".
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// ResetCalls zeroes all call counters.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	s.calls = make(map[string]int)
	s.mu.Unlock()
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

func pathID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}
