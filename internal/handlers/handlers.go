package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/storage"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated identity.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
)

// Identity is the authenticated caller, decoded from the session token.
type Identity struct {
	UserID   string
	Username string
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db           *storage.DB
	tokens       *auth.TokenManager
	templateDir  string
	secureCookie bool
	sessionTTL   time.Duration
	expensesAPI  *ResourceAPI
	incomesAPI   *ResourceAPI
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, tokens *auth.TokenManager, templateDir string, secureCookie bool, sessionTTL time.Duration) *Handlers {
	h := &Handlers{
		db:           db,
		tokens:       tokens,
		templateDir:  templateDir,
		secureCookie: secureCookie,
		sessionTTL:   sessionTTL,
	}
	h.expensesAPI = &ResourceAPI{name: "expenses", store: db.Expenses(), identify: h.identityFromRequest}
	h.incomesAPI = &ResourceAPI{name: "incomes", store: db.Incomes(), identify: h.identityFromRequest}
	return h
}

// Router wires all routes and returns the mux.
func (h *Handlers) Router(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.Handle("GET /dashboard", h.AuthMiddleware(http.HandlerFunc(h.Dashboard)))

	for _, api := range []*ResourceAPI{h.expensesAPI, h.incomesAPI} {
		mux.HandleFunc("GET /api/"+api.Name(), api.List)
		mux.HandleFunc("POST /api/"+api.Name(), api.Create)
		mux.HandleFunc("PUT /api/"+api.Name()+"/{id}", api.Update)
		mux.HandleFunc("DELETE /api/"+api.Name()+"/{id}", api.Delete)
	}

	return mux
}

// GetIdentityFromContext retrieves the authenticated identity from request context.
func GetIdentityFromContext(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(UserContextKey).(Identity)
	return id, ok
}

// identityFromRequest decodes the session cookie. A missing, malformed or
// expired token means the caller is anonymous.
func (h *Handlers) identityFromRequest(r *http.Request) (Identity, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return Identity{}, false
	}
	claims, err := h.tokens.Parse(cookie.Value)
	if err != nil {
		return Identity{}, false
	}
	return Identity{UserID: claims.Subject, Username: claims.Username}, true
}

// AuthMiddleware wraps browser page handlers to require authentication.
// Anonymous requests are redirected to the login page.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := h.identityFromRequest(r)
		if !ok {
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Error string
}

// LoginForm renders the login page. An already authenticated user is sent
// back to the dashboard.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identityFromRequest(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, "login.html", LoginViewModel{})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, "login.html", LoginViewModel{Error: "Envio de formulário inválido"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		h.render(w, "login.html", LoginViewModel{Error: "Informe usuário e senha"})
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), username)

	// An unknown username still pays for a hash comparison, and every
	// failure surfaces the same message.
	hash := auth.DummyHash
	if err == nil {
		hash = user.PasswordHash
	}
	match := auth.CheckPassword(password, hash)
	if err != nil || !match {
		h.render(w, "login.html", LoginViewModel{Error: "Usuário ou senha inválidos"})
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to issue session token", "error", err, "username", username)
		h.render(w, "login.html", LoginViewModel{Error: "Ocorreu um erro. Tente novamente."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Logout clears the session cookie. The token itself stays valid until its
// expiry; invalidation is client-side only.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// DashboardViewModel holds data for the dashboard shell. Tables and stat
// cards are filled client-side from the JSON API.
type DashboardViewModel struct {
	Username string
}

// Dashboard renders the dashboard page.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r)
	h.render(w, "dashboard.html", DashboardViewModel{Username: identity.Username})
}

func (h *Handlers) render(w http.ResponseWriter, viewName string, data any) {
	tmpl, err := template.ParseFiles(filepath.Join(h.templateDir, viewName))
	if err != nil {
		slog.Error("Template error", "error", err, "template", viewName)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	if err := tmpl.Execute(w, data); err != nil {
		slog.Error("Template execution error", "error", err, "template", viewName)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LogRequests logs every request with method, path, status and duration.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		slog.InfoContext(r.Context(), "Request completed",
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
