package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/atrium-gateway/atrium/auth"
	"github.com/atrium-gateway/atrium/config"
	"github.com/atrium-gateway/atrium/metrics"
	"github.com/atrium-gateway/atrium/sysinfo"
)

const saveFailedBody = "could not save configuration"

type localAuthRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type authResponse struct {
	IsAdmin   bool   `json:"is_admin"`
	XSRFToken string `json:"xsrf_token"`
}

// management is the handler for requests to the bare hostname: the login
// endpoint, the user and admin APIs, the metrics endpoint and the web UI
// fallback.
type management struct {
	state         *State
	authenticator *auth.Authenticator
	mux           *http.ServeMux
}

func newManagement(state *State, authenticator *auth.Authenticator, m *metrics.Metrics, webDir string) *management {
	h := &management{
		state:         state,
		authenticator: authenticator,
		mux:           http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /auth/local", h.localAuth)
	h.mux.HandleFunc("GET /api/user/whoami", h.whoami)
	h.mux.HandleFunc("GET /api/user/system_info", h.systemInfo)
	h.mux.HandleFunc("POST /api/user/get_share_token", h.getShareToken)
	h.mux.HandleFunc("GET /api/admin/apps", h.getApps)
	h.mux.HandleFunc("POST /api/admin/apps", h.addApp)
	h.mux.HandleFunc("DELETE /api/admin/apps/{id}", h.deleteApp)
	h.mux.HandleFunc("GET /api/admin/users", h.getUsers)
	h.mux.HandleFunc("POST /api/admin/users", h.addUser)
	h.mux.HandleFunc("DELETE /api/admin/users/{login}", h.deleteUser)
	if m != nil {
		h.mux.Handle("GET /metrics", m.Handler())
	}
	h.mux.Handle("/", http.FileServer(http.Dir(webDir)))

	return h
}

func (h *management) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// localAuth verifies the login and password against the user table, sets the
// session cookie and returns the XSRF token the client must echo on API
// calls.
func (h *management) localAuth(w http.ResponseWriter, r *http.Request) {
	var payload localAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "could not decode payload", http.StatusBadRequest)
		return
	}

	token, err := h.authenticator.Authenticate(payload.Login, payload.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	value, err := h.authenticator.EncodeSession(token)
	if err != nil {
		log.Errorf("could not encode user token: %v", err)
		http.Error(w, "could not encode user token", http.StatusInternalServerError)
		return
	}

	c := h.state.Config()
	http.SetCookie(w, auth.Cookie(value, c))
	writeJSON(w, authResponse{
		IsAdmin:   token.IsAdmin(),
		XSRFToken: token.XSRFToken,
	})
}

// whoami returns the logged-in user with the password redacted.
func (h *management) whoami(w http.ResponseWriter, r *http.Request) {
	token, err := h.authenticator.Extract(r)
	if err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}
	writeJSON(w, config.User{
		Login:    token.Login,
		Password: auth.Redacted,
		Roles:    token.Roles,
		Info:     token.Info,
	})
}

func (h *management) systemInfo(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticator.Extract(r); err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}
	sysinfo.Handler(w, r)
}

// getShareToken issues a token scoped to a single hostname and path, for
// handing out as a share link.
func (h *management) getShareToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.authenticator.Extract(r)
	if err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}

	var share auth.Share
	if err := json.NewDecoder(r.Body).Decode(&share); err != nil {
		http.Error(w, "could not decode payload", http.StatusBadRequest)
		return
	}
	if share.Hostname == "" || share.Path == "" {
		http.Error(w, "hostname and path are required", http.StatusBadRequest)
		return
	}

	duration := h.state.Config().SessionDuration()
	if share.ShareForDays > 0 {
		duration = time.Duration(share.ShareForDays) * 24 * time.Hour
	}
	shared := &auth.UserToken{
		Login:   token.Login,
		Roles:   token.Roles,
		Share:   &share,
		Expires: time.Now().Add(duration).Unix(),
		Info:    token.Info,
	}
	value, err := h.authenticator.EncodeShare(shared)
	if err != nil {
		log.Errorf("could not encode share token: %v", err)
		http.Error(w, "could not encode share token", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(value))
}

func (h *management) getApps(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticator.ExtractAdmin(r); err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}
	c := h.state.Config()
	apps := append([]config.App(nil), c.Apps...)
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	writeJSON(w, apps)
}

// addApp creates or updates an app, keyed by id, and swaps the live
// snapshot on success.
func (h *management) addApp(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticator.ExtractAdmin(r); err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}
	var payload config.App
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "could not decode payload", http.StatusBadRequest)
		return
	}

	c := h.state.Config().Clone()
	updated := false
	for i := range c.Apps {
		if c.Apps[i].ID == payload.ID {
			c.Apps[i] = payload
			updated = true
			break
		}
	}
	if !updated {
		c.Apps = append(c.Apps, payload)
	}

	if !h.replace(w, c) {
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte("app created or updated successfully"))
}

func (h *management) deleteApp(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticator.ExtractAdmin(r); err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "app doesn't exist", http.StatusBadRequest)
		return
	}

	c := h.state.Config().Clone()
	pos := -1
	for i := range c.Apps {
		if c.Apps[i].ID == id {
			pos = i
			break
		}
	}
	if pos == -1 {
		http.Error(w, "app doesn't exist", http.StatusBadRequest)
		return
	}
	c.Apps = append(c.Apps[:pos], c.Apps[pos+1:]...)

	if !h.replace(w, c) {
		return
	}
	w.Write([]byte("app deleted successfully"))
}

// getUsers lists the local users with password hashes redacted.
func (h *management) getUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticator.ExtractAdmin(r); err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}
	c := h.state.Config()
	users := make([]config.User, len(c.Users))
	for i, u := range c.Users {
		u.Password = auth.Redacted
		users[i] = u
	}
	writeJSON(w, users)
}

// addUser creates or updates a user, keyed by login. An empty or redacted
// password on update keeps the stored hash; a new user requires a password.
// Plain text passwords are hashed before persisting.
func (h *management) addUser(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticator.ExtractAdmin(r); err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}
	var payload config.User
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "could not decode payload", http.StatusBadRequest)
		return
	}
	payload.Login = strings.TrimSpace(payload.Login)

	c := h.state.Config().Clone()
	existing := c.FindUser(payload.Login)
	switch {
	case payload.Password == "" || payload.Password == auth.Redacted:
		if existing == nil {
			http.Error(w, "password is required", http.StatusNotAcceptable)
			return
		}
		payload.Password = existing.Password
	default:
		hash, err := auth.HashPassword(payload.Password)
		if err != nil {
			log.Errorf("could not hash password: %v", err)
			http.Error(w, "could not hash password", http.StatusInternalServerError)
			return
		}
		payload.Password = hash
	}

	if existing != nil {
		for i := range c.Users {
			if c.Users[i].Login == payload.Login {
				c.Users[i] = payload
				break
			}
		}
	} else {
		c.Users = append(c.Users, payload)
	}

	if !h.replace(w, c) {
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte("user created or updated successfully"))
}

func (h *management) deleteUser(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticator.ExtractAdmin(r); err != nil {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}
	login := r.PathValue("login")

	c := h.state.Config().Clone()
	pos := -1
	for i := range c.Users {
		if c.Users[i].Login == login {
			pos = i
			break
		}
	}
	if pos == -1 {
		http.Error(w, "user does not exist", http.StatusBadRequest)
		return
	}
	c.Users = append(c.Users[:pos], c.Users[pos+1:]...)

	if !h.replace(w, c) {
		return
	}
	w.Write([]byte("user deleted successfully"))
}

// replace normalizes and validates the mutated configuration and swaps it
// into the live state. It writes the error response on failure: invalid
// input is the client's fault, a failed write is not.
func (h *management) replace(w http.ResponseWriter, c *config.Config) bool {
	c.Normalize()
	if err := c.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.state.Replace(c); err != nil {
		if errors.Is(err, ErrPersist) {
			log.Errorf("could not save configuration: %v", err)
			http.Error(w, saveFailedBody, http.StatusInternalServerError)
			return false
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("could not encode response: %v", err)
	}
}
