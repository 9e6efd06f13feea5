package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/atrium-gateway/atrium/secrets"
)

const (
	// DefaultHostname is the authoritative domain used when the
	// configuration does not set one.
	DefaultHostname = "atrium.io"

	// HostnameEnvVar overrides Config.Hostname when set.
	HostnameEnvVar = "MAIN_HOSTNAME"

	// HTTPPort is the port the gateway listens on when it does not
	// terminate TLS itself.
	HTTPPort = 8080

	cookieKeyLength    = 64
	defaultSessionDays = 1
)

var (
	// ErrUnreadable is returned when the configuration file cannot be read.
	ErrUnreadable = errors.New("could not read config file")

	// ErrMalformed is returned when the configuration file cannot be parsed.
	ErrMalformed = errors.New("could not parse config file")
)

// TLSMode selects how the gateway expects TLS to be terminated.
type TLSMode string

const (
	TLSModeNo          TLSMode = "No"
	TLSModeBehindProxy TLSMode = "BehindProxy"
	TLSModeAuto        TLSMode = "Auto"
)

// IsSecure reports whether clients reach the gateway over HTTPS, either
// terminated upstream or by the gateway itself.
func (m TLSMode) IsSecure() bool {
	return m == TLSModeBehindProxy || m == TLSModeAuto
}

// OnlyOfficeConfig carries the document server integration settings. The
// gateway only persists them; the integration itself lives in the web UI.
type OnlyOfficeConfig struct {
	Title     string `yaml:"title,omitempty" json:"title,omitempty"`
	Server    string `yaml:"server" json:"server"`
	JWTSecret string `yaml:"jwt_secret" json:"jwt_secret"`
}

// OpenIdConfig carries the OpenID Connect client settings. Persisted only.
type OpenIdConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	AuthURL      string `yaml:"auth_url" json:"auth_url"`
	TokenURL     string `yaml:"token_url" json:"token_url"`
	UserinfoURL  string `yaml:"userinfo_url" json:"userinfo_url"`
	AdminsGroup  string `yaml:"admins_group,omitempty" json:"admins_group,omitempty"`
}

// App is a configured backend service, either proxied to an upstream origin
// or served as a static directory.
type App struct {
	ID                    int      `yaml:"id" json:"id"`
	Name                  string   `yaml:"name" json:"name"`
	Icon                  string   `yaml:"icon,omitempty" json:"icon,omitempty"`
	Color                 int      `yaml:"color,omitempty" json:"color,omitempty"`
	IsProxy               bool     `yaml:"is_proxy,omitempty" json:"is_proxy,omitempty"`
	Host                  string   `yaml:"host" json:"host"`
	Target                string   `yaml:"target" json:"target"`
	Secured               bool     `yaml:"secured,omitempty" json:"secured,omitempty"`
	Login                 string   `yaml:"login,omitempty" json:"login,omitempty"`
	Password              string   `yaml:"password,omitempty" json:"password,omitempty"`
	OpenPath              string   `yaml:"openpath,omitempty" json:"openpath,omitempty"`
	Roles                 []string `yaml:"roles,omitempty" json:"roles,omitempty"`
	InjectSecurityHeaders bool     `yaml:"inject_security_headers,omitempty" json:"inject_security_headers,omitempty"`
	Subdomains            []string `yaml:"subdomains,omitempty" json:"subdomains,omitempty"`
	ForwardUserMail       bool     `yaml:"forward_user_mail,omitempty" json:"forward_user_mail,omitempty"`
}

// UserInfo is optional identity information attached to a user.
type UserInfo struct {
	Firstname string `yaml:"firstname,omitempty" json:"firstname,omitempty"`
	Lastname  string `yaml:"lastname,omitempty" json:"lastname,omitempty"`
	Email     string `yaml:"email,omitempty" json:"email,omitempty"`
}

// User is a local account. Password holds a bcrypt hash at rest and is
// replaced by a redaction marker whenever a user is returned over HTTP.
type User struct {
	Login    string    `yaml:"login" json:"login"`
	Password string    `yaml:"password,omitempty" json:"password,omitempty"`
	Roles    []string  `yaml:"roles,omitempty" json:"roles,omitempty"`
	Info     *UserInfo `yaml:"info,omitempty" json:"info,omitempty"`
}

// Config is the declarative gateway configuration, loaded from and persisted
// to a single YAML file.
type Config struct {
	Hostname            string            `yaml:"hostname" json:"hostname"`
	Domain              string            `yaml:"domain,omitempty" json:"domain,omitempty"`
	TLSMode             TLSMode           `yaml:"tls_mode" json:"tls_mode"`
	LetsencryptEmail    string            `yaml:"letsencrypt_email,omitempty" json:"letsencrypt_email,omitempty"`
	CookieKey           string            `yaml:"cookie_key,omitempty" json:"cookie_key,omitempty"`
	LogToFile           bool              `yaml:"log_to_file,omitempty" json:"log_to_file,omitempty"`
	SessionDurationDays int               `yaml:"session_duration_days,omitempty" json:"session_duration_days,omitempty"`
	OnlyOffice          *OnlyOfficeConfig `yaml:"onlyoffice_config,omitempty" json:"onlyoffice_config,omitempty"`
	OpenID              *OpenIdConfig     `yaml:"openid_config,omitempty" json:"openid_config,omitempty"`
	Apps                []App             `yaml:"apps,omitempty" json:"apps,omitempty"`
	Users               []User            `yaml:"users,omitempty" json:"users,omitempty"`
}

// writeMu serializes configuration file writes across the process.
var writeMu sync.Mutex

// Read deserializes the configuration file without applying any of the
// derived defaults. Most callers want Load.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	c := &Config{Hostname: DefaultHostname}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}

// Load reads the configuration file and applies the startup defaults: a
// cookie key is generated and persisted on first load, MAIN_HOSTNAME
// overrides the hostname, and the cookie domain falls back to the hostname.
func Load(path string) (*Config, error) {
	c, err := Read(path)
	if err != nil {
		return nil, err
	}
	if c.CookieKey == "" {
		c.CookieKey = secrets.RandomString(cookieKeyLength)
		if err := c.Save(path); err != nil {
			return nil, err
		}
	}
	if h := os.Getenv(HostnameEnvVar); h != "" {
		c.Hostname = h
	}
	if c.Domain == "" {
		c.Domain = c.Hostname
	}
	return c, nil
}

// Save persists the configuration, sorting apps by id first so the on-disk
// order is stable. The file is written to a temporary sibling and renamed,
// so concurrent readers see either the old or the new content.
func (c *Config) Save(path string) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	sort.Slice(c.Apps, func(i, j int) bool { return c.Apps[i].ID < c.Apps[j].ID })
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".atrium-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temporary configuration file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close configuration file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace configuration file: %w", err)
	}
	return nil
}

// Scheme is the public scheme clients use to reach the gateway.
func (c *Config) Scheme() string {
	if c.TLSMode.IsSecure() {
		return "https"
	}
	return "http"
}

// FullDomain is the absolute URL of the management host, where the login
// page lives.
func (c *Config) FullDomain() string {
	if c.TLSMode == TLSModeNo {
		return fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, HTTPPort)
	}
	return fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
}

// SessionDuration is the lifetime of issued session tokens.
func (c *Config) SessionDuration() time.Duration {
	days := c.SessionDurationDays
	if days <= 0 {
		days = defaultSessionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Clone returns a copy of the configuration whose app and user slices and
// nested settings can be modified without affecting the original. Elements
// are copied by value; callers replace whole elements rather than mutating
// their inner slices.
func (c *Config) Clone() *Config {
	cc := *c
	cc.Apps = append([]App(nil), c.Apps...)
	cc.Users = append([]User(nil), c.Users...)
	if c.OnlyOffice != nil {
		oo := *c.OnlyOffice
		cc.OnlyOffice = &oo
	}
	if c.OpenID != nil {
		oid := *c.OpenID
		cc.OpenID = &oid
	}
	return &cc
}

// FindUser returns the user with the given login, or nil.
func (c *Config) FindUser(login string) *User {
	for i := range c.Users {
		if c.Users[i].Login == login {
			return &c.Users[i]
		}
	}
	return nil
}

// Normalize trims whitespace from every configured string and drops empty
// list entries. It runs on every load and on every admin mutation, so the
// live state never differs from what a reload of the persisted file would
// produce.
func (c *Config) Normalize() {
	c.Hostname = strings.TrimSpace(c.Hostname)
	c.Domain = strings.TrimSpace(c.Domain)
	c.LetsencryptEmail = strings.TrimSpace(c.LetsencryptEmail)
	c.CookieKey = strings.TrimSpace(c.CookieKey)
	for i := range c.Apps {
		a := &c.Apps[i]
		a.Name = strings.TrimSpace(a.Name)
		a.Host = strings.TrimSpace(a.Host)
		a.Target = strings.TrimSpace(a.Target)
		a.Login = strings.TrimSpace(a.Login)
		a.Password = strings.TrimSpace(a.Password)
		a.OpenPath = strings.TrimSpace(a.OpenPath)
		a.Roles = trimRemoveEmpties(a.Roles)
		a.Subdomains = trimRemoveEmpties(a.Subdomains)
	}
	for i := range c.Users {
		u := &c.Users[i]
		u.Login = strings.TrimSpace(u.Login)
		u.Roles = trimRemoveEmpties(u.Roles)
		if u.Info != nil {
			u.Info.Firstname = strings.TrimSpace(u.Info.Firstname)
			u.Info.Lastname = strings.TrimSpace(u.Info.Lastname)
			u.Info.Email = strings.TrimSpace(u.Info.Email)
		}
	}
}

// Validate rejects configurations violating the uniqueness invariants.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("hostname must not be empty")
	}
	appIDs := make(map[int]bool, len(c.Apps))
	for _, a := range c.Apps {
		if appIDs[a.ID] {
			return fmt.Errorf("duplicate app id %d", a.ID)
		}
		appIDs[a.ID] = true
	}
	logins := make(map[string]bool, len(c.Users))
	for _, u := range c.Users {
		if u.Login == "" {
			return fmt.Errorf("user login must not be empty")
		}
		if logins[u.Login] {
			return fmt.Errorf("duplicate user login %q", u.Login)
		}
		logins[u.Login] = true
	}
	return nil
}

func trimRemoveEmpties(values []string) []string {
	if values == nil {
		return nil
	}
	trimmed := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}
