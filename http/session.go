package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// SessionManager carries the logged-in browser session needed to fetch the
// watch-history page. Without valid YouTube cookies the page renders empty,
// so every page-fetch client is built through a session.
type SessionManager struct {
	jar        http.CookieJar
	cookiePath string
	mu         sync.RWMutex
	config     SessionConfig
}

// SessionConfig configures session behavior.
type SessionConfig struct {
	// PersistCookies enables saving/loading cookies from disk.
	PersistCookies bool

	// CookieFile is the path to the cookie file (if PersistCookies is true).
	CookieFile string

	// UserAgent for HTTP requests. Watch-history pages are served the
	// logged-in markup only to browser user agents.
	UserAgent string

	// RefererURL to use in requests.
	RefererURL string

	// HeadersToAdd are custom headers to include in all requests.
	HeadersToAdd map[string]string
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PersistCookies: false,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		RefererURL:     "https://www.youtube.com",
		HeadersToAdd:   make(map[string]string),
	}
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultSessionConfig().UserAgent
	}
	if cfg.HeadersToAdd == nil {
		cfg.HeadersToAdd = make(map[string]string)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	sm := &SessionManager{
		jar:        jar,
		cookiePath: cfg.CookieFile,
		config:     cfg,
	}

	if cfg.PersistCookies && cfg.CookieFile != "" {
		if err := sm.LoadCookies(); err != nil {
			return nil, fmt.Errorf("load cookies: %w", err)
		}
	}

	return sm, nil
}

// GetClient returns a fetch client that sends this session's cookies and
// headers with every request.
func (sm *SessionManager) GetClient(baseConfig *Config) *Client {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if baseConfig == nil {
		baseConfig = DefaultConfig()
	}

	httpClient := &http.Client{
		Timeout: baseConfig.Timeout,
		Jar:     sm.jar,
		Transport: &http.Transport{
			MaxIdleConns:        baseConfig.Transport.MaxIdleConns,
			MaxIdleConnsPerHost: baseConfig.Transport.MaxIdleConnsPerHost,
			MaxConnsPerHost:     baseConfig.Transport.MaxConnsPerHost,
			IdleConnTimeout:     baseConfig.Transport.IdleConnTimeout,
			ForceAttemptHTTP2:   baseConfig.Transport.ForceAttemptHTTP2,
			DisableKeepAlives:   baseConfig.Transport.DisableKeepAlives,
		},
	}

	return &Client{
		base:           httpClient,
		config:         baseConfig,
		rateLimiter:    NewRateLimiter(baseConfig.RateLimiter),
		circuitBreaker: NewCircuitBreaker(baseConfig.CircuitBreaker),
		session:        sm,
	}
}

// AddHeader adds a header to be included in all requests.
func (sm *SessionManager) AddHeader(key, value string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.config.HeadersToAdd[key] = value
}

// GetHeaders returns the headers to add to requests.
func (sm *SessionManager) GetHeaders() map[string]string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	headers := make(map[string]string, len(sm.config.HeadersToAdd)+2)
	for k, v := range sm.config.HeadersToAdd {
		headers[k] = v
	}

	headers["User-Agent"] = sm.config.UserAgent
	if sm.config.RefererURL != "" {
		headers["Referer"] = sm.config.RefererURL
	}

	return headers
}

// SaveCookies saves the session's YouTube cookies to the cookie file.
func (sm *SessionManager) SaveCookies() error {
	if !sm.config.PersistCookies || sm.cookiePath == "" {
		return nil
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	youtubeURL, _ := url.Parse("https://www.youtube.com")
	cookies := sm.jar.Cookies(youtubeURL)

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(sm.cookiePath), 0700); err != nil {
		return fmt.Errorf("create cookie directory: %w", err)
	}

	// Cookies are credentials; keep the file private.
	if err := os.WriteFile(sm.cookiePath, data, 0600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}

	return nil
}

// LoadCookies loads cookies from the cookie file. A missing file is not an
// error; the session simply starts logged out.
func (sm *SessionManager) LoadCookies() error {
	if !sm.config.PersistCookies || sm.cookiePath == "" {
		return nil
	}

	data, err := os.ReadFile(sm.cookiePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cookie file: %w", err)
	}

	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("unmarshal cookies: %w", err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, domain := range []string{"https://www.youtube.com", "https://youtube.com", "https://m.youtube.com"} {
		if u, err := url.Parse(domain); err == nil {
			sm.jar.SetCookies(u, cookies)
		}
	}

	return nil
}

// ClearCookies removes all cookies from the session.
func (sm *SessionManager) ClearCookies() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if jar, err := cookiejar.New(nil); err == nil {
		sm.jar = jar
	}
}

// SetReferer sets the referer URL.
func (sm *SessionManager) SetReferer(url string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.config.RefererURL = url
}

// HasCookies reports whether the session holds any YouTube cookies.
func (sm *SessionManager) HasCookies() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	youtubeURL, _ := url.Parse("https://www.youtube.com")
	return len(sm.jar.Cookies(youtubeURL)) > 0
}

// Close saves cookies and cleans up resources.
func (sm *SessionManager) Close() error {
	return sm.SaveCookies()
}
