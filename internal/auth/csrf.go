package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aura/internal/logging"
)

var (
	ErrCSRFTokenMissing = errors.New("CSRF token missing")
	ErrCSRFTokenInvalid = errors.New("CSRF token invalid")
)

const csrfCtxKey = "csrf_token"

type CSRFConfig struct {
	CookieName    string
	HeaderName    string
	FormFieldName string
	Secure        bool
	ExemptMethods []string
}

func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		CookieName:    "aura_csrf",
		HeaderName:    "X-CSRFToken",
		FormFieldName: "csrfmiddlewaretoken",
		ExemptMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace},
	}
}

// CSRF implements the double-submit cookie pattern. Tokens are
// random nonces signed with the server secret, so a cookie planted by a
// sibling domain does not validate.
type CSRF struct {
	cfg    CSRFConfig
	secret []byte
}

func NewCSRF(cfg CSRFConfig, secret []byte) *CSRF {
	def := DefaultCSRFConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = def.FormFieldName
	}
	if len(cfg.ExemptMethods) == 0 {
		cfg.ExemptMethods = def.ExemptMethods
	}
	return &CSRF{cfg: cfg, secret: secret}
}

func (m *CSRF) HeaderName() string { return m.cfg.HeaderName }
func (m *CSRF) CookieName() string { return m.cfg.CookieName }
func (m *CSRF) FieldName() string  { return m.cfg.FormFieldName }

// Middleware ensures safe requests carry a token cookie and rejects unsafe
// requests whose header (or form field) does not match it.
func (m *CSRF) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.exempt(c.Request.Method) {
			if _, err := m.EnsureToken(c); err != nil {
				logging.Ctx(c.Request.Context()).Error().Err(err).Msg("csrf: token generation failed")
			}
			c.Next()
			return
		}

		if err := m.validate(c); err != nil {
			logging.Ctx(c.Request.Context()).Warn().Err(err).Str("path", c.Request.URL.Path).Msg("csrf check failed")
			body := gin.H{"error": err.Error()}
			if strings.HasPrefix(c.Request.URL.Path, "/ajax/") {
				body = gin.H{"success": false, "error": err.Error()}
			}
			c.AbortWithStatusJSON(http.StatusForbidden, body)
			return
		}
		c.Next()
	}
}

// EnsureToken returns the request's valid token, issuing a new cookie when
// it has none.
func (m *CSRF) EnsureToken(c *gin.Context) (string, error) {
	if v, ok := c.Get(csrfCtxKey); ok {
		return v.(string), nil
	}
	if ck, err := c.Cookie(m.cfg.CookieName); err == nil && m.verify(ck) {
		c.Set(csrfCtxKey, ck)
		return ck, nil
	}
	token, err := m.generate()
	if err != nil {
		return "", err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Secure:   m.cfg.Secure,
		HttpOnly: false, // read by the widget script
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(csrfCtxKey, token)
	return token, nil
}

func (m *CSRF) exempt(method string) bool {
	for _, em := range m.cfg.ExemptMethods {
		if strings.EqualFold(em, method) {
			return true
		}
	}
	return false
}

func (m *CSRF) validate(c *gin.Context) error {
	cookie, err := c.Cookie(m.cfg.CookieName)
	if err != nil || cookie == "" {
		return ErrCSRFTokenMissing
	}
	sent := c.GetHeader(m.cfg.HeaderName)
	if sent == "" && strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") {
		sent = c.PostForm(m.cfg.FormFieldName)
	}
	if sent == "" {
		return ErrCSRFTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookie), []byte(sent)) != 1 {
		return ErrCSRFTokenInvalid
	}
	if !m.verify(cookie) {
		return ErrCSRFTokenInvalid
	}
	return nil
}

func (m *CSRF) generate() (string, error) {
	nonce := make([]byte, 24)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	n := base64.RawURLEncoding.EncodeToString(nonce)
	return n + "." + m.sign(n), nil
}

func (m *CSRF) verify(token string) bool {
	n, sig, ok := strings.Cut(token, ".")
	if !ok || n == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(m.sign(n)))
}

func (m *CSRF) sign(nonce string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// TokenHandler lets non-browser clients fetch a token; the cookie is set by
// the middleware or here.
func (m *CSRF) TokenHandler(c *gin.Context) {
	token, err := m.EnsureToken(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "csrf token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrf_token": token, "header": m.cfg.HeaderName})
}
