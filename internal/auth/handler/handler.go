package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/KennethHeine/chat-ai/internal/apperr"
	"github.com/KennethHeine/chat-ai/internal/auth/provider"
	"github.com/KennethHeine/chat-ai/internal/copilot"
	"github.com/KennethHeine/chat-ai/internal/logger"
	"github.com/KennethHeine/chat-ai/internal/middleware"
	"github.com/KennethHeine/chat-ai/internal/ratelimit"
	"github.com/KennethHeine/chat-ai/internal/session"

	"github.com/gin-gonic/gin"
)

// Limits are the per-window request budgets of each route. Unknown applies
// to clients that cannot be identified, whatever the route.
type Limits struct {
	Login    int
	Callback int
	Me       int
	Token    int
	Logout   int
	Chat     int
	Unknown  int
}

type Handler struct {
	providers     *provider.Registry
	sessions      *session.Manager
	exchanger     *copilot.Exchanger
	chatClient    *copilot.ChatClient
	secureCookies bool
}

func NewHandler(
	registry *provider.Registry,
	sessions *session.Manager,
	exchanger *copilot.Exchanger,
	chatClient *copilot.ChatClient,
	secureCookies bool,
) *Handler {
	return &Handler{
		providers:     registry,
		sessions:      sessions,
		exchanger:     exchanger,
		chatClient:    chatClient,
		secureCookies: secureCookies,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, limiter *ratelimit.Limiter, limits Limits) {
	limit := func(route string, maxRequests int) gin.HandlerFunc {
		return middleware.RateLimit(limiter, route, maxRequests, limits.Unknown)
	}
	requireAuth := middleware.GinRequireAuth(middleware.NewAuthMiddleware(h.sessions))
	originGuard := middleware.Gin(middleware.OriginGuard)

	authGroup := r.Group("/auth")
	authGroup.GET("/me", limit("me", limits.Me), h.me)
	authGroup.GET("/copilot-token", limit("copilot-token", limits.Token), requireAuth, h.copilotToken)
	authGroup.POST("/logout", limit("logout", limits.Logout), originGuard, h.logout)
	authGroup.GET("/:provider", limit("login", limits.Login), h.login)
	authGroup.GET("/:provider/callback", limit("callback", limits.Callback), h.callback)

	api := r.Group("/api")
	api.POST("/chat", limit("chat", limits.Chat), originGuard, requireAuth, h.chat)

	logger.Debug("auth routes registered", map[string]any{"providers": h.providers.Names()})

	for _, route := range r.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

func (h *Handler) login(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}

	if !p.Configured() {
		apperr.Write(c, apperr.Config(strings.ToUpper(p.Name())+"_CLIENT_ID is not configured"))
		return
	}

	state := generateState(c, h.secureCookies)
	codeChallenge := generatePKCE(c, h.secureCookies)

	c.Redirect(http.StatusFound, p.AuthCodeURL(state, codeChallenge))
}

func (h *Handler) callback(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}

	cookieState := flowCookie(c, stateCookieName)
	codeVerifier := flowCookie(c, pkceCookieName)
	clearFlowCookies(c, h.secureCookies)

	code := c.Query("code")
	if code == "" {
		// The provider redirects back with error instead of code when the
		// user denies access.
		if errParam := c.Query("error"); errParam != "" {
			logger.Warn("oauth callback returned error", map[string]any{
				"provider": p.Name(),
				"error":    errParam,
			})
			msg := c.Query("error_description")
			if msg == "" {
				msg = errParam
			}
			apperr.Write(c, apperr.Client(msg))
			return
		}
		apperr.Write(c, apperr.Client("Missing authorization code"))
		return
	}

	if !validateState(c, cookieState) {
		apperr.Write(c, apperr.Client("invalid oauth state"))
		return
	}
	if codeVerifier == "" {
		apperr.Write(c, apperr.Client("missing pkce verifier"))
		return
	}

	identity, err := p.ExchangeCode(c.Request.Context(), code, codeVerifier)
	if err != nil {
		apperr.Write(c, err)
		return
	}

	// Rotate: a session held before login must not survive it.
	if _, err := h.sessions.Destroy(c.Request); err != nil {
		logger.Warn("failed to destroy previous session", map[string]any{
			"error": err.Error(),
		})
	}

	cookie, err := h.sessions.Create(c.Request.Context(), session.Data{
		IdentityToken: identity.AccessToken,
		User: session.User{
			Login:     identity.Login,
			AvatarURL: identity.AvatarURL,
		},
	})
	if err != nil {
		apperr.Write(c, apperr.Internal("failed to create session", err))
		return
	}
	http.SetCookie(c.Writer, cookie)

	logger.Info("login success", map[string]any{
		"provider": identity.Provider,
		"login":    identity.Login,
		"client":   ratelimit.ClientID(c.Request),
	})

	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) me(c *gin.Context) {
	data := h.sessions.Get(c.Request)
	if !data.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          data.User,
	})
}

// logout is idempotent: it always answers ok with an expiring cookie.
func (h *Handler) logout(c *gin.Context) {
	expired, err := h.sessions.Destroy(c.Request)
	if err != nil {
		logger.Warn("failed to delete session on logout", map[string]any{
			"error": err.Error(),
		})
	}
	http.SetCookie(c.Writer, expired)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) copilotToken(c *gin.Context) {
	cred, err := h.credential(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   cred.Token,
		"baseUrl": cred.BaseURL,
	})
}

type chatRequest struct {
	Messages json.RawMessage `json:"messages"`
	Model    string          `json:"model"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Write(c, apperr.Client("invalid JSON body"))
		return
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(req.Messages, &messages); err != nil || len(messages) == 0 {
		apperr.Write(c, apperr.Client("messages array is required"))
		return
	}

	cred, err := h.credential(c)
	if err != nil {
		apperr.Write(c, err)
		return
	}

	reply, err := h.chatClient.Complete(c.Request.Context(), cred, req.Model, messages)
	if err != nil {
		apperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// credential resolves the downstream credential for the request's session
// and writes a refreshed one back before returning it.
func (h *Handler) credential(c *gin.Context) (*session.Credential, error) {
	cred, refreshed, err := h.exchanger.Resolve(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		return nil, err
	}
	if !refreshed {
		return cred, nil
	}

	cookie, err := h.sessions.Update(c.Request, session.Patch{Credential: cred})
	if err != nil {
		return nil, apperr.Internal("failed to update session", err)
	}
	if cookie != nil {
		http.SetCookie(c.Writer, cookie)
	}
	return cred, nil
}

func (h *Handler) provider(c *gin.Context) (provider.OAuthProvider, bool) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		apperr.Write(c, apperr.NotFound("unknown oauth provider"))
		return nil, false
	}
	return p, true
}
