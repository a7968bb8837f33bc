package app

import (
	"context"
	"net/http"
	"strings"

	"github.com/KennethHeine/chat-ai/internal/auth/handler"
	"github.com/KennethHeine/chat-ai/internal/auth/provider"
	"github.com/KennethHeine/chat-ai/internal/auth/provider/github"
	"github.com/KennethHeine/chat-ai/internal/config"
	"github.com/KennethHeine/chat-ai/internal/copilot"
	"github.com/KennethHeine/chat-ai/internal/middleware"
	"github.com/KennethHeine/chat-ai/internal/ratelimit"
	"github.com/KennethHeine/chat-ai/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg *config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessions := session.NewManager(infra.Sessions, session.CookieOptions{
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.SecureCookie(),
	})

	// Every upstream call is bounded by this client's timeout.
	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}

	var redirectURL string
	if cfg.PublicURL != "" {
		redirectURL = strings.TrimRight(cfg.PublicURL, "/") + "/auth/github/callback"
	}
	githubProvider := github.New(github.Config{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  redirectURL,
		AuthorizeURL: cfg.GitHubAuthorizeURL,
		TokenURL:     cfg.GitHubTokenURL,
		APIURL:       cfg.GitHubAPIURL,
		HTTPClient:   upstream,
	})

	registry := provider.NewRegistry(githubProvider)

	exchanger := copilot.NewExchanger(
		copilot.WithHTTPClient(upstream),
		copilot.WithTokenURL(cfg.CopilotTokenURL),
		copilot.WithDefaultBaseURL(cfg.CopilotDefaultBaseURL),
	)
	chatClient := copilot.NewChatClient(upstream, cfg.ChatModel)

	authHandler := handler.NewHandler(
		registry,
		sessions,
		exchanger,
		chatClient,
		cfg.SecureCookie(),
	)

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.AppEnv == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	limiter := ratelimit.New()

	authHandler.RegisterRoutes(router, limiter, handler.Limits{
		Login:    cfg.RateLimitLogin,
		Callback: cfg.RateLimitCallback,
		Me:       cfg.RateLimitMe,
		Token:    cfg.RateLimitToken,
		Logout:   cfg.RateLimitLogout,
		Chat:     cfg.RateLimitChat,
		Unknown:  cfg.RateLimitUnknown,
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Unmatched paths share the default budget.
	router.NoRoute(
		middleware.RateLimit(limiter, "default", cfg.RateLimitDefault, cfg.RateLimitUnknown),
		func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		},
	)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, sessions.Close, nil
}
