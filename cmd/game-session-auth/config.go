package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/deviceflow"
	"github.com/wrale/game-session-auth/internal/exchange"
	"github.com/wrale/game-session-auth/internal/minecraft"
	"github.com/wrale/game-session-auth/internal/oauth"
	"github.com/wrale/game-session-auth/internal/transport"
	"github.com/wrale/game-session-auth/internal/xboxlive"
)

// Config holds configuration loaded from environment variables
type Config struct {
	ClientID     string `envconfig:"CLIENT_ID" required:"true"`
	AuthorityURL string `envconfig:"AUTHORITY_URL" default:"https://login.microsoftonline.com/consumers"`
	Scope        string `envconfig:"SCOPE" default:"XboxLive.signin offline_access"`
	RedirectURI  string `envconfig:"REDIRECT_URI"`

	// PollInterval applies when the identity platform omits one
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`

	XBLAuthURL   string `envconfig:"XBL_AUTH_URL" default:"https://user.auth.xboxlive.com/user/authenticate"`
	XSTSAuthURL  string `envconfig:"XSTS_AUTH_URL" default:"https://xsts.auth.xboxlive.com/xsts/authorize"`
	GameLoginURL string `envconfig:"GAME_LOGIN_URL" default:"https://api.minecraftservices.com/authentication/login_with_xbox"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	UserAgent   string        `envconfig:"USER_AGENT" default:"game-session-auth"`

	Port              int           `envconfig:"PORT" default:"8080"`
	RedisURL          string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"45s"`

	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	RateLimitBurst     int           `envconfig:"RATE_LIMIT_BURST" default:"10"`
	RefreshLockTTL     time.Duration `envconfig:"REFRESH_LOCK_TTL" default:"60s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

const (
	// chainCalls is the most upstream calls one refresh or approved poll makes
	chainCalls = 4

	lockMargin = 5 * time.Second
)

// lockTTL returns RefreshLockTTL, raised if needed so a lease outlives the
// slowest full token chain
func (c Config) lockTTL() time.Duration {
	return max(c.RefreshLockTTL, chainCalls*c.HTTPTimeout+lockMargin)
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// services are the token chain components shared by every command
type services struct {
	identity *oauth.Client
	poller   *deviceflow.Poller
	accounts *account.Manager
}

func newServices(cfg Config, logger *slog.Logger) (*services, error) {
	httpClient := transport.New(
		transport.WithTimeout(cfg.HTTPTimeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithLogger(logger),
	)

	identity, err := oauth.NewClient(oauth.Config{
		ClientID:     cfg.ClientID,
		AuthorityURL: cfg.AuthorityURL,
		Scope:        cfg.Scope,
	}, httpClient)
	if err != nil {
		return nil, fmt.Errorf("creating identity client: %w", err)
	}

	broker := xboxlive.NewClient(xboxlive.Config{
		UserAuthURL: cfg.XBLAuthURL,
		XSTSAuthURL: cfg.XSTSAuthURL,
	}, httpClient)
	game := minecraft.NewClient(cfg.GameLoginURL, httpClient)

	pipeline := exchange.New(broker, game, exchange.WithLogger(logger))
	return &services{
		identity: identity,
		poller: deviceflow.NewPoller(identity,
			deviceflow.WithLogger(logger),
			deviceflow.WithDefaultInterval(cfg.PollInterval),
		),
		accounts: account.NewManager(identity, pipeline, logger),
	}, nil
}
