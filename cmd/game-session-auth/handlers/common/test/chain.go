package test

import (
	"net/http"
	"testing"
	"time"

	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/exchange"
	"github.com/wrale/game-session-auth/internal/providertest"
)

// Values returned by ReplyChain
const (
	RefreshToken = "refresh-1"
	ConsoleToken = "xbl-1"
	UserHash     = "uhs-1"
	GameToken    = "game-1"

	GameLifetime    = 24 * time.Hour
	ConsoleLifetime = 14 * 24 * time.Hour
)

// ReplyChain makes every hop of the token chain succeed
func ReplyChain(srv *providertest.Server) {
	srv.Reply(providertest.PathToken, http.StatusOK, providertest.TokenBody("ms-access-1", RefreshToken, 3600))
	srv.Reply(providertest.PathUserAuth, http.StatusOK,
		providertest.BrokerBody(ConsoleToken, UserHash, Epoch, Epoch.Add(ConsoleLifetime)))
	srv.Reply(providertest.PathXSTS, http.StatusOK,
		providertest.BrokerBody("xsts-1", UserHash, Epoch, Epoch.Add(GameLifetime)))
	srv.Reply(providertest.PathGameLogin, http.StatusOK,
		providertest.GameBody(GameToken, int64(GameLifetime/time.Second)))
}

// ChainBundle is the bundle produced by ReplyChain when clock reads Epoch
func ChainBundle() *account.Bundle {
	return &account.Bundle{
		RefreshToken: RefreshToken,
		ConsoleIdentity: account.ConsoleIdentity{
			Token:     ConsoleToken,
			UserHash:  UserHash,
			ExpiresAt: Epoch.Add(ConsoleLifetime),
		},
		GameSession: account.GameSession{
			Token:     GameToken,
			ExpiresAt: Epoch.Add(GameLifetime),
		},
	}
}

// NewAccounts returns an account manager wired to srv and clock
func NewAccounts(t *testing.T, srv *providertest.Server, clock *Clock) *account.Manager {
	t.Helper()
	identity, broker, game := srv.Clients(t)
	pipeline := exchange.New(broker, game,
		exchange.WithClock(clock.Now),
		exchange.WithLogger(providertest.DiscardLogger()),
	)
	return account.NewManager(identity, pipeline, providertest.DiscardLogger())
}
