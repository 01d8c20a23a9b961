package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	fakeaccountrepo "github.com/overbright/go-identity-service/accounts/repofake"
	"github.com/overbright/go-identity-service/authflow"
	"github.com/overbright/go-identity-service/internal/config"
	"github.com/overbright/go-identity-service/provider"
	"github.com/overbright/go-identity-service/provider/google"
	"github.com/overbright/go-identity-service/scopes"
	"github.com/overbright/go-identity-service/server"
	"github.com/overbright/go-identity-service/statestore"
	"github.com/overbright/go-identity-service/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	flows, tokens, err := buildFlowService(c)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: server.New(c, flows, tokens)}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildFlowService(c config.Config) (*authflow.Service, *token.Manager, error) {
	ctx := context.Background()

	var googleCfg google.Config
	if err := env.Parse(&googleCfg); err != nil {
		return nil, nil, fmt.Errorf("google config: %w", err)
	}
	googleClient, err := google.New(ctx, googleCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("google adapter: %w", err)
	}

	secret := c.GetSigningSecret()
	if secret == "" {
		// Ephemeral secret: existing sessions do not survive a restart
		secret, err = statestore.NewToken()
		if err != nil {
			return nil, nil, err
		}
	}

	tokens := token.New(
		token.NewHMACSigner(secret),
		token.WithIssuer(c.GetBaseURL()),
		token.WithTokenExpiry(c.GetDefaultAccessTokenExpiry(), c.GetDefaultRefreshTokenExpiry()),
	)

	var states statestore.Store
	if addr := c.GetRedisAddr(); addr != "" {
		states = statestore.NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}))
	} else {
		states = statestore.NewInMemoryStore(statestore.WithMaxEntries(c.GetMaxPendingFlows()))
	}

	// TODO: replace with the account-service backed repo once its client
	// library is published
	accountRepo := fakeaccountrepo.NewFakeAccountRepo()

	flows, err := authflow.NewService(authflow.Deps{
		Accounts:  accountRepo,
		Providers: map[string]provider.Client{googleClient.Name(): googleClient},
		States:    states,
		Tokens:    tokens,
		Scopes:    scopes.NewLedger(accountRepo),
	},
		authflow.WithLogger(zlog.Logger),
		authflow.WithStateTTL(c.GetStateTTL()),
		authflow.WithHandoffTTL(c.GetTwoFactorHandoffTTL()),
		authflow.WithRefreshRotation(c.GetRotateRefreshTokens()),
	)
	if err != nil {
		return nil, nil, err
	}
	return flows, tokens, nil
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
