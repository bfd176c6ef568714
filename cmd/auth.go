package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/server"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin links a streaming account: it opens the provider's consent page,
// receives the authorization code on the local callback server, and persists
// the token pair to the store.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.store == nil {
		return fmt.Errorf("%w: store", shared.ErrMissingConfig)
	}
	factory, ok := r.streams.(*services.OAuthStreamingFactory)
	if !ok {
		return fmt.Errorf("%w: provider client id and secret", shared.ErrMissingCredentials)
	}

	oauthConfig := factory.OAuthConfig()
	state := shared.GenerateID()
	handler := server.NewOAuthHandler(oauthConfig, state)

	router := server.NewBasicRouter()
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			handler.Send(server.OAuthResult{})
			r.logger.Error("callback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	// Offline access and forced consent so the provider issues a refresh
	// token even for accounts that authorized before.
	authURL := oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))

	if cmd.Bool("no-browser") {
		r.writePlain("open this URL to authorize:\n\n%s\n", authURL)
	} else if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
		r.writePlain("open this URL to authorize:\n\n%s\n", authURL)
	} else {
		r.writePlain("waiting for authorization in your browser...\n")
	}

	var result server.OAuthResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result = <-handler.Result():
	}

	if err := result.Error(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if result.Token == nil {
		return fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	account := &models.Account{
		SlackUserID:  cmd.String("slack-user"),
		AccessToken:  result.Token.AccessToken,
		RefreshToken: result.Token.RefreshToken,

		AccessTokenExpires: result.Token.Expiry,
	}
	if err := r.store.SaveAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to persist account: %w", err)
	}

	r.logger.Info("account linked", "id", account.ID)
	r.writePlain("account %s linked", account.ID)
	if account.SlackUserID == "" {
		r.writePlain("; no Slack user set, substitution prompts will be skipped for this account")
	}
	return r.writePlain("\n")
}

// AuthStatus reports a linked account's token state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if r.store == nil {
		return fmt.Errorf("%w: store", shared.ErrMissingConfig)
	}

	id := cmd.StringArg("account")
	if id == "" {
		return fmt.Errorf("%w: account", shared.ErrMissingArgument)
	}

	account, err := r.store.Account(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: account %s", shared.ErrNotFound, id)
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	r.writePlainHeader(fmt.Sprintf("Account %s", account.ID))
	r.writePlain("provider user  %s\n", account.ProviderUserID)
	r.writePlain("slack user     %s\n", account.SlackUserID)

	if account.AccessTokenValid() {
		r.writePlain("access token   valid until %s\n", account.AccessTokenExpires.Format(time.RFC3339))
	} else {
		r.writePlain("access token   expired (refreshed on next use)\n")
	}
	if account.RefreshTokenValid() {
		r.writePlain("refresh token  valid\n")
	} else {
		r.writePlain("refresh token  expired, run `playsync auth login`\n")
	}
	return nil
}
