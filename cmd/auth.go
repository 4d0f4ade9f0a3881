package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/upcoming/internal/formatter"
	"github.com/desertthunder/upcoming/internal/server"
	"github.com/desertthunder/upcoming/internal/services"
	"github.com/desertthunder/upcoming/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the authorization code flow: it serves the callback on the redirect uri's address, opens the
// consent page and stores the token once Spotify redirects back.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.oauth == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	host, port, err := callbackAddr(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler(r.oauth, r.creds)
	srv := server.New(server.Options{Host: host, Port: port, ShutdownTimeout: 5 * time.Second, Logger: r.logger}, handler)

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	authURL := handler.Begin()
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to authorize:\n%s\n", authURL)
	} else if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to authorize:\n%s\n", authURL)
	} else {
		r.writePlain("Waiting for authorization in the browser...\n")
	}

	select {
	case result := <-handler.Result():
		cancel()
		<-errCh
		if err := result.Error(); err != nil {
			return err
		}
	case err := <-errCh:
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: timed out waiting for the callback", shared.ErrAuthFailed)
	}

	r.logger.Info("spotify authorization stored")
	r.writePlain("%s Authorization successful\n", r.palette.OK("✓"))
	r.writePlain("You can now run: upcoming sync run\n")
	return nil
}

// AuthStatus reports the stored token state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	status := r.creds.Status(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Authorized {
		r.writePlain("Authentication: %s\n", r.palette.Err("✗ Not authenticated"))
		return r.writePlain("Run 'upcoming auth login' to authorize\n")
	}

	r.writePlain("Authentication: %s\n", r.palette.OK("✓ Authenticated"))
	expires := formatter.Ago(&status.ExpiresAt, time.Now())
	if status.Expired {
		r.writePlain("Access token: %s (expired %s)\n", r.palette.Warn("expired"), expires)
	} else {
		r.writePlain("Access token: valid, expires %s\n", expires)
	}
	if status.Refresh {
		r.writePlain("Refresh token: stored\n")
	} else {
		r.writePlain("Refresh token: %s\n", r.palette.Warn("missing, run 'upcoming auth login' when the token expires"))
	}
	return nil
}

// callbackAddr returns the host and port the redirect uri points at.
func callbackAddr(redirectURI string) (string, int, error) {
	if redirectURI == "" {
		redirectURI = services.DefaultRedirectURI
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", 0, fmt.Errorf("%w: redirect_uri %q: %v", shared.ErrInvalidConfig, redirectURI, err)
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, fmt.Errorf("%w: redirect_uri %q must include a port", shared.ErrInvalidConfig, redirectURI)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: redirect_uri port %q", shared.ErrInvalidConfig, portStr)
	}
	return host, port, nil
}
