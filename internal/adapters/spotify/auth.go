package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/okian/earworms/pkg/logger"
)

// Flow is the OAuth authorization-code flow used by Authenticate.
// *spotifyauth.Authenticator satisfies it.
type Flow interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Token(ctx context.Context, state string, r *http.Request, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	Client(ctx context.Context, token *oauth2.Token) *http.Client
}

// AuthConfig holds the application credentials and token cache location.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenFile    string
	// Public requests playlist-modify-public; otherwise playlist-modify-private.
	Public bool
}

type authSettings struct {
	flow     Flow
	listener net.Listener
	prompt   io.Writer
	log      logger.Logger
}

// AuthOption configures Authenticate.
type AuthOption func(*authSettings)

// WithFlow replaces the Spotify authorization flow.
func WithFlow(f Flow) AuthOption {
	return func(s *authSettings) { s.flow = f }
}

// WithListener serves the callback on l instead of listening on the
// redirect URI's host.
func WithListener(l net.Listener) AuthOption {
	return func(s *authSettings) { s.listener = l }
}

// WithPrompt sets where the authorization URL is printed.
func WithPrompt(w io.Writer) AuthOption {
	return func(s *authSettings) {
		if w != nil {
			s.prompt = w
		}
	}
}

// WithAuthLogger sets the logger used during authorization.
func WithAuthLogger(l logger.Logger) AuthOption {
	return func(s *authSettings) {
		if l != nil {
			s.log = l
		}
	}
}

// Authenticate returns an HTTP client authorized for playlist changes. A
// cached token is reused; otherwise the user is sent through the browser
// flow and the resulting token is written to cfg.TokenFile.
func Authenticate(ctx context.Context, cfg AuthConfig, opts ...AuthOption) (*http.Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	scope := spotifyauth.ScopePlaylistModifyPrivate
	if cfg.Public {
		scope = spotifyauth.ScopePlaylistModifyPublic
	}
	s := authSettings{
		flow: spotifyauth.New(
			spotifyauth.WithClientID(cfg.ClientID),
			spotifyauth.WithClientSecret(cfg.ClientSecret),
			spotifyauth.WithRedirectURL(cfg.RedirectURI),
			spotifyauth.WithScopes(scope),
		),
		prompt: os.Stdout,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	if cfg.TokenFile != "" {
		tok, err := loadToken(cfg.TokenFile)
		switch {
		case err == nil:
			s.log.Debug(ctx, "using cached spotify token", logger.String("file", cfg.TokenFile))
			return s.flow.Client(ctx, tok), nil
		case !errors.Is(err, fs.ErrNotExist):
			s.log.Warn(ctx, "ignoring spotify token cache", logger.Error(err))
		}
	}

	tok, err := authorize(ctx, cfg, s)
	if err != nil {
		return nil, err
	}
	if cfg.TokenFile != "" {
		if err := saveToken(cfg.TokenFile, tok); err != nil {
			s.log.Warn(ctx, "could not cache spotify token", logger.Error(err))
		}
	}
	return s.flow.Client(ctx, tok), nil
}

type callbackResult struct {
	tok *oauth2.Token
	err error
}

func authorize(ctx context.Context, cfg AuthConfig, s authSettings) (*oauth2.Token, error) {
	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: bad redirect uri %q", ErrAuthFailed, cfg.RedirectURI)
	}

	ln := s.listener
	if ln == nil {
		ln, err = net.Listen("tcp", redirect.Host)
		if err != nil {
			return nil, fmt.Errorf("%w: listen %s: %w", ErrAuthFailed, redirect.Host, err)
		}
	}

	state := uuid.NewString()
	results := make(chan callbackResult, 1)
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		tok, err := s.flow.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "authorization failed", http.StatusForbidden)
		} else {
			fmt.Fprintln(w, "Login completed, you can close this window.")
		}
		select {
		case results <- callbackResult{tok: tok, err: err}:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln) //nolint:errcheck // returns ErrServerClosed on shutdown
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	fmt.Fprintf(s.prompt, "Log in to Spotify by visiting:\n%s\n", s.flow.AuthURL(state))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthFailed, res.err)
		}
		return res.tok, nil
	}
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenCache, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenCache)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
