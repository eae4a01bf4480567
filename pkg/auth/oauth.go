package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// ClientSecretsFile is the credentials.json downloaded from the Google
	// Cloud console, kept in the ajanda config directory.
	ClientSecretsFile = "credentials.json"
	TokenFile         = "token.json"

	// LocalhostAuthPort receives the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// Scopes needed to manage the events of one calendar.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// normalizeRedirect points localhost and out-of-band redirect URLs at the
// local callback server.
func normalizeRedirect(cfg *oauth2.Config, logger *slog.Logger) {
	if cfg.RedirectURL == "urn:ietf:wg:oauth:2.0:oob" {
		cfg.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		return
	}
	u, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		logger.Warn("could not parse redirect url, using it as is", "url", cfg.RedirectURL, "err", err)
		return
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		logger.Warn("redirect url is not a localhost callback", "url", cfg.RedirectURL)
		return
	}
	if u.Port() != LocalhostAuthPort {
		u.Host = net.JoinHostPort(u.Hostname(), LocalhostAuthPort)
		cfg.RedirectURL = u.String()
	}
}

// GetConfig builds the OAuth client configuration from dir/credentials.json.
func GetConfig(dir string, logger *slog.Logger) (*oauth2.Config, error) {
	path := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	normalizeRedirect(cfg, logger)
	return cfg, nil
}

// Login runs the browser authorization flow and stores a fresh token.
// Instructions are written to w.
func Login(ctx context.Context, dir string, w io.Writer, logger *slog.Logger) error {
	cfg, err := GetConfig(dir, logger)
	if err != nil {
		return err
	}
	tok, err := getTokenFromWeb(ctx, cfg, w, logger)
	if err != nil {
		return err
	}
	return saveToken(filepath.Join(dir, TokenFile), tok)
}

// GetClient returns an HTTP client that refreshes its token as needed.
// It fails when no token has been stored yet; run Login first.
func GetClient(ctx context.Context, dir string, logger *slog.Logger) (*http.Client, error) {
	cfg, err := GetConfig(dir, logger)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, TokenFile)
	tok, err := tokenFromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("not authorized yet, run 'ajanda auth' first")
		}
		return nil, err
	}

	src := &savingSource{
		base:   cfg.TokenSource(ctx, tok),
		path:   path,
		last:   tok,
		logger: logger,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// savingSource writes refreshed tokens back to disk.
type savingSource struct {
	base   oauth2.TokenSource
	path   string
	last   *oauth2.Token
	logger *slog.Logger
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			s.logger.Warn("could not save refreshed token", "path", s.path, "err", err)
		}
		s.last = tok
	}
	return tok, nil
}

func getTokenFromWeb(ctx context.Context, cfg *oauth2.Config, w io.Writer, logger *slog.Logger) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}

	state := fmt.Sprintf("ajanda-%d", time.Now().UnixNano())
	server := &http.Server{
		Handler: http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("state") != state {
				http.Error(rw, "state mismatch", http.StatusBadRequest)
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(rw, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprint(rw, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Fprintf(w, "Open the following URL in your browser to authorize ajanda:\n%s\n", authURL)
	logger.Debug("waiting for authorization code", "redirect", cfg.RedirectURL)

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization timed out, please try again: %w", ctx.Err())
	}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// GetCalendarService creates an authenticated Google Calendar service.
func GetCalendarService(ctx context.Context, dir string, logger *slog.Logger) (*calendar.Service, error) {
	client, err := GetClient(ctx, dir, logger)
	if err != nil {
		return nil, err
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google Calendar service: %w", err)
	}
	return srv, nil
}
