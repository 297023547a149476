package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"tasksync/internal/auth"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

const (
	// OAuth callback timeout
	oauthCallbackTimeout = 5 * time.Minute

	// Token exchange timeout
	tokenExchangeTimeout = 30 * time.Second

	// Starting port for OAuth callback server
	oauthStartPort = 8085

	// Max port attempts
	oauthMaxPortAttempts = 5
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd runs the OAuth loopback flow with PKCE and stores the token.
type LoginCmd struct{}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Authenticate with the remote service" }
func (c *LoginCmd) Usage() string     { return "tasksync login [common flags]" }
func (c *LoginCmd) NeedsAuth() bool   { return false }
func (c *LoginCmd) NeedsStore() bool  { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LoginCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	cfg := env.Config
	if !cfg.HasOAuthClient() {
		printOAuthClientHelp(errOut, cfg)
		return exitcode.AuthError
	}

	oauthConfig, err := auth.OAuthConfig(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	tokens := auth.NewTokenFile(cfg.TokenPath(), oauthConfig)

	if cfg.HasToken() && tokens.Valid(ctx) {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	cb, err := listenForCallback()
	if err != nil {
		fmt.Fprintln(errOut, "error: could not bind to local port for OAuth callback")
		return exitcode.AuthError
	}
	defer cb.close()

	oauthConfig.RedirectURL = cb.redirectURL()

	verifier := oauth2.GenerateVerifier()
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if cfg.Settings.Backend == config.BackendGoogleTasks {
		// Microsoft issues refresh tokens through the offline_access scope instead.
		opts = append(opts, oauth2.AccessTypeOffline)
	}

	fmt.Fprintln(errOut, "Open this URL in your browser:")
	fmt.Fprintln(errOut, oauthConfig.AuthCodeURL(cb.state, opts...))

	code, err := cb.wait(ctx, oauthCallbackTimeout)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}

	exchangeCtx, cancelExchange := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancelExchange()

	token, err := oauthConfig.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to exchange code for token: %v\n", err)
		return exitcode.AuthError
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}
	if err := tokens.Save(token); err != nil {
		fmt.Fprintf(errOut, "error: failed to save token: %v\n", err)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

func printOAuthClientHelp(errOut io.Writer, cfg *config.Config) {
	fmt.Fprintf(errOut, "error: oauth_client.json not found in %s\n\n", cfg.Dir)
	switch cfg.Settings.Backend {
	case config.BackendGoogleTasks:
		fmt.Fprintln(errOut, "To use Google Tasks you need OAuth credentials:")
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "1. Go to https://console.cloud.google.com/apis/credentials")
		fmt.Fprintln(errOut, "2. Enable the Google Tasks API for your project")
		fmt.Fprintln(errOut, "3. Create an OAuth client ID of type 'Desktop app'")
		fmt.Fprintln(errOut, "4. Download the JSON file and save it as:")
	default:
		fmt.Fprintln(errOut, "To use Microsoft To Do you need an app registration:")
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "1. Go to https://entra.microsoft.com > App registrations > New registration")
		fmt.Fprintln(errOut, "2. Add a 'Mobile and desktop' redirect URI: http://localhost")
		fmt.Fprintln(errOut, "3. Grant the delegated Graph permission Tasks.ReadWrite")
		fmt.Fprintln(errOut, `4. Save {"client_id": "<application id>"} as:`)
	}
	fmt.Fprintf(errOut, "   %s/oauth_client.json\n", cfg.Dir)
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "Then run 'tasksync login' again.")
}

// callback receives the authorization code on a loopback HTTP server.
type callback struct {
	port     int
	state    string
	listener net.Listener
	server   *http.Server
	codes    chan string
	errs     chan error
}

// listenForCallback binds the first free port from oauthStartPort and starts serving /callback.
func listenForCallback() (*callback, error) {
	var (
		listener net.Listener
		port     int
		err      error
	)
	for i := 0; i < oauthMaxPortAttempts; i++ {
		port = oauthStartPort + i
		listener, err = net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("no available port found: %w", err)
	}

	cb := &callback{
		port:     port,
		state:    uuid.NewString(),
		listener: listener,
		codes:    make(chan string, 1),
		errs:     make(chan error, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", cb.handle)
	cb.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := cb.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cb.fail(err)
		}
	}()
	return cb, nil
}

func (cb *callback) redirectURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", cb.port)
}

func (cb *callback) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") != cb.state {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		cb.fail(errors.New("oauth state mismatch"))
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "No code in callback", http.StatusBadRequest)
		cb.fail(fmt.Errorf("no code in callback: %s", q.Get("error_description")))
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body><h1>Signed in to tasksync</h1><p>You may close this window.</p></body></html>")
	select {
	case cb.codes <- code:
	default:
	}
}

func (cb *callback) fail(err error) {
	select {
	case cb.errs <- err:
	default:
	}
}

// wait blocks until the browser delivers a code, the server fails, the timeout passes or ctx ends.
func (cb *callback) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-cb.codes:
		return code, nil
	case err := <-cb.errs:
		return "", err
	case <-timer.C:
		return "", errors.New("oauth callback timed out")
	case <-ctx.Done():
		return "", errors.New("cancelled")
	}
}

func (cb *callback) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cb.server.Shutdown(shutdownCtx)
	cb.listener.Close()
}
