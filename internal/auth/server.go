package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// CallbackPort is the default port for the OAuth callback server
	CallbackPort = 8089
	// AuthTimeout is how long to wait for the user to complete auth
	AuthTimeout = 5 * time.Minute
)

var (
	ErrStateMismatch = errors.New("auth: callback state mismatch")
	ErrNoCode        = errors.New("auth: no authorization code in callback")
	ErrDenied        = errors.New("auth: authorization denied")
)

// LoginOptions controls the local callback flow
type LoginOptions struct {
	Port    int
	Timeout time.Duration
	// Out receives the authorization URL prompt
	Out io.Writer
	Log zerolog.Logger
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler accepts exactly one redirect from Strava and reports it on results.
func callbackHandler(state string, results chan<- callbackResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = ErrStateMismatch
		case q.Get("error") != "":
			res.err = fmt.Errorf("%w: %s", ErrDenied, q.Get("error"))
		case q.Get("code") == "":
			res.err = ErrNoCode
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, successPage)
		}

		// only the first callback counts
		select {
		case results <- res:
		default:
		}
	}
}

// Authenticate runs the OAuth authorization-code flow against a callback
// server on 127.0.0.1 and exchanges the code for tokens.
func Authenticate(ctx context.Context, cfg *oauth2.Config, opts LoginOptions) (*AuthResult, error) {
	if opts.Port == 0 {
		opts.Port = CallbackPort
	}
	if opts.Timeout <= 0 {
		opts.Timeout = AuthTimeout
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, results))

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	defer shutdownServer(server)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Fprintf(opts.Out, "\nTo connect your Strava account, open this URL in your browser:\n\n  %s\n\nWaiting for authorization...\n", authURL)
	opts.Log.Debug().Int("port", opts.Port).Msg("waiting for oauth callback")

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case err := <-serveErr:
		return nil, fmt.Errorf("callback server: %w", err)
	case <-waitCtx.Done():
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("authentication timeout after %v", opts.Timeout)
		}
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	token, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}

	athleteID := ExtractAthleteID(token)
	if athleteID == 0 {
		return nil, fmt.Errorf("token response did not include an athlete id")
	}
	opts.Log.Info().Int64("athlete_id", athleteID).Msg("strava authorization complete")

	return &AuthResult{Token: token, AthleteID: athleteID}, nil
}

const successPage = `<!DOCTYPE html>
<html>
<head><title>strava-power connected</title></head>
<body style="font-family: system-ui; text-align: center; padding-top: 20vh;">
<h1 style="color: #FC4C02;">Connected</h1>
<p>strava-power can now read your rides. You can close this window.</p>
</body>
</html>`

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
