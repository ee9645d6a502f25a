package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"strava-power/internal/auth"
	"strava-power/internal/store"
)

var loginPort int

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Connect a Strava athlete",
	Long: `Runs the Strava OAuth flow with a local callback server and stores the
athlete's tokens. Run it once per athlete; tokens are refreshed automatically.`,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		oauthCfg := *a.oauth
		oauthCfg.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", loginPort)

		result, err := auth.Authenticate(ctx, &oauthCfg, auth.LoginOptions{
			Port: loginPort,
			Out:  os.Stdout,
			Log:  a.log,
		})
		if err != nil {
			return fmt.Errorf("authentication: %w", err)
		}

		if err := a.db.SaveAuth(&store.Auth{
			AthleteID:    result.AthleteID,
			AccessToken:  result.Token.AccessToken,
			RefreshToken: result.Token.RefreshToken,
			ExpiresAt:    result.Token.Expiry,
		}); err != nil {
			return fmt.Errorf("saving auth: %w", err)
		}

		fmt.Println()
		fmt.Printf("Successfully authenticated as athlete %d!\n", result.AthleteID)
		return nil
	}),
}

func init() {
	loginCmd.Flags().IntVar(&loginPort, "port", auth.CallbackPort, "local port for the OAuth callback")
	rootCmd.AddCommand(loginCmd)
}
