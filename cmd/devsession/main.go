package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pactsquad/pact-api/internal/adapters/httpapi"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/platform/auth/sessiontoken"
	"github.com/pactsquad/pact-api/internal/platform/config"
)

// devsession mints an HS256 session token accepted by pact-api in auth.mode=dev.
//
// It is not an identity provider. It exists so local clients can call the API
// without going through a sign-in round trip.

func main() {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:          "devsession",
		Short:        "Mint a dev session token",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mint(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("user-id", "", "Subject of the token (random when empty)")
	flags.String("email", "dev@example.com", "Email claim")
	flags.String("secret", "", "HS256 signing secret (or PACT_DEV_SIGNING_SECRET)")
	flags.Duration("ttl", v.GetDuration("dev.token_ttl"), "Token lifetime")
	flags.String("audience", v.GetString("session.audience"), "Audience claim")

	for key, flag := range map[string]string{
		"dev.signing_secret": "secret",
		"dev.token_ttl":      "ttl",
		"session.audience":   "audience",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func mint(cmd *cobra.Command, v *viper.Viper) error {
	secret := strings.TrimSpace(v.GetString("dev.signing_secret"))
	if secret == "" {
		return fmt.Errorf("a signing secret is required (--secret or PACT_DEV_SIGNING_SECRET)")
	}

	userID, _ := cmd.Flags().GetString("user-id")
	if strings.TrimSpace(userID) == "" {
		userID = uuid.NewString()
	}
	email, _ := cmd.Flags().GetString("email")

	issuer := sessiontoken.NewIssuer(sessiontoken.IssuerConfig{
		SigningSecret: []byte(secret),
		Issuer:        config.DevIssuer,
		Audience:      v.GetString("session.audience"),
		TokenTTL:      v.GetDuration("dev.token_ttl"),
	})
	token, expiresIn, err := issuer.Issue(domain.User{ID: domain.UserID(userID), Email: email})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "user_id=%s\n", userID)
	fmt.Fprintf(out, "expires_in=%d\n", expiresIn)
	fmt.Fprintf(out, "token=%s\n", token)
	fmt.Fprintf(out, "cookie=%s=%s\n", httpapi.DefaultSessionCookie, token)
	return nil
}
