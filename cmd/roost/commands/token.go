package commands

import (
	"github.com/dyluth/roost/internal/auth"
	"github.com/dyluth/roost/internal/printer"
	"github.com/spf13/cobra"
)

var (
	tokenUser string
	tokenName string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a presenter token for the roostd API",
	Long: `Issue a signed presenter token for the roostd HTTP API.

The token is signed with auth.secret (or ROOST_JWT_SECRET) and carries
--user as its subject; presentations created through the API belong to
that user.

Example:
  curl -H "Authorization: Bearer $(roost token --user alice)" localhost:8080/api/presentations`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "Owner id to put in the token subject (required)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "Display name claim")
	tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	authn, err := auth.New(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return printer.Error(
			"cannot sign tokens",
			err.Error(),
			[]string{"Set ROOST_JWT_SECRET or auth.secret in roost.yml"},
		)
	}

	token, err := authn.IssueToken(tokenUser, tokenName)
	if err != nil {
		return printer.Error("failed to issue token", err.Error(), nil)
	}

	printer.Println(token)
	return nil
}
