package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pinbot/cmd/security/secret"
	"pinbot/cmd/security/token"
)

// FeedToken is a freshly minted feed credential. Only Hash goes into config.
type FeedToken struct {
	Token       string `json:"token"`
	Hash        string `json:"hash"`
	Fingerprint string `json:"fingerprint"`
}

func newFeedTokenCommand(r *runner) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "feed-token",
		Short: "Mint a live audit feed token and its argon2id hash",
		Long: `Print a random feed token and the hash to put in PINBOT_FEED_TOKEN_HASH.
Hash cost follows the PINBOT_ARGON2_* settings of the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < 16 || size > 128 {
				return NewExitError(ExitCommandError, "--bytes must be between 16 and 128")
			}
			hashCfg, err := secret.FromEnv()
			if err != nil {
				return WrapExitError(ExitCommandError, "argon2 settings", err)
			}

			tok, err := token.NewOpaque(size)
			if err != nil {
				return WrapExitError(ExitFailure, "generate token", err)
			}
			hash, err := hashCfg.Hash(tok)
			if err != nil {
				return WrapExitError(ExitFailure, "hash token", err)
			}

			out := FeedToken{Token: tok, Hash: hash, Fingerprint: token.Fingerprint(tok)}
			return r.printer(cmd).Print(out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "token:       %s\nhash:        %s\nfingerprint: %s\n", out.Token, out.Hash, out.Fingerprint)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "random bytes in the token")
	return cmd
}
