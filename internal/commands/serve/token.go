package serve

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/httpapi"
	"github.com/tombee/squash/internal/secrets"
)

// loadSettings is replaced in tests.
var loadSettings = func(ctx context.Context) (*config.Settings, error) {
	return config.Load(ctx, secrets.Default())
}

// NewTokenCommand creates the token command.
func NewTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Annotations: map[string]string{
			"group": "server",
		},
		Long: `Token signs a bearer token for the HTTP API with API_SECRET.

Examples:
  squash token --subject ci --ttl 720h
  curl -H "Authorization: Bearer $(squash token)" localhost:8000/api/servers`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return issue(cmd.Context(), cmd.OutOrStdout(), subject, ttl)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "squash-cli", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

type tokenResponse struct {
	shared.JSONResponse
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}

func issue(ctx context.Context, out io.Writer, subject string, ttl time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		return shared.NewInputError("--ttl must be positive", nil)
	}
	settings, err := loadSettings(ctx)
	if err != nil {
		return shared.NewConfigError("failed to load settings", err)
	}
	if settings.APISecret == "" {
		return shared.NewConfigError("API_SECRET is not set",
			fmt.Errorf("set it in the environment or with 'squash secrets set API_SECRET'"))
	}

	token, err := httpapi.IssueToken(settings.APISecret, subject, ttl)
	if err != nil {
		return shared.NewRunError("failed to issue token", err)
	}
	if shared.GetJSON() {
		return shared.EmitJSONTo(out, tokenResponse{
			JSONResponse: shared.NewJSONResponse("token", true),
			Token:        token,
			Subject:      subject,
			ExpiresAt:    time.Now().Add(ttl).UTC().Truncate(time.Second),
		})
	}
	fmt.Fprintln(out, token)
	return nil
}
