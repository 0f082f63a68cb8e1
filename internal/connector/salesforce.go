package connector

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tombee/squash/internal/jq"
	"github.com/tombee/squash/pkg/errors"
)

const salesforceAPIVersion = "v59.0"

const (
	soqlOpenOpportunities = "SELECT Id, Name, Amount, StageName, Probability, Account.Name, CloseDate " +
		"FROM Opportunity WHERE IsClosed = false ORDER BY Amount DESC LIMIT 20"
	soqlPipelineTotals = "SELECT COUNT(Id) total, SUM(Amount) total_value FROM Opportunity WHERE IsClosed = false"
	soqlWonCount       = "SELECT COUNT(Id) total FROM Opportunity WHERE IsWon = true AND CloseDate = THIS_YEAR"
	soqlLostCount      = "SELECT COUNT(Id) total FROM Opportunity WHERE IsWon = false AND IsClosed = true AND CloseDate = THIS_YEAR"
	soqlTopAccounts    = "SELECT Id, Name, Industry, AnnualRevenue, NumberOfEmployees " +
		"FROM Account ORDER BY AnnualRevenue DESC NULLS LAST LIMIT 10"
	soqlWonDeals = "SELECT Id, Name, Description FROM Opportunity " +
		"WHERE IsWon = true AND CloseDate = THIS_YEAR LIMIT 20"
	soqlLostDeals = "SELECT Id, Name, Description, StageName FROM Opportunity " +
		"WHERE IsWon = false AND IsClosed = true AND CloseDate = THIS_YEAR LIMIT 20"
	soqlOpenCases = "SELECT Id, Subject, Description, Status, Priority, Account.Name " +
		"FROM Case WHERE Status != 'Closed' ORDER BY CreatedDate DESC LIMIT 20"
)

var (
	salesforceOppsJQ = jq.MustCompile(`[(.records // [])[] | {
		account: (.Account.Name // "Unknown"),
		amount: (.Amount // 0),
		stage: .StageName,
		probability: .Probability,
		close_date: .CloseDate
	}]`)
	salesforceFirstRecordJQ = jq.MustCompile(`(.records // [])[0] // {}`)
	salesforceAccountsJQ    = jq.MustCompile(`{accounts: [(.records // [])[] | {
		name: .Name,
		industry: .Industry,
		revenue: .AnnualRevenue,
		employees: .NumberOfEmployees
	}]}`)
	salesforceDealsJQ = jq.MustCompile(`{count: ((.records // []) | length), recent: [(.records // [])[:5][] | .Name]}`)
	salesforceCasesJQ = jq.MustCompile(`{feedback: [(.records // [])[] | {
		account: (.Account.Name // "Unknown"),
		subject: .Subject,
		priority: .Priority,
		status: .Status
	}]}`)
)

var usd = message.NewPrinter(language.English)

// formatUSD renders an amount as "$1,234"; zero renders "$0".
func formatUSD(v any) string {
	f, _ := v.(float64)
	if f == 0 {
		return "$0"
	}
	return usd.Sprintf("$%d", int64(math.Round(f)))
}

func salesforceMethods(deps legacyDeps) (map[string]legacyMethod, error) {
	creds := deps.creds.Salesforce
	if creds.InstanceURL == "" {
		return nil, &errors.ConfigError{Key: "SALESFORCE_INSTANCE_URL", Reason: "salesforce credentials are incomplete"}
	}

	tokens, err := salesforceTokenSource(creds.InstanceURL, creds.AccessToken, creds.ClientID, creds.ClientSecret, deps.http)
	if err != nil {
		return nil, err
	}

	c := &apiClient{
		http: deps.http,
		base: creds.InstanceURL + "/services/data/" + salesforceAPIVersion,
		auth: func(r *http.Request) error {
			tok, err := tokens.Token(r.Context())
			if err != nil {
				return errors.Wrap(err, "salesforce token")
			}
			tok.SetAuthHeader(r)
			return nil
		},
	}
	query := func(ctx context.Context, soql string, p *jq.Program) (any, error) {
		raw, err := c.get(ctx, "/query", url.Values{"q": {soql}})
		if err != nil {
			return nil, err
		}
		return jq.Default.Run(ctx, p, raw)
	}
	first := func(ctx context.Context, soql string) (map[string]any, error) {
		v, err := query(ctx, soql, salesforceFirstRecordJQ)
		if err != nil {
			return nil, err
		}
		m, _ := v.(map[string]any)
		return m, nil
	}

	return map[string]legacyMethod{
		"get_opportunities": func(ctx context.Context, _ map[string]any) Result {
			fail := func(err error) Result { return softFail(Result{"total_opportunities": 0}, err) }

			v, err := query(ctx, soqlOpenOpportunities, salesforceOppsJQ)
			if err != nil {
				return fail(err)
			}
			totals, err := first(ctx, soqlPipelineTotals)
			if err != nil {
				return fail(err)
			}
			won, err := first(ctx, soqlWonCount)
			if err != nil {
				return fail(err)
			}
			lost, err := first(ctx, soqlLostCount)
			if err != nil {
				return fail(err)
			}

			var opps []any
			rows, _ := v.([]any)
			for _, row := range rows {
				if len(opps) == 5 {
					break
				}
				o, _ := row.(map[string]any)
				if o == nil {
					continue
				}
				o["value"] = formatUSD(o["amount"])
				delete(o, "amount")
				opps = append(opps, o)
			}
			if opps == nil {
				opps = []any{}
			}

			wonN, _ := won["total"].(float64)
			lostN, _ := lost["total"].(float64)
			winRate := 0.0
			if wonN+lostN > 0 {
				winRate = math.Round(wonN/(wonN+lostN)*100) / 100
			}
			total, _ := totals["total"].(float64)

			return Result{
				"total_opportunities": int(total),
				"total_value":         formatUSD(totals["total_value"]),
				"win_rate":            winRate,
				"top_opportunities":   opps,
			}
		},

		"get_accounts": func(ctx context.Context, _ map[string]any) Result {
			v, err := query(ctx, soqlTopAccounts, salesforceAccountsJQ)
			if err == nil {
				if out, ok := v.(map[string]any); ok {
					return out
				}
			}
			return softFail(Result{"accounts": []any{}}, orUnexpected(err))
		},

		"get_win_loss_reasons": func(ctx context.Context, _ map[string]any) Result {
			fail := func(err error) Result { return softFail(Result{"won_deals": 0, "lost_deals": 0}, err) }

			w, err := query(ctx, soqlWonDeals, salesforceDealsJQ)
			if err != nil {
				return fail(err)
			}
			l, err := query(ctx, soqlLostDeals, salesforceDealsJQ)
			if err != nil {
				return fail(err)
			}
			won, _ := w.(map[string]any)
			lost, _ := l.(map[string]any)
			return Result{
				"won_deals":     won["count"],
				"lost_deals":    lost["count"],
				"recent_wins":   won["recent"],
				"recent_losses": lost["recent"],
			}
		},

		"get_customer_feedback": func(ctx context.Context, _ map[string]any) Result {
			v, err := query(ctx, soqlOpenCases, salesforceCasesJQ)
			if err == nil {
				if out, ok := v.(map[string]any); ok {
					return out
				}
			}
			return softFail(Result{"feedback": []any{}}, orUnexpected(err))
		},
	}, nil
}

// salesforceTokens hands out the bearer token for API requests. A static
// access token wins; otherwise the OAuth2 client-credentials flow runs
// against the instance and the token is reused until it expires.
type salesforceTokens struct {
	static *oauth2.Token
	cfg    *clientcredentials.Config
	http   *http.Client

	mu  sync.Mutex
	tok *oauth2.Token
}

func salesforceTokenSource(instance, accessToken, clientID, clientSecret string, hc *http.Client) (*salesforceTokens, error) {
	if accessToken != "" {
		return &salesforceTokens{static: &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}}, nil
	}
	if clientID == "" || clientSecret == "" {
		return nil, &errors.ConfigError{
			Key:    "SALESFORCE_ACCESS_TOKEN",
			Reason: "set an access token or SALESFORCE_CLIENT_ID and SALESFORCE_CLIENT_SECRET",
		}
	}
	return &salesforceTokens{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     instance + "/services/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		http: hc,
	}, nil
}

// Token returns a valid token. A fetch is bound to ctx, so cancelling the
// call cancels the token request too.
func (s *salesforceTokens) Token(ctx context.Context) (*oauth2.Token, error) {
	if s.static != nil {
		return s.static, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok.Valid() {
		return s.tok, nil
	}
	if s.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	}
	tok, err := s.cfg.Token(ctx)
	if err != nil {
		return nil, err
	}
	s.tok = tok
	return tok, nil
}

func orUnexpected(err error) error {
	if err != nil {
		return err
	}
	return errors.New("unexpected response shape")
}
