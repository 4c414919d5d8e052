package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/blacktop/redpost/internal/logutil"
	"github.com/blacktop/redpost/internal/redpost"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

const (
	envUser         = "REDDIT_USER"
	envPass         = "REDDIT_PASS"
	envClientID     = "REDDIT_CLIENTID"
	envClientSecret = "REDDIT_CLIENTSEC"

	providerName = "reddit"
	version      = "1.0"

	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultAPIURL   = "https://oauth.reddit.com"

	requestTimeout = 30 * time.Second
	maxBodySize    = 1 << 20
)

// Config contains the credentials and endpoints of a Reddit script app.
type Config struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string

	// TokenURL and APIURL default to the public Reddit endpoints.
	TokenURL string
	APIURL   string
	// HTTPClient is the transport used for every request, including uploads.
	HTTPClient *http.Client
}

// Client implements redpost.Client against the Reddit API. It authenticates
// on the first remote call.
type Client struct {
	cfg       Config
	userAgent string

	once    sync.Once
	api     *http.Client
	authErr error
}

// New constructs a Reddit client from environment credentials. No network
// traffic happens until the first call.
func New(ctx context.Context) (redpost.Client, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg), nil
}

// NewWithConfig constructs a client from explicit settings.
func NewWithConfig(cfg Config) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	userAgent := fmt.Sprintf("redpost/%s by /u/%s", version, cfg.Username)
	base := cfg.HTTPClient
	if base == nil {
		base = cleanhttp.DefaultPooledClient()
	}
	transport := base.Transport
	if transport == nil {
		transport = cleanhttp.DefaultPooledTransport()
	}
	wrapped := *base
	wrapped.Transport = &userAgentTransport{userAgent: userAgent, base: transport}
	cfg.HTTPClient = &wrapped

	return &Client{cfg: cfg, userAgent: userAgent}
}

// LinkFlairs returns the link flairs the authenticated user may select in subreddit.
func (c *Client) LinkFlairs(ctx context.Context, subreddit string) ([]redpost.FlairOption, error) {
	var resp struct {
		Choices []struct {
			ID       string `json:"flair_template_id"`
			Text     string `json:"flair_text"`
			Editable bool   `json:"flair_text_editable"`
		} `json:"choices"`
	}

	form := url.Values{"is_newlink": {"true"}}
	path := fmt.Sprintf("/r/%s/api/flairselector", url.PathEscape(subreddit))
	if err := c.postForm(ctx, "fetch flairs", path, form, &resp); err != nil {
		return nil, err
	}

	options := make([]redpost.FlairOption, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		options = append(options, redpost.FlairOption{
			Text:         choice.Text,
			ID:           choice.ID,
			TextEditable: choice.Editable,
		})
	}
	logutil.Debugf("fetched flairs: subreddit=%s count=%d", subreddit, len(options))
	return options, nil
}

// SubmitText creates a self post.
func (c *Client) SubmitText(ctx context.Context, post redpost.TextPost) (*redpost.Submission, error) {
	form := submitForm(post.Subreddit, post.Title, post.FlairID)
	form.Set("kind", "self")
	form.Set("text", post.Body)

	var data struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := c.postJSON(ctx, "submit post", "/api/submit", form, &data); err != nil {
		return nil, err
	}

	sub := &redpost.Submission{ID: data.ID, Name: data.Name, URL: data.URL, Permalink: data.URL}
	if sub.Name == "" && sub.ID != "" {
		sub.Name = "t3_" + sub.ID
	}
	return sub, nil
}

// Reply posts text as a top-level comment on sub.
func (c *Client) Reply(ctx context.Context, sub *redpost.Submission, text string) error {
	if sub == nil || sub.Name == "" {
		return &redpost.APIError{Op: "reply", Reason: "submission ID is unknown"}
	}
	form := url.Values{
		"thing_id": {sub.Name},
		"text":     {text},
		"api_type": {"json"},
	}
	return c.postJSON(ctx, "reply", "/api/comment", form, nil)
}

func submitForm(subreddit, title, flairID string) url.Values {
	form := url.Values{
		"sr":          {subreddit},
		"title":       {title},
		"api_type":    {"json"},
		"resubmit":    {"true"},
		"sendreplies": {"true"},
	}
	if flairID != "" {
		form.Set("flair_id", flairID)
	}
	return form
}

// connect performs the password grant once and caches the result.
func (c *Client) connect(ctx context.Context) (*http.Client, error) {
	c.once.Do(func() {
		oauthCfg := &oauth2.Config{
			ClientID:     c.cfg.ClientID,
			ClientSecret: c.cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  c.cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}

		// The token source outlives this call, so it gets its own context.
		octx := context.WithValue(context.Background(), oauth2.HTTPClient, c.cfg.HTTPClient)
		tctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		tctx = context.WithValue(tctx, oauth2.HTTPClient, c.cfg.HTTPClient)

		logutil.Debugf("authenticating: user=%s", c.cfg.Username)
		token, err := oauthCfg.PasswordCredentialsToken(tctx, c.cfg.Username, c.cfg.Password)
		if err != nil {
			c.authErr = authError(err)
			return
		}
		c.api = oauthCfg.Client(octx, token)
	})
	return c.api, c.authErr
}

func authError(err error) error {
	apiErr := &redpost.APIError{Op: "authenticate", Err: err}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		apiErr.Err = nil
		apiErr.Reason = rerr.ErrorCode
		if rerr.ErrorDescription != "" {
			apiErr.Reason = strings.TrimSpace(apiErr.Reason + " " + rerr.ErrorDescription)
		}
		if rerr.Response != nil {
			apiErr.StatusCode = rerr.Response.StatusCode
		}
		apiErr.Body = string(rerr.Body)
	}
	return apiErr
}

// postJSON posts an api_type=json form and unpacks the json.data envelope into out.
func (c *Client) postJSON(ctx context.Context, op, path string, form url.Values, out any) error {
	var env struct {
		JSON struct {
			Errors [][]any          `json:"errors"`
			Data   *json.RawMessage `json:"data"`
		} `json:"json"`
	}
	body, err := c.post(ctx, op, path, form, &env)
	if err != nil {
		return err
	}
	if len(env.JSON.Errors) > 0 {
		return &redpost.APIError{Op: op, Reason: formatErrors(env.JSON.Errors), Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if env.JSON.Data == nil {
		return &redpost.APIError{Op: op, Reason: "response has no data", Body: string(body)}
	}
	if err := json.Unmarshal(*env.JSON.Data, out); err != nil {
		return &redpost.APIError{Op: op, Reason: "decode response", Err: err, Body: string(body)}
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out any) error {
	_, err := c.post(ctx, op, path, form, out)
	return err
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values, out any) ([]byte, error) {
	api, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := c.cfg.APIURL + path + "?raw_json=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &redpost.APIError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logutil.Debugf("POST %s", path)
	resp, err := api.Do(req)
	if err != nil {
		return nil, &redpost.APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &redpost.APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &redpost.APIError{Op: op, StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode), Body: string(body)}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return body, &redpost.APIError{Op: op, StatusCode: resp.StatusCode, Reason: "decode response", Err: err, Body: string(body)}
		}
	}
	return body, nil
}

// formatErrors renders Reddit's [code, message, field] error triples.
func formatErrors(errs [][]any) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		parts := make([]string, 0, len(e))
		for _, p := range e {
			if s := strings.TrimSpace(fmt.Sprint(p)); s != "" && p != nil {
				parts = append(parts, s)
			}
		}
		switch len(parts) {
		case 0:
			continue
		case 1:
			msgs = append(msgs, parts[0])
		case 2:
			msgs = append(msgs, parts[0]+": "+parts[1])
		default:
			msgs = append(msgs, fmt.Sprintf("%s: %s (%s)", parts[0], parts[1], strings.Join(parts[2:], ", ")))
		}
	}
	if len(msgs) == 0 {
		return "unknown API error"
	}
	return strings.Join(msgs, "; ")
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r)
}

func loadConfigFromEnv() (Config, error) {
	cfg := Config{
		Username:     strings.TrimSpace(os.Getenv(envUser)),
		Password:     os.Getenv(envPass),
		ClientID:     strings.TrimSpace(os.Getenv(envClientID)),
		ClientSecret: strings.TrimSpace(os.Getenv(envClientSecret)),
	}

	var missing []string
	if cfg.Username == "" {
		missing = append(missing, envUser)
	}
	if cfg.Password == "" {
		missing = append(missing, envPass)
	}
	if cfg.ClientID == "" {
		missing = append(missing, envClientID)
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, envClientSecret)
	}

	if len(missing) > 0 {
		return Config{}, redpost.MissingEnvError{Provider: providerName, Variables: missing}
	}

	return cfg, nil
}
