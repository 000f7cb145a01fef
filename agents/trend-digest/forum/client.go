package forum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"trend-digest/internal/models"
	"trend-digest/shared/logging"
)

const (
	DefaultAuthURL = "https://www.reddit.com"
	DefaultAPIURL  = "https://oauth.reddit.com"

	// sessionExpiryMargin refreshes a token this long before it actually expires.
	sessionExpiryMargin = 5 * time.Minute
	defaultTokenLife    = time.Hour
	requestTimeout      = 30 * time.Second
	postFullnamePrefix  = "t3_"
)

// Credentials authenticate a script-type forum application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Session is a bearer token obtained through the password grant.
type Session struct {
	token *oauth2.Token
}

func (s *Session) Expiry() time.Time {
	return s.token.Expiry
}

// usableAt reports whether the token stays valid past now plus the safety margin.
func (s *Session) usableAt(now time.Time) bool {
	return s != nil && s.token != nil && s.token.AccessToken != "" &&
		now.Add(sessionExpiryMargin).Before(s.token.Expiry)
}

// PostRequest is a link post when URL is set and a self post otherwise.
type PostRequest struct {
	Subreddit string
	Title     string
	URL       string
	Text      string
}

// Submission is what the forum returned for a successful post.
type Submission struct {
	PostID    string
	Permalink models.Optional[string]
}

type Client struct {
	oauth      *oauth2.Config
	creds      Credentials
	httpClient *http.Client
	apiURL     string
	log        *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	session *Session
}

type Option func(*Client)

// WithEndpoints points the client at alternative auth and API hosts.
func WithEndpoints(authURL, apiURL string) Option {
	return func(c *Client) {
		c.oauth.Endpoint.TokenURL = strings.TrimRight(authURL, "/") + "/api/v1/access_token"
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(creds Credentials, userAgent string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  DefaultAuthURL + "/api/v1/access_token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		creds: creds,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: &userAgentTransport{base: http.DefaultTransport, userAgent: userAgent},
		},
		apiURL: DefaultAPIURL,
		log:    logging.OrNop(log),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the client's current session, requesting a new token when
// the cached one is missing or within five minutes of expiring.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.usableAt(c.now()) {
		return c.session, nil
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.PasswordCredentialsToken(tokenCtx, c.creds.Username, c.creds.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain forum token: %w", err)
	}
	if token.Expiry.IsZero() {
		token.Expiry = c.now().Add(defaultTokenLife)
	}

	c.log.Debug("forum token refreshed", zap.Time("expiry", token.Expiry))
	c.session = &Session{token: token}
	return c.session, nil
}

// SubmitPost creates a post and returns its id as a fullname.
func (c *Client) SubmitPost(ctx context.Context, sess *Session, req PostRequest) (*Submission, error) {
	form := url.Values{
		"sr":       {req.Subreddit},
		"title":    {req.Title},
		"api_type": {"json"},
	}
	if req.URL != "" {
		form.Set("kind", "link")
		form.Set("url", req.URL)
		form.Set("resubmit", "true")
	} else {
		form.Set("kind", "self")
		form.Set("text", req.Text)
	}

	data, err := c.call(ctx, sess, "/api/submit", form)
	if err != nil {
		return nil, fmt.Errorf("submit post: %w", err)
	}

	id, ok := lookupPostID(data)
	if !ok {
		return nil, fmt.Errorf("submit post: response carried no post id")
	}

	sub := &Submission{PostID: fullname(id)}
	if link, ok := data["url"].(string); ok && link != "" {
		sub.Permalink = models.Some(link)
	}
	return sub, nil
}

// SubmitComment replies to parentID, which may be a bare id or a fullname.
func (c *Client) SubmitComment(ctx context.Context, sess *Session, parentID, body string) error {
	form := url.Values{
		"thing_id": {fullname(parentID)},
		"text":     {body},
		"api_type": {"json"},
	}
	if _, err := c.call(ctx, sess, "/api/comment", form); err != nil {
		return fmt.Errorf("submit comment: %w", err)
	}
	return nil
}

type apiEnvelope struct {
	JSON struct {
		Errors [][]any        `json:"errors"`
		Data   map[string]any `json:"data"`
	} `json:"json"`
}

func (c *Client) call(ctx context.Context, sess *Session, path string, form url.Values) (map[string]any, error) {
	if sess == nil || sess.token == nil {
		return nil, errors.New("no forum session")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sess.token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.JSON.Errors) > 0 {
		return nil, fmt.Errorf("forum rejected request: %s", describeErrors(env.JSON.Errors))
	}
	return env.JSON.Data, nil
}

// postIDFields is the lookup order for a submission's id: the fullname
// ("t3_abc") first, then the bare id ("abc").
var postIDFields = []string{"name", "id"}

func lookupPostID(data map[string]any) (string, bool) {
	for _, field := range postIDFields {
		if v, ok := data[field].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func fullname(id string) string {
	if strings.HasPrefix(id, postFullnamePrefix) {
		return id
	}
	return postFullnamePrefix + id
}

func describeErrors(errs [][]any) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		fields := make([]string, 0, len(e))
		for _, f := range e {
			if f != nil {
				fields = append(fields, fmt.Sprint(f))
			}
		}
		parts = append(parts, strings.Join(fields, ": "))
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
