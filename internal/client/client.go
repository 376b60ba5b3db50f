package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// csrfCookieName is the cookie the server's token endpoint sets.
const csrfCookieName = "csrftoken"

// Client is a typed HTTP client for the inkpress API. It keeps the CSRF
// cookie in a jar and attaches the matching X-CSRFToken header to every
// mutating call.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is
// installed if the replacement has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header on all requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "inkpress-client",
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// EnsureCSRF fetches a CSRF token from the server. The token cookie
// lands in the jar; the token itself is returned for convenience.
func (c *Client) EnsureCSRF(ctx context.Context) (string, error) {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.getJSON(ctx, "/api/csrf/", nil, &body); err != nil {
		return "", fmt.Errorf("fetching CSRF token: %w", err)
	}
	return body.Token, nil
}

// csrfToken reads the CSRF cookie from the jar.
func (c *Client) csrfToken() (string, bool) {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == csrfCookieName {
			return cookie.Value, true
		}
	}
	return "", false
}

// SearchArticles queries published article titles. Queries that are
// empty after trimming resolve to no results without a network call.
func (c *Client) SearchArticles(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var body struct {
		Results []SearchResult `json:"results"`
	}
	params := url.Values{"q": {query}}
	if err := c.getJSON(ctx, "/api/search/articles", params, &body); err != nil {
		return nil, fmt.Errorf("searching articles: %w", err)
	}
	return body.Results, nil
}

// AutosaveArticle persists the draft's title, content and excerpt. The
// decoded response is returned even when the server reports a logical
// error in its Error field; transport and decode failures are errors.
func (c *Client) AutosaveArticle(ctx context.Context, draft *ArticleDraft) (*AutosaveResult, error) {
	if draft == nil {
		return nil, fmt.Errorf("autosave: draft is nil: %w", ErrInvalidArgument)
	}
	if draft.ID == 0 {
		return nil, fmt.Errorf("autosave: draft has no id: %w", ErrInvalidArgument)
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("marshalling draft: %w", err)
	}

	resp, err := c.doMutating(ctx, http.MethodPost, "/api/articles/autosave/", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading autosave response: %w", err)
	}
	var result AutosaveResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding autosave response: %w", err)
	}
	return &result, nil
}

// UploadArticleImage submits one image as a multipart form. The form
// carries the binary part "image" and the owning article id as field
// "article". A non-2xx status is reported as ErrUploadFailed.
func (c *Client) UploadArticleImage(ctx context.Context, up ImageUpload) (*UploadedImage, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("upload: no image data: %w", ErrInvalidArgument)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, up.Filename))
	if up.ContentType != "" {
		header.Set("Content-Type", up.ContentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(up.Data); err != nil {
		return nil, fmt.Errorf("writing upload form: %w", err)
	}
	if err := mw.WriteField("article", strconv.FormatInt(up.ArticleID, 10)); err != nil {
		return nil, fmt.Errorf("writing article field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing upload form: %w", err)
	}

	resp, err := c.doMutating(ctx, http.MethodPost, "/api/images/upload/", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var serverErr struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &serverErr)
		if serverErr.Error != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUploadFailed, resp.StatusCode, serverErr.Error)
		}
		return nil, fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var img UploadedImage
	if err := json.Unmarshal(respBody, &img); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	return &img, nil
}

// CreateTopic creates (or reuses) a topic and assigns it to the article.
func (c *Client) CreateTopic(ctx context.Context, articleID int64, name string) (*Topic, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("create topic: name is empty: %w", ErrInvalidArgument)
	}

	var body struct {
		Topic *Topic `json:"topic"`
	}
	path := fmt.Sprintf("/api/articles/%d/topics/", articleID)
	if err := c.postJSON(ctx, path, map[string]string{"name": name}, &body); err != nil {
		return nil, fmt.Errorf("creating topic: %w", err)
	}
	return body.Topic, nil
}

// CreateDraft creates an empty draft article with the given title.
func (c *Client) CreateDraft(ctx context.Context, title string) (*Article, error) {
	var article Article
	if err := c.postJSON(ctx, "/api/articles/", map[string]string{"title": title}, &article); err != nil {
		return nil, fmt.Errorf("creating draft: %w", err)
	}
	return &article, nil
}

// GetArticle fetches an article by id.
func (c *Client) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var article Article
	if err := c.getJSON(ctx, fmt.Sprintf("/api/articles/%d", id), nil, &article); err != nil {
		return nil, fmt.Errorf("fetching article %d: %w", id, err)
	}
	return &article, nil
}

// GetArticleBySlug fetches an article by slug.
func (c *Client) GetArticleBySlug(ctx context.Context, slug string) (*Article, error) {
	var article Article
	if err := c.getJSON(ctx, "/api/articles/slug/"+slug, nil, &article); err != nil {
		return nil, fmt.Errorf("fetching article %q: %w", slug, err)
	}
	return &article, nil
}

// ListArticles returns articles matching the options.
func (c *Client) ListArticles(ctx context.Context, opts ListOptions) ([]Article, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.TopicID > 0 {
		params.Set("topic", strconv.FormatInt(opts.TopicID, 10))
	}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(opts.PageSize))
	}

	var articles []Article
	if err := c.getJSON(ctx, "/api/articles/", params, &articles); err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	return articles, nil
}

// PublishArticle performs a full submit: save, status change and pruning
// of stored images not named in ImageIDs.
func (c *Client) PublishArticle(ctx context.Context, sub ArticleSubmission) (*Article, error) {
	if sub.ID == 0 {
		return nil, fmt.Errorf("publish: no article id: %w", ErrInvalidArgument)
	}
	if sub.ImageIDs == nil {
		sub.ImageIDs = []int64{}
	}

	var article Article
	path := fmt.Sprintf("/api/articles/%d/publish/", sub.ID)
	if err := c.postJSON(ctx, path, sub, &article); err != nil {
		return nil, fmt.Errorf("publishing article %d: %w", sub.ID, err)
	}
	return &article, nil
}

// DeleteArticle removes an article and its stored images.
func (c *Client) DeleteArticle(ctx context.Context, id int64) error {
	resp, err := c.doMutating(ctx, http.MethodDelete, fmt.Sprintf("/api/articles/%d", id), "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deleting article %d: %s", id, readError(resp))
	}
	return nil
}

// ListTopics returns all topics.
func (c *Client) ListTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	if err := c.getJSON(ctx, "/api/topics/", nil, &topics); err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	return topics, nil
}

// endpoint resolves an API path against the base URL.
func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// getJSON issues a GET and decodes a 2xx JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, params), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %s", readError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// postJSON issues a mutating POST with a JSON body and decodes a 2xx
// JSON response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	resp, err := c.doMutating(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %s", readError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// doMutating issues a state-changing request with the CSRF header
// attached from the cookie jar.
func (c *Client) doMutating(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	token, ok := c.csrfToken()
	if !ok {
		return nil, ErrNoCSRFToken
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, nil), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-CSRFToken", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// readError extracts a short error description from a failed response.
func readError(resp *http.Response) string {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var serverErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(respBody, &serverErr) == nil && serverErr.Error != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, serverErr.Error)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
