// Package httpclient implements remote.Store and remote.Auth against the
// envanter HTTP API.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"envanter/internal/apperr"
	"envanter/internal/listing"
	"envanter/internal/models"
	"envanter/internal/remote"
)

// DefaultTimeout bounds every request when no client is supplied.
const DefaultTimeout = 15 * time.Second

// Client talks to one API base URL.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	token   func() string
	logger  *slog.Logger
}

var (
	_ remote.Store = (*Client)(nil)
	_ remote.Auth  = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAnonKey sets the apikey header sent on public auth calls.
func WithAnonKey(key string) Option {
	return func(c *Client) { c.anonKey = key }
}

// WithTokenSource supplies the bearer token for row-level calls. The
// identity holder's AccessToken is the usual source.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		token:   func() string { return "" },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusError is the server's {error, code} envelope plus the HTTP status.
type statusError struct {
	Status  int
	Code    string
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

func kindFor(e *statusError) apperr.Kind {
	switch e.Code {
	case "NOT_FOUND":
		return apperr.KindNotFound
	case "CONFLICT":
		return apperr.KindConflict
	case "INSUFFICIENT_STOCK":
		return apperr.KindInsufficientStock
	case "VALIDATION_FAILED", "INVALID_JSON", "IMPORT_FAILED", "IMPORT_ROW_ERRORS":
		return apperr.KindValidation
	}
	switch e.Status {
	case http.StatusUnauthorized:
		return apperr.KindCredentials
	case http.StatusForbidden:
		return apperr.KindPermission
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusBadRequest:
		return apperr.KindValidation
	}
	return apperr.KindTransport
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string
	anon   bool
}

// do sends c and decodes a 2xx JSON body into out (when non-nil). Failures
// come back as *apperr.Error labelled with op.
func (c *Client) do(ctx context.Context, op string, cl call, out any) error {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return apperr.Validation(op, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return apperr.Transport(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.anon && c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "op", op, "method", cl.method, "path", cl.path, "error", err)
		return apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		se := &statusError{Status: resp.StatusCode}
		var eb errorBody
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb); err == nil {
			se.Code, se.Message = eb.Code, eb.Error
		} else {
			se.Message = http.StatusText(resp.StatusCode)
		}
		kind := kindFor(se)
		c.logger.Debug("request rejected", "op", op, "status", se.Status, "code", se.Code, "kind", kind)
		return apperr.New(kind, op, se)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// authed is a row-level call carrying the current bearer token.
func (c *Client) authed(method, path string, body any) call {
	return call{method: method, path: path, body: body, token: c.token()}
}

// listAll walks a paginated list endpoint until every row is fetched.
func listAll[T any](ctx context.Context, c *Client, op, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	out := []T{}
	for offset := 0; ; {
		query.Set("limit", strconv.Itoa(listing.MaxLimit))
		query.Set("offset", strconv.Itoa(offset))

		var page listing.Response[T]
		cl := c.authed(http.MethodGet, path, nil)
		cl.query = query
		if err := c.do(ctx, op, cl, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		offset += len(page.Data)
		if len(page.Data) == 0 || offset >= page.Meta.Total {
			return out, nil
		}
	}
}

func (c *Client) ListItems(ctx context.Context) ([]models.Item, error) {
	return listAll[models.Item](ctx, c, "remote.ListItems", "/items", nil)
}

func (c *Client) InsertItem(ctx context.Context, req models.CreateItemRequest) (*models.Item, error) {
	var it models.Item
	if err := c.do(ctx, "remote.InsertItem", c.authed(http.MethodPost, "/items", req), &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.Item, error) {
	var it models.Item
	if err := c.do(ctx, "remote.UpdateItem", c.authed(http.MethodPatch, "/items/"+url.PathEscape(id), patch), &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) DeleteItem(ctx context.Context, id string) (int, error) {
	var out struct {
		MovementsRemoved int `json:"movements_removed"`
	}
	if err := c.do(ctx, "remote.DeleteItem", c.authed(http.MethodDelete, "/items/"+url.PathEscape(id), nil), &out); err != nil {
		return 0, err
	}
	return out.MovementsRemoved, nil
}

func (c *Client) ListMovements(ctx context.Context, f models.MovementFilter) ([]models.Movement, error) {
	q := url.Values{}
	if len(f.ItemIDs) > 0 {
		q.Set("item_id", strings.Join(f.ItemIDs, ","))
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.From != nil {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	return listAll[models.Movement](ctx, c, "remote.ListMovements", "/movements", q)
}

func (c *Client) InsertMovement(ctx context.Context, req models.CreateMovementRequest) (*models.MovementResult, error) {
	var res models.MovementResult
	if err := c.do(ctx, "remote.InsertMovement", c.authed(http.MethodPost, "/movements", req), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeleteMovement(ctx context.Context, id string) error {
	return c.do(ctx, "remote.DeleteMovement", c.authed(http.MethodDelete, "/movements/"+url.PathEscape(id), nil), nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := c.do(ctx, "remote.ListCategories", c.authed(http.MethodGet, "/categories", nil), &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (c *Client) InsertCategory(ctx context.Context, name string) (*models.Category, error) {
	var cat models.Category
	if err := c.do(ctx, "remote.InsertCategory", c.authed(http.MethodPost, "/categories", models.NamedRequest{Name: name}), &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, "remote.DeleteCategory", c.authed(http.MethodDelete, "/categories/"+url.PathEscape(id), nil), nil)
}

func (c *Client) ListLocations(ctx context.Context) ([]models.Location, error) {
	var locs []models.Location
	if err := c.do(ctx, "remote.ListLocations", c.authed(http.MethodGet, "/locations", nil), &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

func (c *Client) InsertLocation(ctx context.Context, name string) (*models.Location, error) {
	var loc models.Location
	if err := c.do(ctx, "remote.InsertLocation", c.authed(http.MethodPost, "/locations", models.NamedRequest{Name: name}), &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (c *Client) DeleteLocation(ctx context.Context, id string) error {
	return c.do(ctx, "remote.DeleteLocation", c.authed(http.MethodDelete, "/locations/"+url.PathEscape(id), nil), nil)
}

func (c *Client) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, "remote.GetProfile", c.authed(http.MethodGet, "/profiles/"+url.PathEscape(id), nil), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) LookupEmail(ctx context.Context, username string) (string, error) {
	var out models.LookupEmailResponse
	cl := call{method: http.MethodPost, path: "/rpc/lookup_email", body: models.LookupEmailRequest{Username: username}, anon: true}
	if err := c.do(ctx, "remote.LookupEmail", cl, &out); err != nil {
		return "", err
	}
	return out.Email, nil
}

// ListUsers returns the user directory (profiles for non-admins).
func (c *Client) ListUsers(ctx context.Context) ([]models.Profile, error) {
	var out []models.Profile
	if err := c.do(ctx, "remote.ListUsers", c.authed(http.MethodGet, "/users", nil), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser creates an account. Admin only.
func (c *Client) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, "remote.CreateUser", c.authed(http.MethodPost, "/users", req), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser patches an account's name, role or active flag. Admin only.
func (c *Client) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if err := patch.Validate(); err != nil {
		return nil, apperr.Validation("remote.UpdateUser", err)
	}
	var u models.User
	if err := c.do(ctx, "remote.UpdateUser", c.authed(http.MethodPatch, "/users/"+url.PathEscape(id), patch), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var sess models.Session
	cl := call{method: http.MethodPost, path: "/auth/token", body: models.TokenRequest{Email: email, Password: password}, anon: true}
	if err := c.do(ctx, "remote.SignIn", cl, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, "remote.SignOut", call{method: http.MethodPost, path: "/auth/logout", token: token}, nil)
}

func (c *Client) GetUser(ctx context.Context, token string) (*models.SessionUser, error) {
	var u models.SessionUser
	if err := c.do(ctx, "remote.GetUser", call{method: http.MethodGet, path: "/auth/user", token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
