package targetprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/potenza-io/opsbot/pkg/utils/safe"
)

// DefaultTimeout bounds every upstream call; no retries are performed
const DefaultTimeout = 15 * time.Second

// client implements Client over the Targetprocess REST API
type client struct {
	baseURL     string
	accessToken string
	restartURL  string
	httpClient  *http.Client
}

// Option is a functional option for client configuration
type Option func(*client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRestartURL sets the out-of-band restart endpoint for the data service
func WithRestartURL(u string) Option {
	return func(c *client) {
		c.restartURL = u
	}
}

// New creates a Targetprocess client for the given API root and access token
func New(baseURL, accessToken string, opts ...Option) (Client, error) {
	if baseURL == "" {
		return nil, goerr.New("Targetprocess base URL is required")
	}
	if accessToken == "" {
		return nil, goerr.New("Targetprocess access token is required")
	}

	c := &client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// postTimeBody mirrors the v1 Times payload
type postTimeBody struct {
	Description string    `json:"Description"`
	Spent       float64   `json:"Spent"`
	Remain      float64   `json:"Remain"`
	Date        string    `json:"Date"`
	Assignable  entityRef `json:"Assignable"`
	User        entityRef `json:"User"`
}

type entityRef struct {
	ID int64 `json:"Id"`
}

func (c *client) PostTime(ctx context.Context, req *PostTimeRequest) error {
	body := postTimeBody{
		Description: req.Description,
		Spent:       req.Spent,
		Remain:      req.Remain,
		Date:        req.Date,
		Assignable:  entityRef{ID: req.AssignableID},
		User:        entityRef{ID: req.UserID},
	}

	u := fmt.Sprintf("%s/api/v1/Times?access_token=%s", c.baseURL, url.QueryEscape(c.accessToken))
	if err := c.doJSON(ctx, http.MethodPost, u, body, nil); err != nil {
		return goerr.Wrap(err, "failed to post time entry",
			goerr.V("date", req.Date),
			goerr.V("story_id", req.AssignableID),
		)
	}
	return nil
}

// timesPage is the v2 collection response with a projection of id/date/spent
type timesPage struct {
	Items []struct {
		ID    int64   `json:"id"`
		Date  string  `json:"date"`
		Spent float64 `json:"spent"`
	} `json:"items"`
}

func (c *client) ListTimes(ctx context.Context, userID, storyID int64) ([]TimeEntry, error) {
	q := url.Values{}
	q.Set("where", fmt.Sprintf("(user.id==%d) and (assignable.id==%d)", userID, storyID))
	q.Set("select", "{id,date,spent}")
	q.Set("access_token", c.accessToken)
	u := fmt.Sprintf("%s/api/v2/times?%s", c.baseURL, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build times request")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "times request failed", goerr.V("user_id", userID), goerr.V("story_id", storyID))
	}
	defer safe.Close(ctx, httpResp.Body)

	if httpResp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(httpResp.Body)
		return nil, goerr.New("times request returned error",
			goerr.V("status", httpResp.StatusCode),
			goerr.V("body", string(data)),
		)
	}

	// The collection can be large; decode from the stream
	var page timesPage
	if err := json.NewDecoder(httpResp.Body).Decode(&page); err != nil {
		return nil, goerr.Wrap(err, "failed to decode times response")
	}

	entries := make([]TimeEntry, 0, len(page.Items))
	for _, item := range page.Items {
		date, err := ParseDate(item.Date)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to normalize time entry date", goerr.V("id", item.ID))
		}
		entries = append(entries, TimeEntry{ID: item.ID, Date: date, Spent: item.Spent})
	}
	return entries, nil
}

func (c *client) DeleteTime(ctx context.Context, id int64) error {
	u := fmt.Sprintf("%s/api/v1/times/%d?access_token=%s", c.baseURL, id, url.QueryEscape(c.accessToken))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build delete request")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return goerr.Wrap(err, "delete time request failed", goerr.V("id", id))
	}
	defer safe.Close(ctx, httpResp.Body)

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusNoContent {
		data, _ := io.ReadAll(httpResp.Body)
		return goerr.New("delete time returned error",
			goerr.V("id", id),
			goerr.V("status", httpResp.StatusCode),
			goerr.V("body", string(data)),
		)
	}
	return nil
}

// updateTimeBody carries only the fields being changed
type updateTimeBody struct {
	ID    int64    `json:"Id"`
	Date  *string  `json:"Date,omitempty"`
	Spent *float64 `json:"Spent,omitempty"`
}

func (c *client) UpdateTime(ctx context.Context, id int64, date *string, spent *float64) error {
	if date == nil && spent == nil {
		return goerr.New("update requires at least one changed field", goerr.V("id", id))
	}

	u := fmt.Sprintf("%s/api/v1/times?access_token=%s", c.baseURL, url.QueryEscape(c.accessToken))
	body := updateTimeBody{ID: id, Date: date, Spent: spent}
	if err := c.doJSON(ctx, http.MethodPost, u, body, nil); err != nil {
		return goerr.Wrap(err, "failed to update time entry", goerr.V("id", id))
	}
	return nil
}

// usersXML is the v1 directory response; fields are element attributes
type usersXML struct {
	XMLName xml.Name  `xml:"Users"`
	Users   []userXML `xml:"User"`
}

type userXML struct {
	ID        int64  `xml:"Id,attr"`
	FirstName string `xml:"FirstName,attr"`
	LastName  string `xml:"LastName,attr"`
	Email     string `xml:"Email,attr"`
}

func (c *client) FindUsersByEmailLocalPart(ctx context.Context, localPart string) ([]User, error) {
	where := fmt.Sprintf("(Email contains '%s')", escapePredicate(localPart))
	return c.queryUsers(ctx, where)
}

func (c *client) FindUsersByName(ctx context.Context, firstName, lastName string) ([]User, error) {
	var preds []string
	if firstName != "" {
		preds = append(preds, fmt.Sprintf("(FirstName contains '%s')", escapePredicate(firstName)))
	}
	if lastName != "" {
		preds = append(preds, fmt.Sprintf("(LastName contains '%s')", escapePredicate(lastName)))
	}
	if len(preds) == 0 {
		return nil, goerr.New("name search requires a first or last name")
	}
	return c.queryUsers(ctx, strings.Join(preds, " and "))
}

func (c *client) queryUsers(ctx context.Context, where string) ([]User, error) {
	q := url.Values{}
	q.Set("where", where)
	q.Set("access_token", c.accessToken)
	u := fmt.Sprintf("%s/api/v1/Users?%s", c.baseURL, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build user directory request")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "user directory request failed")
	}
	defer safe.Close(ctx, httpResp.Body)

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read user directory response")
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, goerr.New("user directory returned error",
			goerr.V("status", httpResp.StatusCode),
			goerr.V("body", string(data)),
		)
	}

	var parsed usersXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user directory XML")
	}

	users := make([]User, 0, len(parsed.Users))
	for _, u := range parsed.Users {
		users = append(users, User{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		})
	}
	return users, nil
}

func (c *client) RestartService(ctx context.Context) error {
	if c.restartURL == "" {
		return goerr.New("restart endpoint is not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restartURL, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build restart request")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return goerr.Wrap(err, "restart request failed")
	}
	defer safe.Close(ctx, httpResp.Body)

	if httpResp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(httpResp.Body)
		return goerr.New("restart endpoint returned error",
			goerr.V("status", httpResp.StatusCode),
			goerr.V("body", string(data)),
		)
	}
	return nil
}

// doJSON posts a JSON body and optionally decodes a JSON response
func (c *client) doJSON(ctx context.Context, method, u string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal request body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(data))
	if err != nil {
		return goerr.Wrap(err, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return goerr.Wrap(err, "request failed")
	}
	defer safe.Close(ctx, httpResp.Body)

	respData, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return goerr.Wrap(err, "failed to read response body")
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return goerr.New("upstream returned error",
			goerr.V("status", httpResp.StatusCode),
			goerr.V("body", string(respData)),
		)
	}

	if out != nil {
		if err := json.Unmarshal(respData, out); err != nil {
			return goerr.Wrap(err, "failed to decode response body")
		}
	}
	return nil
}

// escapePredicate doubles single quotes inside query predicate values
func escapePredicate(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
