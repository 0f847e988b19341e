// Package airtable implements the data-store collaborator: record and
// schema retrieval over the Airtable REST API.
package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Airtable API endpoint.
const DefaultBaseURL = "https://api.airtable.com/v0"

// ErrRecordNotFound indicates the referenced record id does not exist.
var ErrRecordNotFound = errors.New("airtable: record not found")

// RequestError reports a failed API call with enough context for
// diagnosis.
type RequestError struct {
	Table  string
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("airtable: table %q: status %d: %s", e.Table, e.Status, e.Detail)
}

// Record is one raw data-store record.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// Query selects records from a table view.
type Query struct {
	View      string
	Filter    string
	SortField string
	SortDir   string
}

// Client wraps interactions with the Airtable API for a single base.
type Client struct {
	baseURL    string
	token      string
	baseID     string
	httpClient *http.Client
}

// NewClient constructs a new client. baseURL falls back to the public
// API endpoint when empty.
func NewClient(baseURL, token, baseID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		baseID:  baseID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetRecord fetches a single record by id.
func (c *Client) GetRecord(ctx context.Context, table, id string) (Record, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table), url.PathEscape(id))
	var rec Record
	if err := c.get(ctx, table, endpoint, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

type recordPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// ListRecords fetches every record matched by the query, following the
// pagination cursor. The sort is applied by the data store; an empty
// result is valid.
func (c *Client) ListRecords(ctx context.Context, table string, q Query) ([]Record, error) {
	params := url.Values{}
	if q.View != "" {
		params.Set("view", q.View)
	}
	if q.Filter != "" {
		params.Set("filterByFormula", q.Filter)
	}
	if q.SortField != "" {
		params.Set("sort[0][field]", q.SortField)
		dir := q.SortDir
		if dir == "" {
			dir = "asc"
		}
		params.Set("sort[0][direction]", dir)
	}

	var records []Record
	offset := ""
	for {
		if offset != "" {
			params.Set("offset", offset)
		}
		endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.baseID, url.PathEscape(table), params.Encode())
		var page recordPage
		if err := c.get(ctx, table, endpoint, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

type schemaResponse struct {
	Tables []Table `json:"tables"`
}

// BaseSchema fetches the table metadata of the base, used to classify
// field types.
func (c *Client) BaseSchema(ctx context.Context) ([]Table, error) {
	endpoint := fmt.Sprintf("%s/meta/bases/%s/tables", c.baseURL, c.baseID)
	var resp schemaResponse
	if err := c.get(ctx, "", endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

func (c *Client) get(ctx context.Context, table, endpoint string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Table: table, Detail: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: table %q", ErrRecordNotFound, table)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{Table: table, Status: resp.StatusCode, Detail: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
