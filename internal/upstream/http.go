package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	infraerrors "github.com/jonesrussell/north-cloud/insights/infrastructure/errors"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
)

const (
	// DefaultPageSize is used when a request carries no limit.
	DefaultPageSize int64 = 10000
	// maxPages bounds offset paging against a backend that misreports rowCount.
	maxPages = 100
)

// HTTPConfig configures the report API transport.
type HTTPConfig struct {
	BaseURL     string
	PropertyID  string
	AccessToken string
}

// HTTPTransport calls a runReport style JSON API.
type HTTPTransport struct {
	cfg    HTTPConfig
	client *http.Client
	log    logger.Logger
}

// NewHTTPTransport validates cfg and returns a transport using client.
func NewHTTPTransport(cfg HTTPConfig, client *http.Client, log logger.Logger) (*HTTPTransport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream base url is required")
	}
	if cfg.PropertyID == "" {
		return nil, errors.New("upstream property id is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPTransport{cfg: cfg, client: client, log: log}, nil
}

// Resource names the property being queried.
func (t *HTTPTransport) Resource() string {
	return "runReport:" + t.cfg.PropertyID
}

// RunReport fetches every page of req and returns the concatenated rows.
func (t *HTTPTransport) RunReport(ctx context.Context, req *ReportRequest) (*ReportResponse, error) {
	page := *req
	if page.Limit <= 0 {
		page.Limit = DefaultPageSize
	}

	out := &ReportResponse{}
	for range maxPages {
		resp, err := t.fetch(ctx, &page)
		if err != nil {
			return nil, err
		}
		out.Rows = append(out.Rows, resp.Rows...)
		out.RowCount = resp.RowCount

		if len(resp.Rows) == 0 || int64(len(out.Rows)) >= resp.RowCount {
			return out, nil
		}
		page.Offset += int64(len(resp.Rows))
	}

	t.log.Warn("Report paging stopped at page limit",
		logger.String("resource", t.Resource()),
		logger.Int("rows", len(out.Rows)),
		logger.Int64("row_count", out.RowCount),
	)
	return nil, fmt.Errorf("run report %s: %w (%d of %d rows)", t.Resource(), ErrPageLimit, len(out.Rows), out.RowCount)
}

func (t *HTTPTransport) fetch(ctx context.Context, req *ReportRequest) (*ReportResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("encode report request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/properties/%s:runReport", t.cfg.BaseURL, url.PathEscape(t.cfg.PropertyID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if t.cfg.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.cfg.AccessToken)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("run report: %w", err)
	}
	defer resp.Body.Close()

	if herr := infraerrors.ParseHTTPError(resp); herr != nil {
		return nil, herr
	}

	var out ReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return &out, nil
}
