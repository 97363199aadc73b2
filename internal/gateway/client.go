package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/pestops-contracts/internal/model"
)

// Client is the HTTP implementation of Gateway.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

func (c *Client) FetchDropdowns(ctx context.Context) (model.Dropdowns, error) {
	var dropdowns model.Dropdowns
	if err := c.call(ctx, http.MethodGet, "/dropdowns", nil, &dropdowns); err != nil {
		return model.Dropdowns{}, err
	}
	return dropdowns.Clean(), nil
}

func (c *Client) FetchDateRange(ctx context.Context, req DateRangeRequest) (DateRange, error) {
	body := map[string]string{
		"startDate":        formatDate(req.StartDate),
		"contractType":     req.ContractType,
		"billingFrequency": req.BillingFrequency,
	}
	var wire dateRangeWire
	if err := c.call(ctx, http.MethodPost, "/contracts/date-range", body, &wire); err != nil {
		return DateRange{}, err
	}
	return DateRange{
		EndDate:      parseDate(wire.EndDate),
		ReminderDate: parseDate(wire.ReminderDate),
	}, nil
}

func (c *Client) FetchInvoiceCount(ctx context.Context, req InvoiceCountRequest) (string, error) {
	body := map[string]string{
		"startDate":          formatDate(req.StartDate),
		"endDate":            formatDate(req.EndDate),
		"billingFrequencyId": req.BillingFrequencyID,
	}
	var wire struct {
		InvoiceCount flexString `json:"invoiceCount"`
	}
	if err := c.call(ctx, http.MethodPost, "/contracts/invoice-count", body, &wire); err != nil {
		return "", err
	}
	return string(wire.InvoiceCount), nil
}

func (c *Client) FetchPestCount(ctx context.Context, req PestCountRequest) (string, error) {
	body := map[string]string{
		"pestId":      req.PestID,
		"frequencyId": req.FrequencyID,
		"startDate":   formatOptionalDate(req.StartDate),
		"endDate":     formatOptionalDate(req.EndDate),
	}
	var wire struct {
		PestCount flexString `json:"pestCount"`
	}
	if err := c.call(ctx, http.MethodPost, "/contracts/pest-count", body, &wire); err != nil {
		return "", err
	}
	return string(wire.PestCount), nil
}

func (c *Client) FetchCustomerDetails(ctx context.Context, customerID string) (model.CustomerDetails, error) {
	var wire customerWire
	if err := c.call(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, &wire); err != nil {
		return model.CustomerDetails{}, err
	}
	return model.CustomerDetails(wire), nil
}

func (c *Client) FetchContract(ctx context.Context, contractID string) (*ContractDetail, error) {
	var wire contractWire
	if err := c.call(ctx, http.MethodGet, "/contracts/"+url.PathEscape(contractID), nil, &wire); err != nil {
		return nil, err
	}
	detail := wire.toDetail()
	if detail.Draft.ContractID == "" {
		detail.Draft.ContractID = contractID
	}
	return detail, nil
}

func (c *Client) PersistContract(ctx context.Context, payload model.ContractPayload) (*PersistResult, error) {
	return c.persist(ctx, "/contracts", payload)
}

func (c *Client) GenerateSchedule(ctx context.Context, req ScheduleRequest) ([]model.Ticket, error) {
	body := map[string]any{
		"contractId": req.ContractID,
		"startDate":  formatDate(req.StartDate),
		"endDate":    formatDate(req.EndDate),
		"pestIds":    req.PestIDs,
	}
	var wire struct {
		Tickets []model.Ticket `json:"tickets"`
	}
	if err := c.call(ctx, http.MethodPost, "/contracts/schedule", body, &wire); err != nil {
		return nil, err
	}
	return wire.Tickets, nil
}

func (c *Client) PersistTickets(ctx context.Context, req TicketsRequest) (*PersistResult, error) {
	return c.persist(ctx, "/contracts/tickets", req)
}

// call performs a lookup request. Anything but a success envelope is an
// error.
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	env, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if !strings.EqualFold(env.Status, StatusSuccess) {
		return fmt.Errorf("%w: %s %s: %s", ErrUpstream, method, path, env.Message)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrBadResponse, path, err)
	}
	return nil
}

// persist performs a save request. The envelope is returned as-is so the
// caller can decide what a non-success status means.
func (c *Client) persist(ctx context.Context, path string, body any) (*PersistResult, error) {
	env, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return &PersistResult{Status: env.Status, Data: env.Data, Message: env.Message}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("gateway call")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUpstream, path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s %s: http %d", ErrUpstream, method, path, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decode %s: %v", ErrBadResponse, path, err)
	}
	if env.Status == "" && resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s %s: http %d", ErrUpstream, method, path, resp.StatusCode)
	}
	return &env, nil
}
