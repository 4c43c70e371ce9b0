package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const meliPageSize = 50

// MeliConfig configures the Mercado Livre orders API client.
type MeliConfig struct {
	BaseURL     string
	AccessToken string
	SellerID    string
	// MaxElapsed bounds the retries of one page request.
	MaxElapsed time.Duration
}

// MeliClient pulls paid orders of one seller.
type MeliClient struct {
	cfg  MeliConfig
	http *http.Client
	log  *zap.Logger
}

// NewMeliClient returns a client. httpClient may be nil.
func NewMeliClient(cfg MeliConfig, httpClient *http.Client, log *zap.Logger) *MeliClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MeliClient{cfg: cfg, http: httpClient, log: log}
}

// MeliStatusError is a non-retryable API answer.
type MeliStatusError struct {
	Status int
	Body   string
}

func (e *MeliStatusError) Error() string {
	return fmt.Sprintf("mercado livre api: status %d: %s", e.Status, e.Body)
}

type meliSearch struct {
	Results []meliOrder `json:"results"`
	Paging  struct {
		Total  int `json:"total"`
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	} `json:"paging"`
}

type meliOrder struct {
	ID          int64     `json:"id"`
	DateCreated time.Time `json:"date_created"`
	Buyer       struct {
		Nickname string `json:"nickname"`
	} `json:"buyer"`
	OrderItems []struct {
		Item struct {
			Title               string `json:"title"`
			VariationAttributes []struct {
				Name      string `json:"name"`
				ValueName string `json:"value_name"`
			} `json:"variation_attributes"`
		} `json:"item"`
		Quantity  int             `json:"quantity"`
		UnitPrice decimal.Decimal `json:"unit_price"`
	} `json:"order_items"`
}

// PaidOrders returns every item of the seller's paid orders as rows.
func (c *MeliClient) PaidOrders(ctx context.Context) ([]Row, error) {
	var rows []Row
	for offset := 0; ; offset += meliPageSize {
		page, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, o := range page.Results {
			rows = append(rows, o.rows()...)
		}
		if len(page.Results) == 0 || offset+meliPageSize >= page.Paging.Total {
			break
		}
	}
	return rows, nil
}

func (o meliOrder) rows() []Row {
	created := o.DateCreated
	out := make([]Row, 0, len(o.OrderItems))
	for _, it := range o.OrderItems {
		var variation []string
		for _, a := range it.Item.VariationAttributes {
			variation = append(variation, a.Name+": "+a.ValueName)
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		row := Row{
			ExternalID: strconv.FormatInt(o.ID, 10),
			Buyer:      o.Buyer.Nickname,
			Title:      it.Item.Title,
			Variation:  strings.Join(variation, ", "),
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Total:      it.UnitPrice.Mul(qty),
		}
		if !created.IsZero() {
			row.CreatedAt = &created
		}
		out = append(out, row)
	}
	return out
}

func (c *MeliClient) fetchPage(ctx context.Context, offset int) (meliSearch, error) {
	q := url.Values{}
	q.Set("seller", c.cfg.SellerID)
	q.Set("order.status", "paid")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(meliPageSize))
	endpoint := c.cfg.BaseURL + "/orders/search?" + q.Encode()

	var page meliSearch
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request orders: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := &MeliStatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		page = meliSearch{}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return backoff.Permanent(fmt.Errorf("decode orders: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = c.cfg.MaxElapsed

	notify := func(err error, wait time.Duration) {
		c.log.Warn("mercado livre request failed, retrying",
			zap.Int("offset", offset),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		var statusErr *MeliStatusError
		if errors.As(err, &statusErr) {
			return meliSearch{}, statusErr
		}
		return meliSearch{}, fmt.Errorf("fetch mercado livre orders: %w", err)
	}
	return page, nil
}
