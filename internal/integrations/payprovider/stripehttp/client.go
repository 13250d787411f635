package stripehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ParcelBox/internal/integrations/payprovider"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type intentResp struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) CreateIntent(ctx context.Context, req payprovider.IntentRequest) (payprovider.Intent, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return payprovider.Intent{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/payment_intents"

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountMinor, 10))
	form.Set("currency", req.Currency)
	form.Set("metadata[parcelId]", req.ParcelID)
	if req.PayerEmail != "" {
		form.Set("receipt_email", req.PayerEmail)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return payprovider.Intent{}, errors.Wrap(err, "new request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return payprovider.Intent{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	var r intentResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return payprovider.Intent{}, errors.Wrap(err, "decode")
	}

	if resp.StatusCode/100 != 2 {
		if r.Error != nil && r.Error.Message != "" {
			return payprovider.Intent{}, fmt.Errorf("payment provider http %d: %s", resp.StatusCode, r.Error.Message)
		}
		return payprovider.Intent{}, fmt.Errorf("payment provider http %d", resp.StatusCode)
	}
	if r.ClientSecret == "" {
		return payprovider.Intent{}, errors.New("payment provider: empty client_secret")
	}

	return payprovider.Intent{ID: r.ID, ClientSecret: r.ClientSecret}, nil
}
