package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/pkg/config"
	apperrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("payment ledger base url is required")
	errEngineRequired  = errors.New("payment engine account is required")
)

// Ledger is the settlement surface the sale engine depends on. Amounts are
// denominated in the ledger's smallest unit and never negative.
type Ledger interface {
	BalanceOf(ctx context.Context, account uuid.UUID) (int64, error)
	Allowance(ctx context.Context, owner, spender uuid.UUID) (int64, error)
	TransferFrom(ctx context.Context, from, to uuid.UUID, amount int64) error
	Transfer(ctx context.Context, to uuid.UUID, amount int64) error
}

// Client talks to the external fungible-token ledger over HTTP. The engine
// account is the spender for TransferFrom and the source for Transfer.
type Client struct {
	baseURL       string
	apiKey        string
	engineAccount uuid.UUID
	httpClient    *http.Client
	logg          *logger.Logger
}

// NewClient validates the configuration and builds the ledger client.
func NewClient(ctx context.Context, cfg config.PaymentConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	engine, err := cfg.EngineAccountID()
	if err != nil {
		return nil, err
	}
	if engine == uuid.Nil {
		return nil, errEngineRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if logg != nil {
		logg.Info(ctx, "payment ledger client initialized")
	}

	return &Client{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		engineAccount: engine,
		httpClient:    &http.Client{Timeout: timeout},
		logg:          logg,
	}, nil
}

// EngineAccount returns the configured spender account.
func (c *Client) EngineAccount() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.engineAccount
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

type allowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance int64  `json:"allowance"`
}

type transferRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type ledgerErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BalanceOf returns the fungible balance held by the account.
func (c *Client) BalanceOf(ctx context.Context, account uuid.UUID) (int64, error) {
	var out balanceResponse
	path := fmt.Sprintf("/v1/accounts/%s/balance", account)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// Allowance returns how much the spender may draw from the owner's balance.
func (c *Client) Allowance(ctx context.Context, owner, spender uuid.UUID) (int64, error) {
	var out allowanceResponse
	path := fmt.Sprintf("/v1/accounts/%s/allowances/%s", owner, spender)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Allowance, nil
}

// TransferFrom draws amount from the payer's pre-approved allowance into the
// destination account. The engine account is the authenticated spender.
func (c *Client) TransferFrom(ctx context.Context, from, to uuid.UUID, amount int64) error {
	body := transferRequest{From: from.String(), To: to.String(), Amount: amount}
	return c.do(ctx, http.MethodPost, "/v1/transfers/from", body, nil)
}

// Transfer moves amount out of the engine account's own balance.
func (c *Client) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	body := transferRequest{To: to.String(), Amount: amount}
	return c.do(ctx, http.MethodPost, "/v1/transfers", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c == nil || c.httpClient == nil {
		return apperrors.New(apperrors.CodeDependency, "payment ledger client not initialized")
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "encoding ledger request")
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "building ledger request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePaymentFailed, err, "calling payment ledger")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.mapLedgerError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.CodePaymentFailed, err, "decoding ledger response")
	}
	return nil
}

func (c *Client) mapLedgerError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body ledgerErrorBody
	_ = json.Unmarshal(raw, &body)
	msg := body.Message
	if msg == "" {
		msg = fmt.Sprintf("payment ledger returned status %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired,
		strings.EqualFold(body.Code, "insufficient_funds"),
		strings.EqualFold(body.Code, "insufficient_allowance"):
		return apperrors.New(apperrors.CodePaymentMismatch, msg)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.New(apperrors.CodePaymentFailed, msg)
	default:
		return apperrors.New(apperrors.CodePaymentFailed, msg)
	}
}
