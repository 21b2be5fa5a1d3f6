package converge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credentials identifies a merchant account. Injected explicitly so tests
// and multi-merchant setups never depend on ambient environment state.
type Credentials struct {
	MerchantID string
	UserID     string
	PIN        string
}

// HostedSessionRequest carries everything needed to build a hosted-checkout
// redirect URL. AmountCents is in minor currency units.
type HostedSessionRequest struct {
	AmountCents   int64
	InvoiceNumber string
	CustomerEmail string
	CustomerName  string
	ReturnURL     string
	CancelURL     string
}

// Gateway defines the wire-level operations the billing service needs from
// the payment processor.
type Gateway interface {
	// HostedPaymentURL builds the redirect URL for the gateway's hosted
	// payment page. The user enters card details there; we never see them.
	HostedPaymentURL(req HostedSessionRequest) string
	// Sale charges a stored token (ccsale).
	Sale(ctx context.Context, token string, amountCents int64, invoiceNumber string) (Fields, error)
	// Refund reverses part or all of a settled transaction (ccreturn).
	Refund(ctx context.Context, txnID string, amountCents int64) (Fields, error)
}

// Client talks to the Converge gateway over its form-encoded ssl_* protocol.
type Client struct {
	creds      Credentials
	apiURL     string
	hostedURL  string
	httpClient *http.Client
}

// NewClient creates a gateway client. apiURL is the server-to-server
// transaction endpoint; hostedURL is the hosted payment page base.
func NewClient(creds Credentials, apiURL, hostedURL string) *Client {
	return &Client{
		creds:      creds,
		apiURL:     apiURL,
		hostedURL:  hostedURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FormatAmount renders minor currency units as the two-decimal string the
// gateway expects (2900 -> "29.00").
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (c *Client) baseValues(txnType string) url.Values {
	v := url.Values{}
	v.Set("ssl_merchant_id", c.creds.MerchantID)
	v.Set("ssl_user_id", c.creds.UserID)
	v.Set("ssl_pin", c.creds.PIN)
	v.Set("ssl_transaction_type", txnType)
	v.Set("ssl_result_format", "ASCII")
	return v
}

// HostedPaymentURL builds the hosted-checkout redirect URL. The gateway is
// asked to issue a reusable token (ssl_get_token) and persist it against the
// merchant account (ssl_add_token) so later charges can skip the redirect.
func (c *Client) HostedPaymentURL(req HostedSessionRequest) string {
	v := c.baseValues("ccsale")
	v.Set("ssl_amount", FormatAmount(req.AmountCents))
	v.Set("ssl_invoice_number", req.InvoiceNumber)
	v.Set("ssl_show_form", "true")
	v.Set("ssl_get_token", "Y")
	v.Set("ssl_add_token", "Y")
	v.Set("ssl_receipt_link_url", req.ReturnURL)
	v.Set("ssl_error_url", req.CancelURL)

	if req.CustomerEmail != "" {
		v.Set("ssl_email", req.CustomerEmail)
	}
	first, last := splitName(req.CustomerName)
	if first != "" {
		v.Set("ssl_first_name", first)
	}
	if last != "" {
		v.Set("ssl_last_name", last)
	}

	return c.hostedURL + "?" + v.Encode()
}

// Sale charges a previously stored token.
func (c *Client) Sale(ctx context.Context, token string, amountCents int64, invoiceNumber string) (Fields, error) {
	v := c.baseValues("ccsale")
	v.Set("ssl_token", token)
	v.Set("ssl_amount", FormatAmount(amountCents))
	v.Set("ssl_invoice_number", invoiceNumber)
	return c.do(ctx, v)
}

// Refund issues a ccreturn against an earlier transaction.
func (c *Client) Refund(ctx context.Context, txnID string, amountCents int64) (Fields, error) {
	v := c.baseValues("ccreturn")
	v.Set("ssl_txn_id", txnID)
	v.Set("ssl_amount", FormatAmount(amountCents))
	return c.do(ctx, v)
}

func (c *Client) do(ctx context.Context, v url.Values) (Fields, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(v.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	return ParseResponse(string(body)), nil
}

// splitName separates a full name into first/last on the first space.
func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
