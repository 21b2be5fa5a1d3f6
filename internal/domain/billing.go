package domain

import "time"

// BillingCustomer maps an organization to its gateway customer record.
// Created lazily on first checkout, one per organization.
type BillingCustomer struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	AddressLine1   string    `json:"addressLine1,omitempty"`
	AddressLine2   string    `json:"addressLine2,omitempty"`
	City           string    `json:"city,omitempty"`
	State          string    `json:"state,omitempty"`
	PostalCode     string    `json:"postalCode,omitempty"`
	Country        string    `json:"country,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PaymentMethod is a tokenized, reusable card reference. GatewayToken is the
// opaque gateway-issued token (never a raw card number) and is encrypted
// at rest. At most one method per organization is the default; the first
// method saved becomes default automatically.
type PaymentMethod struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organizationId"`
	BillingCustomerID string    `json:"billingCustomerId"`
	GatewayToken      string    `json:"-"`
	CardLast4         string    `json:"cardLast4"`
	CardBrand         string    `json:"cardBrand"`
	ExpMonth          int       `json:"expMonth"`
	ExpYear           int       `json:"expYear"`
	IsDefault         bool      `json:"isDefault"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// PaymentStatus is the settlement state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Refundable reports whether a payment in this status may be refunded.
func (s PaymentStatus) Refundable() bool {
	return s == PaymentCompleted || s == PaymentPartiallyRefunded
}

// Payment is a transaction attempt. It is created pending (hosted checkout)
// or processing (token charge), settles exactly once to completed or failed,
// and may afterwards accumulate refunds. RefundedAmountCents never exceeds
// AmountCents.
type Payment struct {
	ID                  string            `json:"id"`
	OrganizationID      string            `json:"organizationId"`
	SubscriptionID      *string           `json:"subscriptionId,omitempty"`
	PaymentMethodID     *string           `json:"paymentMethodId,omitempty"`
	AmountCents         int64             `json:"amountCents"`
	Currency            string            `json:"currency"`
	Status              PaymentStatus     `json:"status"`
	GatewayTxnID        string            `json:"gatewayTxnId,omitempty"`
	ApprovalCode        string            `json:"approvalCode,omitempty"`
	Description         string            `json:"description,omitempty"`
	FailureReason       string            `json:"failureReason,omitempty"`
	RefundedAmountCents int64             `json:"refundedAmountCents"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// Metadata keys used to correlate a payment across the checkout round-trip.
const (
	MetaInvoiceNumber   = "invoiceNumber"
	MetaPlanID          = "planId"
	MetaBillingInterval = "billingInterval"
)

// PaymentEventType tags an audit-trail entry.
type PaymentEventType string

const (
	EventCheckoutInitiated     PaymentEventType = "checkout_initiated"
	EventCallbackReceived      PaymentEventType = "callback_received"
	EventPaymentCompleted      PaymentEventType = "payment_completed"
	EventPaymentFailed         PaymentEventType = "payment_failed"
	EventTokenPaymentInitiated PaymentEventType = "token_payment_initiated"
	EventAPIResponse           PaymentEventType = "api_response"
	EventAPIError              PaymentEventType = "api_error"
	EventRefundInitiated       PaymentEventType = "refund_initiated"
	EventRefundCompleted       PaymentEventType = "refund_completed"
	EventRefundFailed          PaymentEventType = "refund_failed"
	EventRefundError           PaymentEventType = "refund_error"
	EventPaymentExpired        PaymentEventType = "payment_expired"
)

// PaymentEvent is an append-only audit row. PaymentID is nullable because
// some events precede payment resolution. Events are never mutated or
// deleted; they are the ground truth for reconciliation and disputes.
type PaymentEvent struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organizationId"`
	PaymentID      *string          `json:"paymentId,omitempty"`
	Type           PaymentEventType `json:"type"`
	Payload        map[string]any   `json:"payload,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// CheckoutRequest is the input for creating a hosted checkout session.
type CheckoutRequest struct {
	PlanID          string          `json:"planId" validate:"required"`
	BillingInterval BillingInterval `json:"billingInterval" validate:"required,oneof=monthly yearly"`
	CustomerEmail   string          `json:"customerEmail" validate:"required,email"`
	CustomerName    string          `json:"customerName"`
	ReturnURL       string          `json:"returnUrl" validate:"required,url"`
	CancelURL       string          `json:"cancelUrl" validate:"required,url"`
}

// CheckoutSession is returned to the caller, who redirects the user to
// HostedPageURL. ExpiresAt is advisory; the gateway enforces its own
// timeout.
type CheckoutSession struct {
	SessionToken  string    `json:"sessionToken"`
	HostedPageURL string    `json:"hostedPageUrl"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// ChargeRequest is the input for charging a stored payment method.
type ChargeRequest struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
	AmountCents     int64  `json:"amountCents" validate:"required,gt=0"`
	Description     string `json:"description"`
}

// ChargeResult reports the outcome of a token charge. Gateway declines set
// Success=false with a user-safe Error message; they are not Go errors.
type ChargeResult struct {
	Success       bool   `json:"success"`
	PaymentID     string `json:"paymentId"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CallbackResult reports the outcome of reconciling a hosted-checkout
// redirect payload.
type CallbackResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RefundRequest is the input for refunding a payment. AmountCents of zero
// means "refund everything still refundable".
type RefundRequest struct {
	PaymentID   string `json:"paymentId" validate:"required"`
	AmountCents int64  `json:"amountCents" validate:"gte=0"`
}

// RefundResult reports the outcome of a refund attempt.
type RefundResult struct {
	Success             bool          `json:"success"`
	PaymentID           string        `json:"paymentId"`
	RefundedAmountCents int64         `json:"refundedAmountCents"`
	Status              PaymentStatus `json:"status"`
	Error               string        `json:"error,omitempty"`
}
