package backend

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// PricingMode selects which sale price tier a bill uses.
type PricingMode string

const (
	PricingCustomer  PricingMode = "customer"
	PricingCarpenter PricingMode = "carpenter"
)

// Valid reports whether m is a known tier.
func (m PricingMode) Valid() bool {
	return m == PricingCustomer || m == PricingCarpenter
}

// BillType tells whether a bill was settled at the counter or sold on credit.
type BillType string

const (
	BillPaid   BillType = "paid"
	BillCredit BillType = "credit"
)

// Valid reports whether t is a known bill type.
func (t BillType) Valid() bool {
	return t == BillPaid || t == BillCredit
}

// Period is a dashboard statistics window.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Periods lists the dashboard windows in display order.
var Periods = []Period{PeriodToday, PeriodWeek, PeriodMonth, PeriodYear}

// ParsePeriod normalises s, defaulting to today for unknown values.
func ParsePeriod(s string) Period {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Periods {
		if p == known {
			return p
		}
	}
	return PeriodToday
}

// Timestamp decodes the backend's datetimes, which may lack a zone suffix.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON accepts RFC3339 and naive ISO-8601 timestamps (read as UTC).
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON writes RFC3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// UserProfile is the logged-in user as reported by the backend.
type UserProfile struct {
	Username string `json:"username"`
}

// LoginResult is the credential exchange response.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        UserProfile `json:"user"`
}

// Item is a catalog entry with its cost and two sale tiers.
type Item struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CostPrice      float64   `json:"cost_price"`
	CustomerPrice  float64   `json:"customer_price"`
	CarpenterPrice float64   `json:"carpenter_price"`
	CreatedAt      Timestamp `json:"created_at"`
	UpdatedAt      Timestamp `json:"updated_at"`
}

// TierPrice returns the sale price for mode. Unknown modes use the customer price.
func (i Item) TierPrice(mode PricingMode) float64 {
	if mode == PricingCarpenter {
		return i.CarpenterPrice
	}
	return i.CustomerPrice
}

// ItemInput is the create/update payload for an item.
type ItemInput struct {
	Name           string  `json:"name"`
	CostPrice      float64 `json:"cost_price"`
	CustomerPrice  float64 `json:"customer_price"`
	CarpenterPrice float64 `json:"carpenter_price"`
}

// ImportResult summarises a bulk item upload.
type ImportResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Download is a streamed file from the backend. Callers must close Body.
type Download struct {
	Filename    string
	ContentType string
	Body        io.ReadCloser
}

// BillLine is a finalized line as sent to and returned by the backend.
type BillLine struct {
	ItemID    string  `json:"item_id"`
	ItemName  string  `json:"item_name"`
	CostPrice float64 `json:"cost_price"`
	SalePrice float64 `json:"sale_price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
	Profit    float64 `json:"profit"`
}

// Bill is a submitted bill.
type Bill struct {
	ID               string      `json:"id"`
	BillNumber       string      `json:"bill_number"`
	Items            []BillLine  `json:"items"`
	PricingMode      PricingMode `json:"pricing_mode"`
	TotalAmount      float64     `json:"total_amount"`
	AmountPaid       float64     `json:"amount_paid"`
	Profit           float64     `json:"profit"`
	BillType         BillType    `json:"bill_type"`
	CustomerName     *string     `json:"customer_name"`
	CustomerPhone    *string     `json:"customer_phone"`
	RemainingBalance *float64    `json:"remaining_balance"`
	CreatedAt        Timestamp   `json:"created_at"`
}

// Remaining returns the outstanding amount, derived when the backend omits it.
func (b Bill) Remaining() float64 {
	if b.RemainingBalance != nil {
		return *b.RemainingBalance
	}
	return b.TotalAmount - b.AmountPaid
}

// Customer returns the customer name and phone, empty for walk-in bills.
func (b Bill) Customer() (name, phone string) {
	if b.CustomerName != nil {
		name = *b.CustomerName
	}
	if b.CustomerPhone != nil {
		phone = *b.CustomerPhone
	}
	return name, phone
}

// BillInput is the bill creation payload.
type BillInput struct {
	Items         []BillLine  `json:"items"`
	PricingMode   PricingMode `json:"pricing_mode"`
	TotalAmount   float64     `json:"total_amount"`
	AmountPaid    float64     `json:"amount_paid"`
	BillType      BillType    `json:"bill_type"`
	CustomerName  *string     `json:"customer_name"`
	CustomerPhone *string     `json:"customer_phone"`
}

// BillFilter narrows the bill history listing.
type BillFilter struct {
	Search   string
	BillType BillType
}

// Stats is the server-aggregated dashboard summary for a period.
type Stats struct {
	Period            Period  `json:"period"`
	TotalSales        float64 `json:"total_sales"`
	TotalProfit       float64 `json:"total_profit"`
	OutstandingAmount float64 `json:"outstanding_amount"`
	BillsCount        int     `json:"bills_count"`
}

// CreditCustomer is the server-computed balance of a customer buying on credit.
type CreditCustomer struct {
	Phone            string     `json:"phone"`
	Name             string     `json:"name"`
	TotalAmount      float64    `json:"total_amount"`
	TotalPaid        float64    `json:"total_paid"`
	RemainingBalance float64    `json:"remaining_balance"`
	BillCount        int        `json:"bill_count"`
	LastPaymentDate  *Timestamp `json:"last_payment_date"`
}

// Payment is a recorded settlement against a credit bill.
type Payment struct {
	ID         string    `json:"id"`
	BillID     string    `json:"bill_id"`
	BillNumber string    `json:"bill_number"`
	Amount     float64   `json:"amount"`
	Notes      string    `json:"notes"`
	CreatedAt  Timestamp `json:"created_at"`
}

// PaymentInput records a new payment.
type PaymentInput struct {
	BillID string  `json:"bill_id"`
	Amount float64 `json:"amount"`
	Notes  string  `json:"notes,omitempty"`
}
