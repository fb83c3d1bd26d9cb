// Package billing holds the bill composer: the draft line list, its derived
// totals and the submission rules applied before a bill reaches the backend.
package billing

import (
	"errors"
	"math"
	"strings"

	"github.com/shopbill/shopfront/internal/backend"
)

var (
	// ErrEmptyDraft rejects submitting a bill with no lines.
	ErrEmptyDraft = errors.New("please add items to the bill")
	// ErrCustomerRequired rejects a credit bill without customer name and phone.
	ErrCustomerRequired = errors.New("please enter customer details for credit bills")
	// ErrInvalidBillType rejects an unknown bill type.
	ErrInvalidBillType = errors.New("bill type must be paid or credit")
	// ErrInvalidAmount rejects a negative or non-numeric amount paid.
	ErrInvalidAmount = errors.New("amount paid must be zero or more")
	// ErrLineOutOfRange is returned for a line index that does not exist.
	ErrLineOutOfRange = errors.New("bill line does not exist")
	// ErrAmountTooLarge rejects an edit whose line or bill total cannot be represented.
	ErrAmountTooLarge = errors.New("amount is too large")
)

// Line is one item on the draft. Subtotal and Profit are always derived from
// Price, Quantity and CostPrice.
type Line struct {
	ItemID    string  `json:"item_id"`
	ItemName  string  `json:"item_name"`
	CostPrice float64 `json:"cost_price"`
	Price     float64 `json:"sale_price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
	Profit    float64 `json:"profit"`
}

func (l *Line) recompute() {
	l.Subtotal = l.Price * float64(l.Quantity)
	l.Profit = (l.Price - l.CostPrice) * float64(l.Quantity)
}

// update sets price and quantity, leaving the line untouched when the derived
// values would overflow.
func (l *Line) update(price float64, qty int) error {
	next := *l
	next.Price = price
	next.Quantity = qty
	next.recompute()
	if !finite(next.Subtotal) || !finite(next.Profit) {
		return ErrAmountTooLarge
	}
	*l = next
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Draft is the in-progress bill.
type Draft struct {
	Mode  backend.PricingMode `json:"pricing_mode"`
	Lines []Line              `json:"lines"`
}

// NewDraft returns an empty draft priced at the customer tier.
func NewDraft() *Draft {
	return &Draft{Mode: backend.PricingCustomer}
}

// SetMode switches the tier used for lines added afterwards.
func (d *Draft) SetMode(mode backend.PricingMode) {
	if !mode.Valid() {
		mode = backend.PricingCustomer
	}
	d.Mode = mode
}

// AddLine adds one unit of item. An item already on the draft has its quantity
// bumped; otherwise a new line is appended at the tier price for mode.
func (d *Draft) AddLine(item backend.Item, mode backend.PricingMode) error {
	for i := range d.Lines {
		if d.Lines[i].ItemID == item.ID {
			return d.Lines[i].update(d.Lines[i].Price, d.Lines[i].Quantity+1)
		}
	}
	line := Line{
		ItemID:    item.ID,
		ItemName:  item.Name,
		CostPrice: item.CostPrice,
		Price:     item.TierPrice(mode),
		Quantity:  1,
	}
	line.recompute()
	if !finite(line.Subtotal) || !finite(line.Profit) {
		return ErrAmountTooLarge
	}
	d.Lines = append(d.Lines, line)
	return nil
}

// SetQuantity sets the quantity of line i, never below 1.
func (d *Draft) SetQuantity(i, qty int) error {
	if i < 0 || i >= len(d.Lines) {
		return ErrLineOutOfRange
	}
	if qty < 1 {
		qty = 1
	}
	return d.Lines[i].update(d.Lines[i].Price, qty)
}

// SetPrice sets the sale price of line i, never below 0. A non-finite price counts as 0.
func (d *Draft) SetPrice(i int, price float64) error {
	if i < 0 || i >= len(d.Lines) {
		return ErrLineOutOfRange
	}
	if !finite(price) || price < 0 {
		price = 0
	}
	return d.Lines[i].update(price, d.Lines[i].Quantity)
}

// RemoveLine deletes line i.
func (d *Draft) RemoveLine(i int) error {
	if i < 0 || i >= len(d.Lines) {
		return ErrLineOutOfRange
	}
	d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
	return nil
}

// Totals folds the current lines into the bill total and profit.
func (d *Draft) Totals() (subtotal, profit float64) {
	for _, line := range d.Lines {
		subtotal += line.Subtotal
		profit += line.Profit
	}
	return subtotal, profit
}

// Empty reports whether the draft has no lines.
func (d *Draft) Empty() bool {
	return len(d.Lines) == 0
}

// Clear drops every line and keeps the pricing mode.
func (d *Draft) Clear() {
	d.Lines = nil
}

// SubmitInput is the checkout form.
type SubmitInput struct {
	BillType      backend.BillType
	AmountPaid    *float64 // nil means paid in full
	CustomerName  string
	CustomerPhone string
}

// AmountPaid resolves the recorded payment: a blank field means the full total.
func (d *Draft) AmountPaid(in SubmitInput) float64 {
	if in.AmountPaid != nil {
		return *in.AmountPaid
	}
	total, _ := d.Totals()
	return total
}

// RemainingBalance previews what the customer still owes after paying.
func (d *Draft) RemainingBalance(in SubmitInput) float64 {
	total, _ := d.Totals()
	return total - d.AmountPaid(in)
}

// PrepareSubmission validates the draft against in and builds the backend payload.
// It never touches the network.
func (d *Draft) PrepareSubmission(in SubmitInput) (backend.BillInput, error) {
	if d.Empty() {
		return backend.BillInput{}, ErrEmptyDraft
	}
	if !in.BillType.Valid() {
		return backend.BillInput{}, ErrInvalidBillType
	}
	name := strings.TrimSpace(in.CustomerName)
	phone := strings.TrimSpace(in.CustomerPhone)
	if in.BillType == backend.BillCredit && (name == "" || phone == "") {
		return backend.BillInput{}, ErrCustomerRequired
	}
	if in.AmountPaid != nil && (!finite(*in.AmountPaid) || *in.AmountPaid < 0) {
		return backend.BillInput{}, ErrInvalidAmount
	}

	total, profit := d.Totals()
	if !finite(total) || !finite(profit) {
		return backend.BillInput{}, ErrAmountTooLarge
	}
	lines := make([]backend.BillLine, len(d.Lines))
	for i, line := range d.Lines {
		lines[i] = backend.BillLine{
			ItemID:    line.ItemID,
			ItemName:  line.ItemName,
			CostPrice: line.CostPrice,
			SalePrice: line.Price,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
			Profit:    line.Profit,
		}
	}
	mode := d.Mode
	if !mode.Valid() {
		mode = backend.PricingCustomer
	}
	payload := backend.BillInput{
		Items:       lines,
		PricingMode: mode,
		TotalAmount: total,
		AmountPaid:  d.AmountPaid(in),
		BillType:    in.BillType,
	}
	if in.BillType == backend.BillCredit {
		payload.CustomerName = &name
		payload.CustomerPhone = &phone
	}
	return payload, nil
}
