package backend

import (
	"context"
	"net/http"
	"net/url"
)

// ListCreditCustomers returns the per-customer credit aggregates.
func (c *Client) ListCreditCustomers(ctx context.Context, token string) ([]CreditCustomer, error) {
	var customers []CreditCustomer
	if err := c.doJSON(ctx, opListCreditCustomers, http.MethodGet, "/api/credit-customers", token, nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// CustomerPayments returns the payment history of the customer with phone.
func (c *Client) CustomerPayments(ctx context.Context, token, phone string) ([]Payment, error) {
	var payments []Payment
	path := "/api/credit-customers/" + url.PathEscape(phone) + "/payments"
	if err := c.doJSON(ctx, opCustomerPayments, http.MethodGet, path, token, nil, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// RecordPayment books a payment against a credit bill.
func (c *Client) RecordPayment(ctx context.Context, token string, in PaymentInput) (Payment, error) {
	var payment Payment
	if err := c.doJSON(ctx, opRecordPayment, http.MethodPost, "/api/payments", token, in, &payment); err != nil {
		return Payment{}, err
	}
	return payment, nil
}
