package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbill/shopfront/internal/backend"
)

type stubCreator struct {
	calls int
	last  backend.BillInput
	err   error
}

func (s *stubCreator) CreateBill(ctx context.Context, token string, in backend.BillInput) (backend.Bill, error) {
	s.calls++
	s.last = in
	if s.err != nil {
		return backend.Bill{}, s.err
	}
	return backend.Bill{ID: "b1", BillNumber: "BILL-20250301-001", TotalAmount: in.TotalAmount}, nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.n++
	return nil
}

func TestSubmitClearsDraftAndInvalidates(t *testing.T) {
	creator := &stubCreator{}
	inv := &countingInvalidator{}
	svc := NewService(nil, creator, inv)
	d := NewDraft()
	d.AddLine(switchItem, backend.PricingCustomer)

	bill, err := svc.Submit(context.Background(), "tok", d, SubmitInput{BillType: backend.BillPaid})
	require.NoError(t, err)
	assert.Equal(t, "BILL-20250301-001", bill.BillNumber)
	assert.Equal(t, 1, creator.calls)
	assert.True(t, d.Empty())
	assert.Equal(t, 1, inv.n)
}

func TestSubmitValidationSkipsNetwork(t *testing.T) {
	creator := &stubCreator{}
	svc := NewService(nil, creator)

	_, err := svc.Submit(context.Background(), "tok", NewDraft(), SubmitInput{BillType: backend.BillPaid})
	assert.ErrorIs(t, err, ErrEmptyDraft)

	d := NewDraft()
	d.AddLine(switchItem, backend.PricingCustomer)
	_, err = svc.Submit(context.Background(), "tok", d, SubmitInput{BillType: backend.BillCredit})
	assert.ErrorIs(t, err, ErrCustomerRequired)
	assert.Equal(t, 0, creator.calls)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	creator := &stubCreator{err: errors.New("connection reset")}
	inv := &countingInvalidator{}
	svc := NewService(nil, creator, inv)
	d := NewDraft()
	d.AddLine(switchItem, backend.PricingCustomer)
	d.AddLine(wireItem, backend.PricingCustomer)

	_, err := svc.Submit(context.Background(), "tok", d, SubmitInput{BillType: backend.BillPaid})
	require.Error(t, err)
	assert.Len(t, d.Lines, 2)
	assert.Equal(t, 0, inv.n)

	creator.err = nil
	_, err = svc.Submit(context.Background(), "tok", d, SubmitInput{BillType: backend.BillPaid})
	require.NoError(t, err)
	assert.Equal(t, 2, creator.calls)
	assert.Len(t, creator.last.Items, 2)
}
