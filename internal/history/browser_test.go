package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbill/shopfront/internal/backend"
)

type recordingFetch struct {
	mu      sync.Mutex
	filters []backend.BillFilter
	err     error
}

func (f *recordingFetch) fetch(ctx context.Context, token string, filter backend.BillFilter) ([]backend.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return []backend.Bill{{ID: "b", BillNumber: "BILL-" + filter.Search}}, nil
}

func (f *recordingFetch) calls() []backend.BillFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.BillFilter(nil), f.filters...)
}

func TestBrowserCoalescesBurstIntoLatestTerm(t *testing.T) {
	rec := &recordingFetch{}
	b := NewBrowser(100*time.Millisecond, rec.fetch)

	terms := []string{"r", "ra", "rav", "ravi"}
	results := make([][]backend.Bill, len(terms))
	used := make([]backend.BillFilter, len(terms))
	var wg sync.WaitGroup
	for i, term := range terms {
		wg.Add(1)
		go func(i int, term string) {
			defer wg.Done()
			bills, filter, err := b.Search(context.Background(), "tok", backend.BillFilter{Search: term})
			assert.NoError(t, err)
			results[i] = bills
			used[i] = filter
		}(i, term)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	calls := rec.calls()
	require.Len(t, calls, 1, "one fetch per quiet period")
	assert.Equal(t, "ravi", calls[0].Search)
	for i := range terms {
		require.Len(t, results[i], 1)
		assert.Equal(t, "BILL-ravi", results[i][0].BillNumber, "every waiter sees the latest result")
		assert.Equal(t, "ravi", used[i].Search, "and the filter that produced it")
	}
}

func TestBrowserResetsTimerOnEachTerm(t *testing.T) {
	rec := &recordingFetch{}
	b := NewBrowser(80*time.Millisecond, rec.fetch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = b.Search(context.Background(), "tok", backend.BillFilter{Search: "a"})
	}()
	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	_, _, err := b.Search(context.Background(), "tok", backend.BillFilter{Search: "ab"})
	require.NoError(t, err)
	<-done

	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	require.Len(t, rec.calls(), 1)
	assert.Equal(t, "ab", rec.calls()[0].Search)
}

func TestBrowserSeparateBurstsFetchSeparately(t *testing.T) {
	rec := &recordingFetch{}
	b := NewBrowser(20*time.Millisecond, rec.fetch)
	_, _, err := b.Search(context.Background(), "tok", backend.BillFilter{Search: "a"})
	require.NoError(t, err)
	_, _, err = b.Search(context.Background(), "tok", backend.BillFilter{Search: "b", BillType: backend.BillCredit})
	require.NoError(t, err)

	calls := rec.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, backend.BillCredit, calls[1].BillType)
}

func TestBrowserCanceledWaiterDoesNotCancelFetch(t *testing.T) {
	rec := &recordingFetch{}
	b := NewBrowser(60*time.Millisecond, rec.fetch)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := b.Search(ctx, "tok", backend.BillFilter{Search: "x"})
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	bills, _, err := b.Search(context.Background(), "tok", backend.BillFilter{Search: "y"})
	require.NoError(t, err)
	assert.Equal(t, "BILL-y", bills[0].BillNumber)
	assert.Len(t, rec.calls(), 1)
}

func TestBrowserPropagatesFetchError(t *testing.T) {
	rec := &recordingFetch{err: errors.New("down")}
	b := NewBrowser(10*time.Millisecond, rec.fetch)
	_, _, err := b.Search(context.Background(), "tok", backend.BillFilter{})
	assert.EqualError(t, err, "down")
}

func TestBrowserZeroDelayFetchesInline(t *testing.T) {
	rec := &recordingFetch{}
	b := NewBrowser(0, rec.fetch)
	_, _, err := b.Search(context.Background(), "tok", backend.BillFilter{Search: "now"})
	require.NoError(t, err)
	assert.Len(t, rec.calls(), 1)
}

func TestRegistryPerSessionAndSweep(t *testing.T) {
	rec := &recordingFetch{}
	reg := NewRegistry(10*time.Millisecond, time.Minute, rec.fetch)

	a := reg.Browser("a")
	assert.Same(t, a, reg.Browser("a"))
	assert.NotSame(t, a, reg.Browser("b"))
	assert.Equal(t, 2, reg.Len())

	assert.Zero(t, reg.Sweep(time.Now()))
	assert.Equal(t, 2, reg.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, reg.Len())

	reg.Browser("c")
	reg.Forget("c")
	assert.Zero(t, reg.Len())
}

func TestForgetReleasesWaiters(t *testing.T) {
	rec := &recordingFetch{}
	reg := NewRegistry(time.Hour, time.Minute, rec.fetch)
	errCh := make(chan error, 1)
	go func() {
		_, _, err := reg.Browser("s").Search(context.Background(), "tok", backend.BillFilter{})
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		b := reg.Browser("s")
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.waiters) == 1
	}, time.Second, 5*time.Millisecond)
	reg.Forget("s")
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Empty(t, rec.calls())
}
