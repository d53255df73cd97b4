// internal/pages/dashboard_test.go
package pages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDashboardOpen(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()

	f := newFakeBrowser()
	f.setVisible(processingIndicator, true)
	go func() {
		// The AJAX load finishes shortly after navigation.
		time.Sleep(30 * time.Millisecond)
		f.setVisible(processingIndicator, false)
		f.setVisible(ordersTableRows, true)
	}()

	p := NewDashboardPage(f, cfg, zaptest.NewLogger(t))
	require.NoError(t, p.Open(ctx))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{dashboardPath}, f.navigated)
}

func TestDashboardRows(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()

	f := newFakeBrowser()
	f.evalFn = func(expression string, res interface{}) error {
		*res.(*int) = 4
		return nil
	}
	f.texts[ordersTableRows+":nth-child(1)"] = "Order #1001"

	p := NewDashboardPage(f, cfg, zaptest.NewLogger(t))

	n, err := p.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	text, err := p.RowText(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Order #1001", text)
}
