// internal/pages/order.go
package pages

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hollis-qa/waypoint/internal/config"
	"github.com/hollis-qa/waypoint/internal/wait"
)

const (
	newOrderPath = "orders/new"

	openAddressButton = "[data-testid='choose-address']"
	addressModal      = "#address-modal"
	addressRows       = "#address-modal .address-entry"
	addressConfirm    = "#address-modal button.confirm"

	productRows = "#product-table tbody tr"

	shippingSelect = "#shipping-method"

	submitOrderButton = "[data-testid='submit-order']"
	orderConfirmation = "[data-testid='order-confirmation']"
)

// ErrNoProductInStock is returned when the product table has no orderable row.
var ErrNoProductInStock = errors.New("no product row is in stock")

// ErrNoShippingAvailable is returned when every shipping method is disabled.
var ErrNoShippingAvailable = errors.New("no shipping method is available")

// ProductRow is one row of the product table as read from the DOM.
type ProductRow struct {
	Name    string `json:"name"`
	InStock bool   `json:"inStock"`
}

// ShippingOption is one entry of the shipping method selector.
type ShippingOption struct {
	Value     string `json:"value"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

// OrderWizard drives the multi-step order creation flow: pick a delivery
// address from the modal, pick a product, pick a shipping method, submit.
type OrderWizard struct {
	b      Browser
	cfg    *config.Config
	logger *zap.Logger
}

func NewOrderWizard(b Browser, cfg *config.Config, logger *zap.Logger) *OrderWizard {
	return &OrderWizard{b: b, cfg: cfg, logger: logger.Named("order_wizard")}
}

// Start navigates to the order creation form.
func (w *OrderWizard) Start(ctx context.Context) error {
	return w.b.Navigate(ctx, newOrderPath)
}

// OpenAddressModal clicks the address chooser until the modal is visible. The
// modal animates in and the first click is sometimes swallowed mid-animation;
// an already-open modal is left alone. The stability window guards against
// the modal flashing open and closing again.
func (w *OrderWizard) OpenAddressModal(ctx context.Context) error {
	out, err := wait.Converge(ctx,
		w.b.ClickAction(openAddressButton),
		w.b.VisibleCondition(addressModal),
		convergeOpts(w.cfg, w.logger, wait.WithStability(w.cfg.Wait.Stability))...,
	)
	if err != nil {
		return fmt.Errorf("address modal did not open: %w", err)
	}
	w.logger.Debug("Address modal open", zap.Int("click_attempts", out.Attempts))
	return nil
}

// ChooseAddress waits for the address book to load inside the modal and
// selects the entry whose label matches preferred, or the first entry when no
// label matches.
func (w *OrderWizard) ChooseAddress(ctx context.Context, preferred string) error {
	if _, err := wait.Until(ctx,
		w.b.VisibleCondition(addressRows),
		convergeOpts(w.cfg, w.logger)...,
	); err != nil {
		return fmt.Errorf("address book did not load: %w", err)
	}

	var labels []string
	expr := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.textContent.trim())`,
		addressRows,
	)
	if err := w.b.Eval(ctx, expr, &labels); err != nil {
		return fmt.Errorf("failed to read address book: %w", err)
	}
	if len(labels) == 0 {
		return errors.New("address book is empty")
	}

	idx := pickAddress(labels, preferred)
	selector := fmt.Sprintf("%s:nth-child(%d)", addressRows, idx+1)
	if err := w.b.Click(ctx, selector); err != nil {
		return fmt.Errorf("failed to select address %q: %w", labels[idx], err)
	}
	if err := w.b.Click(ctx, addressConfirm); err != nil {
		return fmt.Errorf("failed to confirm address: %w", err)
	}

	// Confirming closes the modal. Treat a modal that lingers as a failure.
	if _, err := wait.Until(ctx,
		w.b.HiddenCondition(addressModal),
		convergeOpts(w.cfg, w.logger)...,
	); err != nil {
		return fmt.Errorf("address modal did not close after confirming: %w", err)
	}

	w.logger.Debug("Address selected", zap.String("address", labels[idx]))
	return nil
}

// SelectProduct waits for the product table to populate and adds the first
// in-stock product in table order.
func (w *OrderWizard) SelectProduct(ctx context.Context) (ProductRow, error) {
	if _, err := wait.Until(ctx,
		w.b.VisibleCondition(productRows),
		convergeOpts(w.cfg, w.logger)...,
	); err != nil {
		return ProductRow{}, fmt.Errorf("product table did not populate: %w", err)
	}

	var rows []ProductRow
	expr := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(tr => ({
		name: tr.querySelector('.product-name').textContent.trim(),
		inStock: !tr.classList.contains('out-of-stock'),
	}))`, productRows)
	if err := w.b.Eval(ctx, expr, &rows); err != nil {
		return ProductRow{}, fmt.Errorf("failed to read product table: %w", err)
	}

	idx, ok := PickInStock(rows)
	if !ok {
		return ProductRow{}, ErrNoProductInStock
	}
	selector := fmt.Sprintf("%s:nth-child(%d) button.add-to-order", productRows, idx+1)
	if err := w.b.Click(ctx, selector); err != nil {
		return ProductRow{}, fmt.Errorf("failed to add product %q: %w", rows[idx].Name, err)
	}

	w.logger.Debug("Product selected", zap.String("product", rows[idx].Name))
	return rows[idx], nil
}

// SelectShipping waits for the shipping selector to be populated and picks
// the configured preferred method if it is available, otherwise the first
// available method in option order.
func (w *OrderWizard) SelectShipping(ctx context.Context) (ShippingOption, error) {
	if _, err := wait.Until(ctx,
		w.shippingPopulated(),
		convergeOpts(w.cfg, w.logger)...,
	); err != nil {
		return ShippingOption{}, fmt.Errorf("shipping methods did not populate: %w", err)
	}

	var options []ShippingOption
	expr := fmt.Sprintf(`Array.from(document.querySelector(%q).options).map(o => ({
		value: o.value,
		label: o.textContent.trim(),
		available: !o.disabled,
	}))`, shippingSelect)
	if err := w.b.Eval(ctx, expr, &options); err != nil {
		return ShippingOption{}, fmt.Errorf("failed to read shipping methods: %w", err)
	}

	idx, ok := PickShipping(options, w.cfg.Suite.PreferredShipping)
	if !ok {
		return ShippingOption{}, ErrNoShippingAvailable
	}
	if err := w.b.SelectOption(ctx, shippingSelect, options[idx].Value); err != nil {
		return ShippingOption{}, fmt.Errorf("failed to select shipping %q: %w", options[idx].Label, err)
	}

	w.logger.Debug("Shipping selected", zap.String("method", options[idx].Label))
	return options[idx], nil
}

// shippingPopulated holds once the selector is enabled and carries at least
// one real option beyond the placeholder.
func (w *OrderWizard) shippingPopulated() wait.Condition {
	expr := fmt.Sprintf(`(function() {
		const sel = document.querySelector(%q);
		return sel !== null && !sel.disabled && sel.options.length > 1;
	})()`, shippingSelect)
	return func(ctx context.Context) (bool, error) {
		var ok bool
		if err := w.b.Eval(ctx, expr, &ok); err != nil {
			return false, err
		}
		return ok, nil
	}
}

// Submit places the order and waits for the confirmation banner. Unlike the
// modal-open click, submission is not safe to repeat, so the click happens
// exactly once and only the confirmation wait is retried.
func (w *OrderWizard) Submit(ctx context.Context) (string, error) {
	if err := w.b.Click(ctx, submitOrderButton); err != nil {
		return "", fmt.Errorf("failed to submit order: %w", err)
	}
	if _, err := wait.Until(ctx,
		w.b.VisibleCondition(orderConfirmation),
		convergeOpts(w.cfg, w.logger)...,
	); err != nil {
		return "", fmt.Errorf("order submission did not confirm: %w", err)
	}
	return w.b.Text(ctx, orderConfirmation)
}

// PickInStock returns the index of the first in-stock row in table order.
func PickInStock(rows []ProductRow) (int, bool) {
	for i, row := range rows {
		if row.InStock {
			return i, true
		}
	}
	return 0, false
}

// PickShipping returns the index of the preferred method when it is present
// and available, otherwise the first available method in option order. The
// placeholder convention of an empty value is never picked.
func PickShipping(options []ShippingOption, preferred string) (int, bool) {
	if preferred != "" {
		for i, o := range options {
			if o.Available && o.Value != "" && (o.Value == preferred || o.Label == preferred) {
				return i, true
			}
		}
	}
	for i, o := range options {
		if o.Available && o.Value != "" {
			return i, true
		}
	}
	return 0, false
}

// pickAddress returns the index of the entry matching preferred, or 0.
func pickAddress(labels []string, preferred string) int {
	if preferred == "" {
		return 0
	}
	for i, l := range labels {
		if l == preferred {
			return i
		}
	}
	return 0
}
