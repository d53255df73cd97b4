// internal/suite/builtin.go
package suite

import (
	"context"
	"fmt"

	"github.com/hollis-qa/waypoint/internal/pages"
)

// Builtins returns the suites shipped with the tool: authentication, the
// dashboard order table, and the order creation wizard.
func Builtins() []Suite {
	return []Suite{loginSuite(), dashboardSuite(), orderSuite()}
}

func loginSuite() Suite {
	return Suite{
		Name: "login",
		Cases: []Case{
			{
				Name: "valid credentials reach the dashboard",
				Tags: []string{"smoke", "auth"},
				Run: func(ctx context.Context, fx *Fixture) error {
					login := pages.NewLoginPage(fx.Session, fx.Config, fx.Logger)
					return login.Login(ctx)
				},
			},
		},
	}
}

func dashboardSuite() Suite {
	return Suite{
		Name: "dashboard",
		Cases: []Case{
			{
				Name: "order table loads after the processing indicator settles",
				Tags: []string{"smoke", "dashboard"},
				Run: func(ctx context.Context, fx *Fixture) error {
					if err := pages.NewLoginPage(fx.Session, fx.Config, fx.Logger).Login(ctx); err != nil {
						return err
					}
					dash := pages.NewDashboardPage(fx.Session, fx.Config, fx.Logger)
					if err := dash.Open(ctx); err != nil {
						return err
					}
					n, err := dash.RowCount(ctx)
					if err != nil {
						return err
					}
					if n == 0 {
						return fmt.Errorf("order table rendered with no rows")
					}
					return nil
				},
			},
		},
	}
}

func orderSuite() Suite {
	return Suite{
		Name: "order",
		Cases: []Case{
			{
				Name: "create order end to end",
				Tags: []string{"order", "regression"},
				Run: func(ctx context.Context, fx *Fixture) error {
					if err := pages.NewLoginPage(fx.Session, fx.Config, fx.Logger).Login(ctx); err != nil {
						return err
					}

					wizard := pages.NewOrderWizard(fx.Session, fx.Config, fx.Logger)
					if err := wizard.Start(ctx); err != nil {
						return err
					}
					if err := wizard.OpenAddressModal(ctx); err != nil {
						return err
					}
					if err := wizard.ChooseAddress(ctx, ""); err != nil {
						return err
					}
					product, err := wizard.SelectProduct(ctx)
					if err != nil {
						return err
					}
					shipping, err := wizard.SelectShipping(ctx)
					if err != nil {
						return err
					}

					confirmation, err := wizard.Submit(ctx)
					if err != nil {
						return fmt.Errorf("order for %q via %q failed: %w", product.Name, shipping.Label, err)
					}
					fx.Logger.Info("Order placed: " + confirmation)
					return nil
				},
			},
		},
	}
}
