package payments

import (
	"context"
	"fmt"

	"github.com/classbridge/billing-renewals/pkg/config"
	"github.com/classbridge/billing-renewals/pkg/enums"
	pkgerrors "github.com/classbridge/billing-renewals/pkg/errors"
	"github.com/classbridge/billing-renewals/pkg/logger"
	"github.com/classbridge/billing-renewals/pkg/square"
	pkgstripe "github.com/classbridge/billing-renewals/pkg/stripe"
)

// NewGateway builds the adapter selected by the payment provider setting.
func NewGateway(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Gateway, error) {
	provider, err := cfg.Payments.ProviderKind()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfig, err, "selecting payment provider")
	}
	switch provider {
	case enums.PaymentProviderStripe:
		client, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfig, err, "initializing stripe")
		}
		if cfg.App.IsProd() && !client.IsLive() {
			return nil, pkgerrors.New(pkgerrors.CodeConfig, "stripe test keys are not allowed in prod")
		}
		return NewStripeGateway(client)
	case enums.PaymentProviderSquare:
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfig, err, "initializing square")
		}
		return NewSquareGateway(client)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("unsupported payment provider %q", provider))
	}
}
