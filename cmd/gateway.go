package main

import (
	"context"
	"strconv"

	"github.com/Fblink88/ComunidadElMaiten/internal/app"
	"github.com/Fblink88/ComunidadElMaiten/pkg/gatewayclient"
)

// flowCheckout opens gateway checkouts for the application service.
type flowCheckout struct {
	client *gatewayclient.Client
}

func (f flowCheckout) CreateCheckout(ctx context.Context, req app.CheckoutRequest) (*app.Checkout, error) {
	order, err := f.client.CreatePaymentOrder(ctx, gatewayclient.PaymentOrder{
		CommerceOrder: req.CommerceOrder,
		Subject:       req.Subject,
		Amount:        req.Amount,
		Email:         req.Email,
	})
	if err != nil {
		return nil, err
	}
	return &app.Checkout{
		Token:     order.Token,
		FlowOrder: strconv.FormatInt(order.FlowOrder, 10),
		URL:       order.CheckoutURL(),
	}, nil
}
