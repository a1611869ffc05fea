package controllers

import (
	"net/http"

	"github.com/angelmondragon/shopfront/api/responses"
	"github.com/angelmondragon/shopfront/api/validators"
	"github.com/angelmondragon/shopfront/internal/checkout"
	"github.com/angelmondragon/shopfront/pkg/logger"
)

// CheckoutPlaceOrder validates the form and places the order.
func CheckoutPlaceOrder(placer OrderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var form checkout.Form
		if err := validators.DecodeJSON(r, &form); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		confirmation, err := placer.PlaceOrder(ctx, form)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, confirmation)
	}
}
