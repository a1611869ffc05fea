package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopfront/api/responses"
	"github.com/angelmondragon/shopfront/api/validators"
	"github.com/angelmondragon/shopfront/pkg/logger"
)

type addLinePayload struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
}

type setQuantityPayload struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartFetch returns the current cart snapshot.
func CartFetch(store CartStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartAddLine resolves the product through the catalog and adds one unit.
func CartAddLine(store CartStore, machine CatalogMachine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload addLinePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		product, err := machine.Product(ctx, payload.ProductID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		store.Add(product)
		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartSetQuantity sets a line quantity; zero or less removes the line.
func CartSetQuantity(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload setQuantityPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		store.SetQuantity(id, *payload.Quantity)
		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartRemoveLine drops a line.
func CartRemoveLine(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store.Remove(id)
		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartClear empties the cart.
func CartClear(store CartStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store.Clear()
		responses.WriteSuccess(w, store.Snapshot())
	}
}
