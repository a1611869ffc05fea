package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopfront/api/responses"
	"github.com/angelmondragon/shopfront/api/validators"
	"github.com/angelmondragon/shopfront/internal/browse"
	"github.com/angelmondragon/shopfront/internal/catalog"
	pkgerrors "github.com/angelmondragon/shopfront/pkg/errors"
	"github.com/angelmondragon/shopfront/pkg/logger"
)

type selectCategoryPayload struct {
	Slug string `json:"slug" validate:"required"`
}

type searchTextPayload struct {
	Text string `json:"text"`
}

type productResponse struct {
	Product      catalog.Product `json:"product"`
	CartQuantity int             `json:"cartQuantity"`
}

// CatalogView returns the current catalog view.
func CatalogView(machine CatalogMachine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, machine.View())
	}
}

// CatalogCategories lists categories with the synthetic "all" entry first.
func CatalogCategories(machine CatalogMachine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, machine.View().Categories)
	}
}

// CatalogSelectCategory switches the active category.
func CatalogSelectCategory(machine CatalogMachine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload selectCategoryPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispatch(w, r, machine, logg, func() error {
			return machine.SelectCategory(validators.SanitizeString(payload.Slug, validators.MaxTextLen))
		})
	}
}

// CatalogSetSearchText records the search box contents.
func CatalogSetSearchText(machine CatalogMachine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload searchTextPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispatch(w, r, machine, logg, func() error {
			return machine.SetSearchText(validators.SanitizeString(payload.Text, validators.MaxTextLen))
		})
	}
}

// CatalogSubmitSearch submits the search, optionally replacing the text first.
func CatalogSubmitSearch(machine CatalogMachine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text *string `json:"text"`
		}
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispatch(w, r, machine, logg, func() error {
			if payload.Text != nil {
				return machine.SubmitSearchText(validators.SanitizeString(*payload.Text, validators.MaxTextLen))
			}
			return machine.SubmitSearch()
		})
	}
}

// CatalogRefresh resubmits the active query.
func CatalogRefresh(machine CatalogMachine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dispatch(w, r, machine, logg, machine.Refresh)
	}
}

// ProductDetail resolves one product and reports how many are in the cart.
func ProductDetail(machine CatalogMachine, store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		product, err := machine.Product(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, productResponse{Product: product, CartQuantity: store.Quantity(id)})
	}
}

func dispatch(w http.ResponseWriter, r *http.Request, machine CatalogMachine, logg *logger.Logger, intent func() error) {
	if err := intent(); err != nil {
		if errors.Is(err, browse.ErrClosed) {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog is shutting down")
		}
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusAccepted, machine.View())
}
