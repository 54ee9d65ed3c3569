package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/menuboard/internal/model"
	"github.com/dukerupert/menuboard/internal/store"
)

type FavoriteHandler struct {
	favoriteStore *store.FavoriteStore
	logger        *slog.Logger
}

func NewFavoriteHandler(fs *store.FavoriteStore, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{favoriteStore: fs, logger: logger}
}

type favoriteRow struct {
	CustomerID      string `json:"customer_id"`
	EstablishmentID string `json:"establishment_id"`
	ProductID       string `json:"product_id"`
}

// List handles GET /rest/v1/favorites?customer_id=&establishment_id=
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	establishmentID := r.URL.Query().Get("establishment_id")
	if customerID == "" || establishmentID == "" {
		writeError(w, http.StatusBadRequest, "customer_id and establishment_id are required")
		return
	}

	favorites, err := h.favoriteStore.List(r.Context(), customerID, establishmentID)
	if err != nil {
		h.logger.Error("list favorites", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}
	if favorites == nil {
		favorites = []model.Favorite{}
	}
	writeJSON(w, http.StatusOK, favorites)
}

// Create handles POST /rest/v1/favorites. The body is one row or an array of
// rows; rows that already exist are ignored.
func (h *FavoriteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var rows []favoriteRow
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	} else {
		var row favoriteRow
		if err := json.Unmarshal(trimmed, &row); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		rows = []favoriteRow{row}
	}

	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "no favorites given")
		return
	}

	type pair struct{ customer, establishment string }
	grouped := make(map[pair][]string)
	var order []pair
	for _, row := range rows {
		if row.CustomerID == "" || row.EstablishmentID == "" || row.ProductID == "" {
			writeError(w, http.StatusBadRequest, "customer_id, establishment_id, and product_id are required")
			return
		}
		p := pair{row.CustomerID, row.EstablishmentID}
		if _, ok := grouped[p]; !ok {
			order = append(order, p)
		}
		grouped[p] = append(grouped[p], row.ProductID)
	}

	for _, p := range order {
		if err := h.favoriteStore.Add(r.Context(), p.customer, p.establishment, grouped[p]...); err != nil {
			h.logger.Error("add favorites", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save favorites")
			return
		}
	}

	writeJSON(w, http.StatusCreated, rows)
}

// Delete handles DELETE /rest/v1/favorites?customer_id=&establishment_id=[&product_id=]
// Without product_id every favorite of the pair is removed.
func (h *FavoriteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customerID := q.Get("customer_id")
	establishmentID := q.Get("establishment_id")
	if customerID == "" || establishmentID == "" {
		writeError(w, http.StatusBadRequest, "customer_id and establishment_id are required")
		return
	}

	var err error
	if productID := q.Get("product_id"); productID != "" {
		err = h.favoriteStore.Remove(r.Context(), customerID, establishmentID, productID)
	} else {
		err = h.favoriteStore.Clear(r.Context(), customerID, establishmentID)
	}
	if err != nil {
		h.logger.Error("delete favorites", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete favorites")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
