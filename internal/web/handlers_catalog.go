package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ouestoffice/catalog/internal/catalog"
	"github.com/ouestoffice/catalog/internal/logging"
)

// rollupResponse exposes a product's stored rollup fields alongside the
// offers they were derived from.
type rollupResponse struct {
	ProductID         int64               `json:"product_id"`
	Name              string              `json:"name"`
	PublicPriceTTC    decimal.NullDecimal `json:"public_price_ttc"`
	PublicPriceSource string              `json:"public_price_source"`
	AvailableQtyTotal int                 `json:"available_qty_total"`
	IsAvailable       bool                `json:"is_available"`
	Offers            []offerResponse     `json:"offers"`
}

type offerResponse struct {
	ID                int64               `json:"id"`
	Supplier          string              `json:"supplier"`
	SupplierReference string              `json:"supplier_reference"`
	PurchasePriceHT   decimal.NullDecimal `json:"purchase_price_ht"`
	PvpTTC            decimal.NullDecimal `json:"pvp_ttc"`
	VatRate           decimal.NullDecimal `json:"vat_rate"`
	StockQty          int                 `json:"stock_qty"`
	MinQty            int                 `json:"min_qty"`
	IsActive          bool                `json:"is_active"`
	PriorityRank      int                 `json:"priority_rank"`
}

func toOfferResponse(o *catalog.SupplierOffer) offerResponse {
	return offerResponse{
		ID:                o.ID,
		Supplier:          string(o.Supplier),
		SupplierReference: o.SupplierReference,
		PurchasePriceHT:   o.PurchasePriceHT,
		PvpTTC:            o.PvpTTC,
		VatRate:           o.VatRate,
		StockQty:          o.StockQty,
		MinQty:            o.MinQty,
		IsActive:          o.IsActive,
		PriorityRank:      o.PriorityRank,
	}
}

// handleProductRollup returns the stored rollup and the offer set behind it.
func (s *Server) handleProductRollup(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := s.svc.Product(r.Context(), productID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if product == nil {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("product %d not found", productID))
		return
	}

	offers, err := s.svc.ProductOffers(r.Context(), productID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := rollupResponse{
		ProductID:         product.ID,
		Name:              product.Name,
		PublicPriceTTC:    product.PublicPriceTTC,
		PublicPriceSource: string(product.PublicPriceSource),
		AvailableQtyTotal: product.AvailableQtyTotal,
		IsAvailable:       product.IsAvailable,
		Offers:            make([]offerResponse, 0, len(offers)),
	}
	for i := range offers {
		resp.Offers = append(resp.Offers, toOfferResponse(&offers[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleToggleOffer flips an offer's active flag. The rollup recompute runs
// asynchronously through the queue.
func (s *Server) handleToggleOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := strconv.ParseInt(chi.URLParam(r, "offerID"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid offer id")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	offer, err := s.svc.ToggleOffer(r.Context(), offerID, req.Active)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("offer toggled",
		"offer_id", offerID,
		"product_id", offer.ProductID,
		"active", req.Active,
	)

	writeJSON(w, http.StatusOK, toOfferResponse(offer))
}
