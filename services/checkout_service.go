// services/checkout_service.go

package services

import (
	"net/http"

	"github.com/norun9/harvestbasket/checkout"
)

func (s *StorefrontServer) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	var form checkout.Form
	if err := decodeBody(w, r, &form); err != nil {
		renderHTTPError(log, r, w, err, http.StatusBadRequest)
		return
	}

	res, err := s.checkout.Checkout(r.Context(), s.cart(r), form)
	if err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	log.WithField("total", res.Quote.Total.String()).Info("redirecting to payment")
	renderJSON(log, w, http.StatusOK, res)
}

func (s *StorefrontServer) verifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	confirmation, err := s.checkout.Verify(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		renderHTTPError(log, r, w, err, statusFor(err))
		return
	}
	renderJSON(log, w, http.StatusOK, confirmation)
}
