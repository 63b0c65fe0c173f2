package errors

// Machine-readable reasons attached to domain errors with WithReason.
const (
	ReasonInvalidQuantity   = "invalid_quantity"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonEmptyCart         = "empty_cart"
	ReasonMissingAddress    = "missing_address"
	ReasonAlreadyRegistered = "already_registered"
	ReasonTournamentEnded   = "tournament_ended"
	ReasonInvalidCode       = "invalid_code"
	ReasonTeamComplete      = "team_complete"
	ReasonPaymentDeclined   = "payment_declined"
	ReasonMissingProfile    = "missing_profile"
)

// InsufficientStock builds the error returned when a product cannot cover a quantity.
func InsufficientStock(productID string, requested, available int) *Error {
	return New(CodeStateConflict, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		}).
		WithReason(ReasonInsufficientStock)
}
