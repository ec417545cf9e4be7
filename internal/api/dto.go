package api

// Request and response bodies for the HTTP API. Amounts are int64 base
// units, identities are UUID strings.

type FundRequest struct {
	Amount int64 `json:"amount"`
}

type PurchaseRequest struct {
	Amount  int64 `json:"amount"`
	Premium int64 `json:"premium"`
}

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

type ClaimRequest struct {
	BeneficiaryID string `json:"beneficiary_id"`
	Amount        int64  `json:"amount"`
}

type RefundRequest struct {
	RecipientID string `json:"recipient_id"`
	Amount      int64  `json:"amount"`
}

type ParamRequest struct {
	Param string `json:"param"`
	Value int64  `json:"value"`
}

// CommandAccepted is returned from write endpoints. The command has been
// durably enqueued; its outcome is published on the events stream and
// reflected in projections once applied.
type CommandAccepted struct {
	CommandID string `json:"command_id"`
	Sequence  int64  `json:"sequence"`
	Status    string `json:"status"` // always "accepted"
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
