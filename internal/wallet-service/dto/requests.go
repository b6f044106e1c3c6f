package dto

// valores sempre na menor unidade do ativo, como string decimal

type DepositRequest struct {
	Account     string `json:"account"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ idempotência simples
}

// TransferRequest é usado por /wallet/pull (account -> escrow) e /wallet/push (escrow -> account)
type TransferRequest struct {
	Account     string `json:"account"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref"`
}

type BatchTransfer struct {
	Account     string `json:"account"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref"`
}

type PushBatchRequest struct {
	Asset     string          `json:"asset"`
	Transfers []BatchTransfer `json:"transfers"`
}

// RevertRequest anula uma transferência pela ref original (ver /wallet/revert)
type RevertRequest struct {
	Asset       string `json:"asset"`
	ExternalRef string `json:"external_ref"`
}
