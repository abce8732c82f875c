package models

// CardOnFile is a cyclist's stored card as returned by the cyclist directory.
// It is held only for the duration of one charge attempt.
type CardOnFile struct {
	HolderName string `json:"nomeTitular" binding:"required"`
	Number     string `json:"numero" binding:"required,min=13,max=19"`
	Expiry     string `json:"validade" binding:"required,datetime=2006-01-02"`
	CVV        string `json:"cvv" binding:"required"`
}

type CardLookup struct {
	Found   bool
	Card    *CardOnFile
	Message string
}

type GatewayDecision struct {
	Approved bool
	Reason   string
}

type CardValidation struct {
	Valid   bool
	Message string
}
