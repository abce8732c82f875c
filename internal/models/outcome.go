package models

// Outcome discriminates the results returned by the billing manager.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotFound
	OutcomeRejected
	OutcomeTransientError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

// ChargeResult carries Charge on success and Reason otherwise.
type ChargeResult struct {
	Outcome Outcome
	Charge  *Charge
	Reason  string
}

// DrainResult lists the charges finalized during one queue pass.
type DrainResult struct {
	Outcome Outcome
	Charges []Charge
	Reason  string
}

func Succeeded(charge *Charge) ChargeResult {
	return ChargeResult{Outcome: OutcomeSuccess, Charge: charge}
}

func NotFound(reason string) ChargeResult {
	return ChargeResult{Outcome: OutcomeNotFound, Reason: reason}
}

func Rejected(reason string) ChargeResult {
	return ChargeResult{Outcome: OutcomeRejected, Reason: reason}
}

func TransientError(reason string) ChargeResult {
	return ChargeResult{Outcome: OutcomeTransientError, Reason: reason}
}
