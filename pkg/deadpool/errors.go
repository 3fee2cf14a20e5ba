package deadpool

// RuleError is a consensus rejection carrying the machine-readable reason
// recorded in validation state. Whether it rejects a block or only a mempool
// transaction depends on the softfork state at the point of validation.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string { return e.Reason }

func ruleError(reason string) error { return &RuleError{Reason: reason} }

// Rejection reasons.
const (
	ReasonBigintZero             = "bad-bigint-zero"
	ReasonBigintInvalid          = "bad-bigint-invalid-number"
	ReasonBigintNegative         = "bad-bigint-negative"
	ReasonBigintTooSmall         = "bad-bigint-too-small"
	ReasonBigintTooLarge         = "bad-bigint-too-large"
	ReasonBigintNonCanonicalSize = "bad-bigint-non-canonical-size"
	ReasonBigintNonCanonical     = "bad-bigint-non-canonical"

	ReasonAnnounceBurn        = "bad-announce-burn"
	ReasonClaimScriptSig      = "bad-claim-scriptsig"
	ReasonClaimNoDiv          = "bad-claim-no-division"
	ReasonClaimNoAnnouncement = "claim-without-announcement"
	ReasonClaimBeforeMaturity = "claim-before-maturity"
	ReasonClaimAfterValidity  = "claim-after-validity"
)
