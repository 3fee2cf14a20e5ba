package block

// Amount is a monetary value in satoshis. Can be negative.
type Amount int64

const (
	// Coin is one whole coin in satoshis.
	Coin Amount = 100000000

	// MaxMoney is a sanity bound on any single amount, not the total supply.
	// The chain has no supply cap; the constant is floor(2^62 / 10^8) coins,
	// half the largest multiple of Coin that stays positive under a signed
	// 64-bit interpretation.
	MaxMoney = 46116860184 * Coin
)

// MoneyRange reports whether v is a valid amount.
func MoneyRange(v Amount) bool {
	return v >= 0 && v <= MaxMoney
}
