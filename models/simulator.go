package models

type ExchangeType string

const (
	ExchangeEquities ExchangeType = "EQUITIES"
	ExchangeCrypto   ExchangeType = "CRYPTO"
	ExchangeFX       ExchangeType = "FX"
)

// DefaultExchangeType substitutes for exchange_type values the store
// holds but this build does not know about.
const DefaultExchangeType = ExchangeEquities

func ParseExchangeType(s string) (ExchangeType, bool) {
	switch ExchangeType(s) {
	case ExchangeEquities, ExchangeCrypto, ExchangeFX:
		return ExchangeType(s), true
	}
	return DefaultExchangeType, false
}

// SimulatorInstance is one running simulator row for a user.
type SimulatorInstance struct {
	SimulatorID  string       `db:"simulator_id"`
	UserID       string       `db:"user_id"`
	Endpoint     string       `db:"endpoint"`
	Status       string       `db:"status"`
	ExchangeType ExchangeType `db:"exchange_type"`
	CreatedAt    float64      `db:"created_at"`
}
