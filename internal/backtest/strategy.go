package backtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/contactkeval/premium-backtest/internal/data"
)

// Strategy identifiers accepted by StrategyFor.
const (
	CoveredCall    = "covered_call"
	CashSecuredPut = "cash_secured_put"
	IronCondor     = "iron_condor"
)

const contractMultiplier = 100.0

// SkipReason says why a sample date produced no trade.
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipNoExpiration      SkipReason = "no_expiration"
	SkipNoContracts       SkipReason = "no_contracts"
	SkipNonPositiveCredit SkipReason = "non_positive_credit"
)

// Leg is one option position inside a trade.
type Leg struct {
	Action string  `json:"action"` // sell | buy
	Type   string  `json:"type"`   // call | put
	Symbol string  `json:"symbol,omitempty"`
	Strike float64 `json:"strike"`
	Price  float64 `json:"price"` // bid for sold legs, ask for bought legs
	Delta  float64 `json:"delta"`
}

// Position is what a strategy opens on a sample date.
// Credit is per share: premium received for single-leg strategies, net credit for spreads.
type Position struct {
	Legs   []Leg
	Credit float64
}

func (p Position) leg(action, typ string) (Leg, bool) {
	for _, l := range p.Legs {
		if l.Action == action && l.Type == typ {
			return l, true
		}
	}
	return Leg{}, false
}

// Market is the state a strategy sees on a sample date.
type Market struct {
	Spot        float64
	Days        int
	RiskFree    float64
	TargetDelta float64
	Width       float64
}

// Settlement is the expiration outcome of a Position.
type Settlement struct {
	PnL     float64
	ITM     bool
	Outcome string
}

// Evaluator opens and settles one kind of premium-selling position.
type Evaluator interface {
	Name() string
	// Open picks legs from chain. A non-empty SkipReason means no trade.
	Open(chain *data.Chain, m Market) (Position, SkipReason)
	// Settle values pos at expiration against the settlement close.
	Settle(pos Position, entry, settle float64) Settlement
}

var evaluators = map[string]Evaluator{
	CoveredCall:    coveredCall{},
	CashSecuredPut: cashSecuredPut{},
	IronCondor:     ironCondor{},
}

// StrategyFor looks up an evaluator by identifier.
func StrategyFor(name string) (Evaluator, error) {
	ev, ok := evaluators[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q (want one of %s)", ErrInvalidParams, name, strings.Join(Strategies(), ", "))
	}
	return ev, nil
}

// Strategies lists the supported identifiers, sorted.
func Strategies() []string {
	out := make([]string, 0, len(evaluators))
	for k := range evaluators {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// --------------------------------------------------------------------------------------------
// covered call
// --------------------------------------------------------------------------------------------

type coveredCall struct{}

func (coveredCall) Name() string { return CoveredCall }

func (coveredCall) Open(chain *data.Chain, m Market) (Position, SkipReason) {
	return openSingle(chain.Calls, true, m)
}

// Settle: called away above the strike, so the stock leg gains strike - entry.
func (coveredCall) Settle(pos Position, entry, settle float64) Settlement {
	l := pos.Legs[0]
	s := Settlement{PnL: pos.Credit * contractMultiplier, Outcome: "Expired OTM"}
	if settle > l.Strike {
		s.ITM = true
		s.Outcome = "Expired ITM"
		s.PnL += (l.Strike - entry) * contractMultiplier
	}
	return s
}

// --------------------------------------------------------------------------------------------
// cash-secured put
// --------------------------------------------------------------------------------------------

type cashSecuredPut struct{}

func (cashSecuredPut) Name() string { return CashSecuredPut }

func (cashSecuredPut) Open(chain *data.Chain, m Market) (Position, SkipReason) {
	return openSingle(chain.Puts, false, m)
}

// Settle: assigned below the strike, losing strike - settlement per share.
func (cashSecuredPut) Settle(pos Position, _, settle float64) Settlement {
	l := pos.Legs[0]
	s := Settlement{PnL: pos.Credit * contractMultiplier, Outcome: "Expired OTM"}
	if settle < l.Strike {
		s.ITM = true
		s.Outcome = "Expired ITM"
		s.PnL -= (l.Strike - settle) * contractMultiplier
	}
	return s
}

func openSingle(quotes []data.ContractQuote, isCall bool, m Market) (Position, SkipReason) {
	scored := ScoreContracts(quotes, false, m.Spot, m.Days, m.RiskFree, isCall)
	c, ok := SelectByDelta(scored, m.TargetDelta)
	if !ok {
		return Position{}, SkipNoContracts
	}
	return Position{
		Legs:   []Leg{soldLeg(c, isCall)},
		Credit: c.Bid,
	}, SkipNone
}

// --------------------------------------------------------------------------------------------
// iron condor
// --------------------------------------------------------------------------------------------

type ironCondor struct{}

func (ironCondor) Name() string { return IronCondor }

// Open sells the put and call nearest the target delta and buys the wings
// nearest short put - width and short call + width.
func (ironCondor) Open(chain *data.Chain, m Market) (Position, SkipReason) {
	puts := ScoreContracts(chain.Puts, true, m.Spot, m.Days, m.RiskFree, false)
	calls := ScoreContracts(chain.Calls, true, m.Spot, m.Days, m.RiskFree, true)
	if len(puts) == 0 || len(calls) == 0 {
		return Position{}, SkipNoContracts
	}

	shortPut, _ := SelectByDelta(puts, m.TargetDelta)
	shortCall, _ := SelectByDelta(calls, m.TargetDelta)
	longPut, _ := NearestStrike(puts, shortPut.Strike-m.Width)
	longCall, _ := NearestStrike(calls, shortCall.Strike+m.Width)

	credit := (shortPut.Bid + shortCall.Bid) - (longPut.Ask + longCall.Ask)
	if credit <= 0 {
		return Position{}, SkipNonPositiveCredit
	}

	return Position{
		Legs: []Leg{
			soldLeg(shortPut, false),
			soldLeg(shortCall, true),
			boughtLeg(longPut, false),
			boughtLeg(longCall, true),
		},
		Credit: credit,
	}, SkipNone
}

// Settle keeps the full credit when settlement lands strictly between the
// short strikes. Otherwise it books the max loss, sized from the call wing
// only: (long call - short call) * 100 - credit * 100.
func (ironCondor) Settle(pos Position, _, settle float64) Settlement {
	sp, _ := pos.leg("sell", "put")
	sc, _ := pos.leg("sell", "call")
	lc, _ := pos.leg("buy", "call")

	credit := pos.Credit * contractMultiplier
	if sp.Strike < settle && settle < sc.Strike {
		return Settlement{PnL: credit, Outcome: "Expired OTM (Max Profit)"}
	}
	actualWidth := lc.Strike - sc.Strike
	return Settlement{
		PnL:     -(actualWidth*contractMultiplier - credit),
		ITM:     true,
		Outcome: "Expired ITM (Max Loss)",
	}
}

func soldLeg(c ScoredContract, isCall bool) Leg {
	return Leg{Action: "sell", Type: optType(isCall), Symbol: c.Symbol, Strike: c.Strike, Price: c.Bid, Delta: c.Delta}
}

func boughtLeg(c ScoredContract, isCall bool) Leg {
	return Leg{Action: "buy", Type: optType(isCall), Symbol: c.Symbol, Strike: c.Strike, Price: c.Ask, Delta: c.Delta}
}

func optType(isCall bool) string {
	if isCall {
		return "call"
	}
	return "put"
}
