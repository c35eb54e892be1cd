// Package amm implements the constant-product market maker the MEME token
// trades against. The pool holds two reserves (MEME and LvMON) and charges
// no fee, so x*y = k is preserved exactly by every swap.
package amm

// Pool is a two-asset constant-product liquidity pool.
type Pool struct {
	ReserveToken float64 `json:"reserve_token"` // MEME side
	ReserveBase  float64 `json:"reserve_base"`  // LvMON side
}

// NewPool creates a pool with the given initial reserves.
func NewPool(reserveToken, reserveBase float64) *Pool {
	return &Pool{ReserveToken: reserveToken, ReserveBase: reserveBase}
}

// Price returns the spot price of the token in base currency.
// A drained token side yields 0 rather than Inf.
func (p *Pool) Price() float64 {
	if p.ReserveToken <= 0 {
		return 0
	}
	return p.ReserveBase / p.ReserveToken
}

// QuoteOut returns the output amount for a zero-fee constant-product swap:
// amountOut = amountIn * reserveOut / (reserveIn + amountIn).
// Swapping nothing, or quoting against an empty side, is a valid no-op
// and returns 0.
func QuoteOut(amountIn, reserveIn, reserveOut float64) float64 {
	if amountIn <= 0 || reserveIn <= 0 || reserveOut <= 0 {
		return 0
	}
	return amountIn * reserveOut / (reserveIn + amountIn)
}

// ApplySwap executes a swap against the pool and returns the output amount.
// tokenToBase selects the direction: true sells MEME for LvMON, false buys
// MEME with LvMON. Both reserves are updated together so no caller ever
// observes a half-applied swap.
func (p *Pool) ApplySwap(amountIn float64, tokenToBase bool) float64 {
	var out float64
	if tokenToBase {
		out = QuoteOut(amountIn, p.ReserveToken, p.ReserveBase)
		if out <= 0 {
			return 0
		}
		p.ReserveToken += amountIn
		p.ReserveBase -= out
	} else {
		out = QuoteOut(amountIn, p.ReserveBase, p.ReserveToken)
		if out <= 0 {
			return 0
		}
		p.ReserveBase += amountIn
		p.ReserveToken -= out
	}
	return out
}

// Clone returns an independent copy of the pool. The settlement engine
// stages a day-step on a clone and commits it atomically.
func (p *Pool) Clone() *Pool {
	cp := *p
	return &cp
}

// LiquidityRatio returns base reserve relative to token reserve value at the
// current price, a crude depth signal passed to the decision provider.
func (p *Pool) LiquidityRatio() float64 {
	tokenValue := p.ReserveToken * p.Price()
	if tokenValue <= 0 {
		return 0
	}
	return p.ReserveBase / tokenValue
}
