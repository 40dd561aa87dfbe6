package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eaili5/eaili5/internal/domain"
)

// HealthStatus is the backend health report.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  int64  `json:"uptime,omitempty"`
}

// Token is a token row from the REST list/detail endpoints.
type Token struct {
	Address     string          `json:"address"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Change24h   float64         `json:"change24h"`
	Volume24h   decimal.Decimal `json:"volume24h"`
	MarketCap   decimal.Decimal `json:"marketCap"`
	SafetyScore int             `json:"safetyScore"`
	Category    string          `json:"category,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty"`
}

// Snapshot converts a REST token row into the domain snapshot form.
func (t Token) Snapshot() domain.TokenSnapshot {
	return domain.TokenSnapshot{
		Address:     t.Address,
		Symbol:      t.Symbol,
		Name:        t.Name,
		Price:       t.Price,
		Change24h:   t.Change24h,
		Volume24h:   t.Volume24h,
		MarketCap:   t.MarketCap,
		SafetyScore: t.SafetyScore,
		UpdatedAt:   t.UpdatedAt,
	}
}

// tokensResponse is the list endpoint envelope.
type tokensResponse struct {
	Tokens []Token `json:"tokens"`
	Total  int     `json:"total,omitempty"`
}

// Candle is an OHLC bar for a token.
type Candle struct {
	Timestamp int64           `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// ohlcResponse is the OHLC endpoint envelope.
type ohlcResponse struct {
	Address string   `json:"address"`
	Candles []Candle `json:"candles"`
}

// Holding is a single position in a portfolio.
type Holding struct {
	Address  string          `json:"address"`
	Symbol   string          `json:"symbol,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	ValueUSD decimal.Decimal `json:"valueUsd,omitempty"`
}

// Portfolio is a user's simulated portfolio.
type Portfolio struct {
	UserID     string          `json:"userId"`
	Holdings   []Holding       `json:"holdings"`
	TotalValue decimal.Decimal `json:"totalValue"`
	PnL24h     decimal.Decimal `json:"pnl24h,omitempty"`
}

// SimulationRequest asks the backend to project a hypothetical portfolio.
type SimulationRequest struct {
	UserID   string    `json:"userId,omitempty"`
	Holdings []Holding `json:"holdings"`
	Days     int       `json:"days,omitempty"`
}

// SimulationResult is the backend's projection.
type SimulationResult struct {
	StartValue decimal.Decimal `json:"startValue"`
	EndValue   decimal.Decimal `json:"endValue"`
	ChangePct  float64         `json:"changePct"`
	Notes      []string        `json:"notes,omitempty"`
}

// WalletStatus reports the backend's view of a wallet connection.
type WalletStatus struct {
	Address   string `json:"address"`
	Network   string `json:"network,omitempty"`
	Connected bool   `json:"connected"`
}

// sessionResponse is the session create envelope.
type sessionResponse struct {
	SessionToken string `json:"sessionToken"`
	Identity     string `json:"identity,omitempty"`
}

// Overview is the analytics overview payload.
type Overview struct {
	TotalTokens    int             `json:"totalTokens"`
	TotalVolume24h decimal.Decimal `json:"totalVolume24h"`
	ActiveUsers    int             `json:"activeUsers,omitempty"`
	TopGainer      string          `json:"topGainer,omitempty"`
	TopLoser       string          `json:"topLoser,omitempty"`
}

// TrendingTopic is one entry from the social trending feed.
type TrendingTopic struct {
	Topic    string  `json:"topic"`
	Mentions int     `json:"mentions"`
	Score    float64 `json:"score,omitempty"`
}

// trendingResponse is the trending endpoint envelope.
type trendingResponse struct {
	Topics []TrendingTopic `json:"topics"`
}
