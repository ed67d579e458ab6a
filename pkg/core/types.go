package core

import (
	"errors"
	"time"
)

// Side is the direction of an order or execution.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// OrderType is the BitMEX ordType value.
type OrderType string

const (
	OrderTypeMarket          OrderType = "Market"
	OrderTypeLimit           OrderType = "Limit"
	OrderTypeStop            OrderType = "Stop"
	OrderTypeStopLimit       OrderType = "StopLimit"
	OrderTypeMarketIfTouched OrderType = "MarketIfTouched"
	OrderTypeLimitIfTouched  OrderType = "LimitIfTouched"
	OrderTypePegged          OrderType = "Pegged"
)

// TimeInForce defines how long an order remains active.
type TimeInForce string

const (
	TimeInForceDay               TimeInForce = "Day"
	TimeInForceGoodTillCancel    TimeInForce = "GoodTillCancel"
	TimeInForceImmediateOrCancel TimeInForce = "ImmediateOrCancel"
	TimeInForceFillOrKill        TimeInForce = "FillOrKill"
)

// ExecInstPostOnly makes an order cancel instead of taking liquidity.
const ExecInstPostOnly = "ParticipateDoNotInitiate"

// Instrument describes a tradeable contract and its current market state.
type Instrument struct {
	Symbol                string    `json:"symbol"`
	RootSymbol            string    `json:"rootSymbol"`
	State                 string    `json:"state"`
	Typ                   string    `json:"typ"`
	ListingTime           time.Time `json:"listing"`
	Expiry                time.Time `json:"expiry"`
	Underlying            string    `json:"underlying"`
	QuoteCurrency         string    `json:"quoteCurrency"`
	TickSize              Decimal   `json:"tickSize"`
	LotSize               Decimal   `json:"lotSize"`
	Multiplier            Decimal   `json:"multiplier"`
	MakerFee              Decimal   `json:"makerFee"`
	TakerFee              Decimal   `json:"takerFee"`
	FundingRate           Decimal   `json:"fundingRate"`
	PrevClose             Decimal   `json:"prevClosePrice"`
	HighPrice             Decimal   `json:"highPrice"`
	LowPrice              Decimal   `json:"lowPrice"`
	LastPrice             Decimal   `json:"lastPrice"`
	BidPrice              Decimal   `json:"bidPrice"`
	AskPrice              Decimal   `json:"askPrice"`
	MarkPrice             Decimal   `json:"markPrice"`
	IndicativeSettlePrice Decimal   `json:"indicativeSettlePrice"`
	Volume24h             Decimal   `json:"volume24h"`
	OpenInterest          Decimal   `json:"openInterest"`
	Timestamp             time.Time `json:"timestamp"`
}

// Execution is a single fill, order state change or funding event for the account.
type Execution struct {
	ExecID       string    `json:"execID"`
	OrderID      string    `json:"orderID"`
	ClOrdID      string    `json:"clOrdID"`
	Account      int64     `json:"account"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	LastQty      Decimal   `json:"lastQty"`
	LastPx       Decimal   `json:"lastPx"`
	OrderQty     Decimal   `json:"orderQty"`
	Price        Decimal   `json:"price"`
	ExecType     string    `json:"execType"`
	OrdType      OrderType `json:"ordType"`
	OrdStatus    string    `json:"ordStatus"`
	ExecInst     string    `json:"execInst"`
	LeavesQty    Decimal   `json:"leavesQty"`
	CumQty       Decimal   `json:"cumQty"`
	AvgPx        Decimal   `json:"avgPx"`
	Commission   Decimal   `json:"commission"`
	ExecComm     Decimal   `json:"execComm"`
	HomeNotional Decimal   `json:"homeNotional"`
	Text         string    `json:"text"`
	TransactTime time.Time `json:"transactTime"`
	Timestamp    time.Time `json:"timestamp"`
}

// Funding is a funding-rate settlement for a perpetual contract.
type Funding struct {
	Timestamp        time.Time `json:"timestamp"`
	Symbol           string    `json:"symbol"`
	FundingInterval  time.Time `json:"fundingInterval"`
	FundingRate      Decimal   `json:"fundingRate"`
	FundingRateDaily Decimal   `json:"fundingRateDaily"`
}

// Order is an order as reported by the exchange.
type Order struct {
	OrderID      string      `json:"orderID"`
	ClOrdID      string      `json:"clOrdID"`
	Account      int64       `json:"account"`
	Symbol       string      `json:"symbol"`
	Side         Side        `json:"side"`
	OrderQty     Decimal     `json:"orderQty"`
	Price        Decimal     `json:"price"`
	StopPx       Decimal     `json:"stopPx"`
	OrdType      OrderType   `json:"ordType"`
	TimeInForce  TimeInForce `json:"timeInForce"`
	ExecInst     string      `json:"execInst"`
	OrdStatus    string      `json:"ordStatus"`
	LeavesQty    Decimal     `json:"leavesQty"`
	CumQty       Decimal     `json:"cumQty"`
	AvgPx        Decimal     `json:"avgPx"`
	Text         string      `json:"text"`
	TransactTime time.Time   `json:"transactTime"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Position is the account's open position in one contract.
type Position struct {
	Account          int64     `json:"account"`
	Symbol           string    `json:"symbol"`
	Currency         string    `json:"currency"`
	CurrentQty       Decimal   `json:"currentQty"`
	AvgCostPrice     Decimal   `json:"avgCostPrice"`
	AvgEntryPrice    Decimal   `json:"avgEntryPrice"`
	MarkPrice        Decimal   `json:"markPrice"`
	LiquidationPrice Decimal   `json:"liquidationPrice"`
	Leverage         Decimal   `json:"leverage"`
	UnrealisedPnl    Decimal   `json:"unrealisedPnl"`
	RealisedPnl      Decimal   `json:"realisedPnl"`
	IsOpen           bool      `json:"isOpen"`
	Timestamp        time.Time `json:"timestamp"`

	// Stub is set when the exchange reported no position and the value was synthesized.
	Stub bool `json:"-"`
}

// TradeBin is an OHLCV bucket.
type TradeBin struct {
	Timestamp       time.Time `json:"timestamp"`
	Symbol          string    `json:"symbol"`
	Open            Decimal   `json:"open"`
	High            Decimal   `json:"high"`
	Low             Decimal   `json:"low"`
	Close           Decimal   `json:"close"`
	Trades          int64     `json:"trades"`
	Volume          Decimal   `json:"volume"`
	VWAP            Decimal   `json:"vwap"`
	LastSize        Decimal   `json:"lastSize"`
	Turnover        Decimal   `json:"turnover"`
	HomeNotional    Decimal   `json:"homeNotional"`
	ForeignNotional Decimal   `json:"foreignNotional"`
}

// DeadMansSwitch is the acknowledgement of a cancelAllAfter request.
type DeadMansSwitch struct {
	Now        time.Time `json:"now"`
	CancelTime time.Time `json:"cancelTime"`
}

// OrderRequest is the payload for placing a single order.
type OrderRequest struct {
	Symbol      string      `json:"symbol" validate:"required"`
	OrderQty    Decimal     `json:"orderQty"`
	Price       *Decimal    `json:"price,omitempty"`
	StopPx      *Decimal    `json:"stopPx,omitempty"`
	Side        Side        `json:"side,omitempty" validate:"omitempty,oneof=Buy Sell"`
	OrdType     OrderType   `json:"ordType,omitempty" validate:"omitempty,oneof=Market Limit Stop StopLimit MarketIfTouched LimitIfTouched Pegged"`
	TimeInForce TimeInForce `json:"timeInForce,omitempty" validate:"omitempty,oneof=Day GoodTillCancel ImmediateOrCancel FillOrKill"`
	ExecInst    string      `json:"execInst,omitempty"`
	ClOrdID     string      `json:"clOrdID,omitempty" validate:"omitempty,max=36"`
	Text        string      `json:"text,omitempty"`
}

var errZeroQuantity = errors.New("orderQty must be non-zero")

// Validate checks the order fields before it is sent.
func (r *OrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.OrderQty.IsZero() {
		return errZeroQuantity
	}
	return nil
}

// AmendRequest modifies a resting order identified by OrderID or OrigClOrdID.
type AmendRequest struct {
	OrderID     string   `json:"orderID,omitempty" validate:"required_without=OrigClOrdID"`
	OrigClOrdID string   `json:"origClOrdID,omitempty"`
	ClOrdID     string   `json:"clOrdID,omitempty"`
	OrderQty    *Decimal `json:"orderQty,omitempty"`
	LeavesQty   *Decimal `json:"leavesQty,omitempty"`
	Price       *Decimal `json:"price,omitempty"`
	StopPx      *Decimal `json:"stopPx,omitempty"`
	Text        string   `json:"text,omitempty"`
}

// Validate checks that the order to amend is identified.
func (r *AmendRequest) Validate() error {
	return validate.Struct(r)
}

// CancelRequest cancels a single order identified by OrderID or ClOrdID.
type CancelRequest struct {
	OrderID string `json:"orderID,omitempty" validate:"required_without=ClOrdID"`
	ClOrdID string `json:"clOrdID,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Validate checks that the order to cancel is identified.
func (r *CancelRequest) Validate() error {
	return validate.Struct(r)
}

// ErrorResponse is the error payload returned with non-2xx statuses.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	} `json:"error"`
}
