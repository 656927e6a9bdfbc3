package router

import (
	"time"

	"github.com/rickgao/thetafeed/internal/model"
)

// Kind is the header type of an inbound stream message.
type Kind string

const (
	KindQuote  Kind = "QUOTE"
	KindTrade  Kind = "TRADE"
	KindStatus Kind = "STATUS"
)

// Status values carried by STATUS messages.
const (
	StatusConnected    = "CONNECTED"
	StatusDisconnected = "DISCONNECTED"
)

// Contract identifies the instrument of a QUOTE or TRADE message.
type Contract struct {
	SecurityType string
	Root         string
	Expiration   int // YYYYMMDD, options only
	StrikeMilli  int64
	Right        string
}

// Message is a decoded inbound stream message. Quote and Trade are set
// according to Kind.
type Message struct {
	Kind       Kind
	Status     string
	Contract   *Contract
	Quote      *model.QuoteSnapshot
	Trade      *model.TradeSnapshot
	ReceivedAt time.Time
}

// Wire types

type envelopeWire struct {
	Header   headerWire    `json:"header"`
	Contract *contractWire `json:"contract"`
	Quote    *quoteWire    `json:"quote"`
	Trade    *tradeWire    `json:"trade"`
}

type headerWire struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type contractWire struct {
	SecurityType string `json:"security_type"`
	Root         string `json:"root"`
	Expiration   int    `json:"expiration"`
	Strike       int64  `json:"strike"`
	Right        string `json:"right"`
}

type quoteWire struct {
	MsOfDay      int64   `json:"ms_of_day"`
	BidSize      int64   `json:"bid_size"`
	BidExchange  int     `json:"bid_exchange"`
	Bid          float64 `json:"bid"`
	BidCondition int     `json:"bid_condition"`
	AskSize      int64   `json:"ask_size"`
	AskExchange  int     `json:"ask_exchange"`
	Ask          float64 `json:"ask"`
	AskCondition int     `json:"ask_condition"`
	Date         int     `json:"date"`
}

type tradeWire struct {
	MsOfDay   int64   `json:"ms_of_day"`
	Sequence  int64   `json:"sequence"`
	Size      int64   `json:"size"`
	Condition int     `json:"condition"`
	Price     float64 `json:"price"`
	Exchange  int     `json:"exchange"`
	Date      int     `json:"date"`
}
