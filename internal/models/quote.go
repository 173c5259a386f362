package models

import "github.com/shopspring/decimal"

// Quote is the normalized reading a single source returns for a symbol
type Quote struct {
	Price         decimal.NullDecimal `json:"price"`
	PreviousClose decimal.NullDecimal `json:"previous_close"`
	CompanyName   string              `json:"company_name"`
}

// Reading pairs a quote with the name of the source that produced it
type Reading struct {
	Source string
	Quote  *Quote
}
