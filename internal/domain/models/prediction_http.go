package models

// Requests for the prediction HTTP endpoints. Defined in domain for
// consistency and reuse.

type PredictRequest struct {
	Ticker  string `query:"ticker" json:"ticker" validate:"required"`
	Horizon int    `query:"horizon" json:"horizon" default:"5" validate:"gte=1,lte=30"`
}

type BatchRequest struct {
	Tickers []string `query:"tickers" json:"tickers" validate:"required,min=1,max=50,dive,required"`
	Horizon int      `query:"horizon" json:"horizon" default:"5" validate:"gte=1,lte=30"`
}

type MarketRequest struct {
	Horizon int `query:"horizon" json:"horizon" default:"5" validate:"gte=1,lte=30"`
}

type ImportanceRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required"`
}

type TrainRequest struct {
	Ticker string `json:"ticker" validate:"required"`
}
