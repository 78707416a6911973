package polymarket

import "encoding/json"

// Raw API DTOs. Conversion to models happens in mapping.go.

// gammaMarket is one market from Gamma GET /markets. Gamma returns
// several numeric fields as JSON strings, hence json.Number.
type gammaMarket struct {
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Description   string      `json:"description"`
	Slug          string      `json:"slug"`
	EndDateISO    string      `json:"endDateIso"`
	Liquidity     json.Number `json:"liquidity"`
	Volume        json.Number `json:"volume"`
	Outcomes      string      `json:"outcomes"`
	ClobTokenIDs  string      `json:"clobTokenIds"`
	LastradePrice json.Number `json:"lastTradePrice"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
}

// midpointRequest is one item in the POST /midpoints batch body
type midpointRequest struct {
	TokenID string `json:"token_id"`
}

// midpointResponse is the response of GET /midpoint
type midpointResponse struct {
	Mid json.Number `json:"mid"`
}

// wsSubscribeMessage subscribes to the CLOB market channel
type wsSubscribeMessage struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids"`
}

// wsMarketMessage is one event on the market channel
type wsMarketMessage struct {
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Market    string          `json:"market"`
	Price     json.Number     `json:"price"`
	Changes   json.RawMessage `json:"changes"`
	Timestamp json.Number     `json:"timestamp"`
}
