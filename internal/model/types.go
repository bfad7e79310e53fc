package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
}

type AmountInfo struct {
	AmountBaseUnits string `json:"amount_base_units"`
	AmountDecimal   string `json:"amount_decimal"`
	Decimals        int    `json:"decimals"`
}

// ReviewStatus is the serialized view of the review control at one recompute.
type ReviewStatus struct {
	State         string     `json:"state"`
	ButtonKind    string     `json:"button_kind"`
	ButtonLabel   string     `json:"button_label,omitempty"`
	Disabled      bool       `json:"disabled"`
	Message       string     `json:"message,omitempty"`
	ShowLoading   bool       `json:"show_loading,omitempty"`
	PendingHash   string     `json:"pending_hash,omitempty"`
	ExplorerURL   string     `json:"explorer_url,omitempty"`
	SupportsPermit bool      `json:"supports_permit"`
	TradeType     string     `json:"trade_type,omitempty"`
	InputAmount   AmountInfo `json:"input_amount,omitempty"`
	OutputAmount  AmountInfo `json:"output_amount,omitempty"`
	InputSymbol   string     `json:"input_symbol,omitempty"`
	OutputSymbol  string     `json:"output_symbol,omitempty"`
}

// SwapResult is emitted after a confirmed submission.
type SwapResult struct {
	TxHash       string     `json:"tx_hash"`
	TradeType    string     `json:"trade_type"`
	InputAmount  AmountInfo `json:"input_amount"`
	OutputAmount AmountInfo `json:"output_amount"`
	ExplorerURL  string     `json:"explorer_url,omitempty"`
	SubmittedAt  string     `json:"submitted_at"`
}
