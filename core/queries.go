package core

// HistoryQuery selects a page of ledger history, newest first.
type HistoryQuery struct {
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
	Category string `json:"category,omitempty"`
}

// Normalize clamps page/limit to sane values.
func (q HistoryQuery) Normalize() HistoryQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return q
}

// HistoryPage is one page of ledger history plus pagination metadata.
type HistoryPage struct {
	Transactions []CoinTransaction `json:"transactions"`
	Page         int               `json:"page"`
	Limit        int               `json:"limit"`
	Total        int64             `json:"total"`
	TotalPages   int               `json:"total_pages"`
}

// CategoryEarnings is the sum of positive ledger entries for one category.
type CategoryEarnings struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
}
