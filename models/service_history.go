package models

// HistoryParams 描述查询历史列表的参数
type HistoryParams struct {
	Ticker string `json:"ticker"`
	Limit  int    `json:"limit"` // 每页数量，默认 50，最大 200
}

// HistoryListItem is one row of the run history listing, without report content.
type HistoryListItem struct {
	Id           string `json:"id"`
	Ticker       string `json:"ticker"`
	AnalysisDate string `json:"analysis_date"`
	Status       string `json:"status"`
	Decision     string `json:"decision"`
	CreatedAt    string `json:"created_at"`
}
