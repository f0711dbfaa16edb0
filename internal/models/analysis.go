package models

// AIAnalysis AI 协作方返回的分析结果
// 协作方不可用时为 nil；响应不可解析时退化为 AnomalyDetected=false
// 且 Recommendation 携带原始文本。
type AIAnalysis struct {
	AnomalyDetected bool   `json:"anomaly_detected"`
	Severity        string `json:"severity"`
	Issue           string `json:"issue"`
	Recommendation  string `json:"recommendation"`
}
