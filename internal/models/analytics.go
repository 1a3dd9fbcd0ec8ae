package models

import "time"

type RiskLevelName string

const (
	RiskLow      RiskLevelName = "Low"
	RiskMedium   RiskLevelName = "Medium"
	RiskHigh     RiskLevelName = "High"
	RiskCritical RiskLevelName = "Critical"
)

type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

type SyndromicCluster struct {
	District         string    `json:"district"`
	Village          string    `json:"village"`
	DominantSymptoms []string  `json:"dominantSymptoms"`
	CaseCount        int       `json:"caseCount"`
	RecentCount      int       `json:"recentCount"`
	PriorCount       int       `json:"priorCount"`
	GrowthRate       float64   `json:"growthRate"`
	Severity         float64   `json:"severity"`
	IsAnomalous      bool      `json:"isAnomalous"`
	FirstReportedAt  time.Time `json:"firstReportedAt"`
	LastReportedAt   time.Time `json:"lastReportedAt"`
}

type Baseline struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stdDev" yaml:"stdDev"`
}

type AnomalyResult struct {
	Score       float64 `json:"score"`
	ZScore      float64 `json:"zScore"`
	IsAnomaly   bool    `json:"isAnomaly"`
	Explanation string  `json:"explanation"`
}

type TimeSeriesForecast struct {
	Date           time.Time `json:"date"`
	PredictedCases int       `json:"predictedCases"`
	LowerBound     int       `json:"lowerBound"`
	UpperBound     int       `json:"upperBound"`
	Confidence     float64   `json:"confidence"`
}

type RiskLevel struct {
	Level      RiskLevelName `json:"level"`
	Score      float64       `json:"score"`
	Confidence float64       `json:"confidence"`
}

type DiseasePrediction struct {
	Disease       string    `json:"disease"`
	Probability   float64   `json:"probability"`
	CasesExpected int       `json:"casesExpected"`
	PeakDate      time.Time `json:"peakDate"`
	Confidence    float64   `json:"confidence"`
}

type RiskFactor struct {
	Factor       string  `json:"factor"`
	Impact       Impact  `json:"impact"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Explanation  string  `json:"explanation"`
}

type PredictionResult struct {
	Location          Location            `json:"location"`
	RiskLevel         RiskLevel           `json:"riskLevel"`
	PredictedDiseases []DiseasePrediction `json:"predictedDiseases"`
	EarlyWarningDays  int                 `json:"earlyWarningDays"`
	RiskFactors       []RiskFactor        `json:"riskFactors"`
	GeneratedAt       time.Time           `json:"generatedAt"`
	PipelineVersion   string              `json:"pipelineVersion"`
}

type EventType string

const (
	EventRecordAccepted EventType = "record_accepted"
	EventRecordSynced   EventType = "record_synced"
	EventSyncFailed     EventType = "sync_failed"
	EventSyncPass       EventType = "sync_pass"
	EventRiskAssessment EventType = "risk_assessment"
)

// Event is a domain notification fanned out to live subscribers.
type Event struct {
	Type      EventType `json:"type"`
	RecordID  string    `json:"recordId,omitempty"`
	District  string    `json:"district,omitempty"`
	Village   string    `json:"village,omitempty"`
	Message   string    `json:"message,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
