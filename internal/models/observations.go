package models

type AgeGroup string

const (
	AgeChild   AgeGroup = "child"
	AgeAdult   AgeGroup = "adult"
	AgeElderly AgeGroup = "elderly"
)

type HealthDetails struct {
	Symptoms       []string `json:"symptoms"`
	Severity       int      `json:"severity"` // 1-5
	AgeGroup       AgeGroup `json:"ageGroup"`
	DateOfSymptoms string   `json:"dateOfSymptoms"` // YYYY-MM-DD
	TimeOfSymptoms string   `json:"timeOfSymptoms,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

type SourceType string

const (
	SourceWell     SourceType = "well"
	SourceHandpump SourceType = "handpump"
	SourceRiver    SourceType = "river"
	SourceTank     SourceType = "tank"
	SourcePiped    SourceType = "piped"
	SourceOther    SourceType = "other"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceWell, SourceHandpump, SourceRiver, SourceTank, SourcePiped, SourceOther:
		return true
	}
	return false
}

type Contamination string

const (
	ContaminationNone   Contamination = "none"
	ContaminationLow    Contamination = "low"
	ContaminationMedium Contamination = "medium"
	ContaminationHigh   Contamination = "high"
)

type WaterDetails struct {
	SourceType             SourceType    `json:"sourceType"`
	Turbidity              *float64      `json:"turbidity,omitempty"` // NTU
	PH                     *float64      `json:"ph,omitempty"`
	BacterialContamination Contamination `json:"bacterialContamination"`
	Appearance             string        `json:"appearance,omitempty"`
	Odor                   string        `json:"odor,omitempty"`
}

// Contaminated reports medium or high bacterial contamination.
func (w *WaterDetails) Contaminated() bool {
	return w.BacterialContamination == ContaminationMedium || w.BacterialContamination == ContaminationHigh
}

type EnvironmentalDetails struct {
	Rainfall         *float64 `json:"rainfall,omitempty"`    // mm
	Temperature      *float64 `json:"temperature,omitempty"` // °C
	Humidity         *float64 `json:"humidity,omitempty"`    // percent
	SanitationIssues []string `json:"sanitationIssues,omitempty"`
}

// Submission inputs carry everything except the system-assigned envelope fields.

type HealthInput struct {
	Location Location `json:"location"`
	Reporter Reporter `json:"reporter"`
	HealthDetails
}

type WaterInput struct {
	Location Location `json:"location"`
	Reporter Reporter `json:"reporter"`
	WaterDetails
}

type EnvironmentalInput struct {
	Location Location `json:"location"`
	Reporter Reporter `json:"reporter"`
	EnvironmentalDetails
}
