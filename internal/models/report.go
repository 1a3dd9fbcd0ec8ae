package models

import (
	"fmt"
	"time"
)

type ReportKind string

const (
	KindHealth        ReportKind = "health"
	KindWater         ReportKind = "water"
	KindEnvironmental ReportKind = "environmental"
)

func (k ReportKind) Valid() bool {
	switch k {
	case KindHealth, KindWater, KindEnvironmental:
		return true
	}
	return false
}

type LifecycleStatus string

const (
	LifecyclePending   LifecycleStatus = "pending"
	LifecycleValidated LifecycleStatus = "validated"
	LifecycleProcessed LifecycleStatus = "processed"
	LifecycleSynced    LifecycleStatus = "synced"
)

var lifecycleOrder = map[LifecycleStatus]int{
	LifecyclePending:   0,
	LifecycleValidated: 1,
	LifecycleProcessed: 2,
	LifecycleSynced:    3,
}

type SyncStatus string

const (
	SyncOffline SyncStatus = "offline"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Report is the shared envelope for every observation kind. Exactly one of
// Health, Water or Environmental is set, matching Kind.
type Report struct {
	ID              string          `json:"id"`
	Kind            ReportKind      `json:"kind"`
	CreatedAt       time.Time       `json:"createdAt"`
	Location        Location        `json:"location"`
	Reporter        Reporter        `json:"reporter"`
	LifecycleStatus LifecycleStatus `json:"lifecycleStatus"`
	SyncStatus      SyncStatus      `json:"syncStatus"`
	Warnings        []string        `json:"warnings,omitempty"` // validation advisories carried as provenance

	Health        *HealthDetails        `json:"health,omitempty"`
	Water         *WaterDetails         `json:"water,omitempty"`
	Environmental *EnvironmentalDetails `json:"environmental,omitempty"`
}

// Advance moves the lifecycle forward. Moving backwards or sideways is an error.
func (r *Report) Advance(to LifecycleStatus) error {
	next, ok := lifecycleOrder[to]
	if !ok {
		return fmt.Errorf("unknown lifecycle status: %s", to)
	}
	cur := lifecycleOrder[r.LifecycleStatus]
	if r.LifecycleStatus == "" {
		cur = -1
	}
	if next < cur {
		return fmt.Errorf("lifecycle cannot move from %s to %s", r.LifecycleStatus, to)
	}
	r.LifecycleStatus = to
	return nil
}

func (r *Report) Clone() *Report {
	c := *r
	c.Warnings = append([]string(nil), r.Warnings...)
	if r.Location.GPS != nil {
		gps := *r.Location.GPS
		c.Location.GPS = &gps
	}
	if r.Health != nil {
		h := *r.Health
		h.Symptoms = append([]string(nil), r.Health.Symptoms...)
		c.Health = &h
	}
	if r.Water != nil {
		w := *r.Water
		w.Turbidity = cloneFloat(w.Turbidity)
		w.PH = cloneFloat(w.PH)
		c.Water = &w
	}
	if r.Environmental != nil {
		e := *r.Environmental
		e.Rainfall = cloneFloat(e.Rainfall)
		e.Temperature = cloneFloat(e.Temperature)
		e.Humidity = cloneFloat(e.Humidity)
		e.SanitationIssues = append([]string(nil), r.Environmental.SanitationIssues...)
		c.Environmental = &e
	}
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

type GPS struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracyMeters"`
}

type Location struct {
	Village   string `json:"village,omitempty"`
	Ward      string `json:"ward,omitempty"`
	District  string `json:"district"`
	State     string `json:"state"`
	GPS       *GPS   `json:"gps,omitempty"`
	Geotagged bool   `json:"geotagged"`
}

// VillageOrUnknown is the grouping key used by cluster detection.
func (l Location) VillageOrUnknown() string {
	if l.Village == "" {
		return "Unknown"
	}
	return l.Village
}

type ReporterType string

const (
	ReporterCitizen  ReporterType = "citizen"
	ReporterASHA     ReporterType = "asha"
	ReporterClinic   ReporterType = "clinic"
	ReporterPHC      ReporterType = "phc"
	ReporterDistrict ReporterType = "district"
	ReporterState    ReporterType = "state"
)

func (t ReporterType) Valid() bool {
	switch t {
	case ReporterCitizen, ReporterASHA, ReporterClinic, ReporterPHC, ReporterDistrict, ReporterState:
		return true
	}
	return false
}

type Reporter struct {
	Type  ReporterType `json:"type"`
	ID    string       `json:"id,omitempty"`
	Name  string       `json:"name,omitempty"`
	Phone string       `json:"phone,omitempty"`
	Email string       `json:"email,omitempty"`
}
