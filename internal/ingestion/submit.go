package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mr1hm/go-health-surveillance/internal/dedup"
	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
)

const (
	msgSubmitted   = "Report submitted successfully"
	msgSavedLocal  = "Report saved locally, will sync when online"
	msgStoreFailed = "Report could not be saved on this device, please try again"
)

func (m *Manager) SubmitHealthReport(ctx context.Context, in models.HealthInput) models.SubmitResult {
	details := in.HealthDetails
	details.Symptoms = append([]string(nil), in.Symptoms...)
	return m.Submit(ctx, &models.Report{
		Kind:     models.KindHealth,
		Location: in.Location,
		Reporter: in.Reporter,
		Health:   &details,
	})
}

func (m *Manager) SubmitWaterReport(ctx context.Context, in models.WaterInput) models.SubmitResult {
	details := in.WaterDetails
	return m.Submit(ctx, &models.Report{
		Kind:     models.KindWater,
		Location: in.Location,
		Reporter: in.Reporter,
		Water:    &details,
	})
}

func (m *Manager) SubmitEnvironmentalReport(ctx context.Context, in models.EnvironmentalInput) models.SubmitResult {
	details := in.EnvironmentalDetails
	details.SanitationIssues = append([]string(nil), in.SanitationIssues...)
	return m.Submit(ctx, &models.Report{
		Kind:          models.KindEnvironmental,
		Location:      in.Location,
		Reporter:      in.Reporter,
		Environmental: &details,
	})
}

// Submit runs a report through the ingestion pipeline. The record is durable
// before any network attempt; delivery failure only changes the message.
func (m *Manager) Submit(ctx context.Context, r *models.Report) models.SubmitResult {
	r = r.Clone()
	if r.ID == "" {
		r.ID = m.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	r.LifecycleStatus = models.LifecyclePending
	r.SyncStatus = models.SyncOffline

	res := m.validator.Validate(r)
	if !res.IsValid {
		m.metrics.RecordSubmission(string(r.Kind), "invalid")
		return models.SubmitResult{
			Message:  "Validation failed: " + strings.Join(res.Errors, "; "),
			Errors:   res.Errors,
			Warnings: res.Warnings,
		}
	}

	record := res.StandardizedRecord
	if dup, err := m.persist(ctx, record); err != nil {
		slog.Error("error saving record locally", "id", record.ID, "kind", record.Kind, "error", err)
		m.metrics.RecordSubmission(string(record.Kind), "store_error")
		return models.SubmitResult{Message: msgStoreFailed, Warnings: res.Warnings}
	} else if dup != nil {
		m.metrics.RecordSubmission(string(record.Kind), "duplicate")
		return models.SubmitResult{
			Message:     duplicateMessage(record, dup),
			DuplicateOf: dup.ID,
			Warnings:    res.Warnings,
		}
	}

	m.metrics.RecordSubmission(string(record.Kind), "accepted")
	m.publish(models.Event{
		Type:     models.EventRecordAccepted,
		RecordID: record.ID,
		District: record.Location.District,
		Village:  record.Location.Village,
	})

	result := models.SubmitResult{
		Accepted: true,
		RecordID: record.ID,
		Warnings: res.Warnings,
	}
	if m.deliver(ctx, record) {
		result.Message = msgSubmitted
	} else {
		result.Message = msgSavedLocal
	}
	return result
}

// persist stores record unless it duplicates a stored one, which it returns.
func (m *Manager) persist(ctx context.Context, record *models.Report) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kind := record.Kind
	village := record.Location.Village
	since := record.CreatedAt.Add(-dedup.Window)
	existing, err := m.store.ListRecords(ctx, repository.Filter{
		Kind:     &kind,
		District: record.Location.District,
		Village:  &village,
		Since:    &since,
	})
	if err != nil {
		return nil, fmt.Errorf("error loading records for duplicate check: %w", err)
	}
	if dup := dedup.FindDuplicate(record, existing); dup != nil {
		return dup, nil
	}

	if err := record.Advance(models.LifecycleProcessed); err != nil {
		return nil, err
	}
	if err := m.store.PutRecord(ctx, record); err != nil {
		return nil, err
	}
	return nil, nil
}

// deliver makes the one immediate delivery attempt and queues the record on
// failure. It reports whether the record reached the remote endpoint.
func (m *Manager) deliver(ctx context.Context, record *models.Report) bool {
	var err error
	if m.online != nil && !m.online.Online() {
		err = fmt.Errorf("skipped immediate delivery: device offline")
	} else {
		attemptCtx, cancel := context.WithTimeout(ctx, m.deliveryTimeout())
		err = m.transport.Deliver(attemptCtx, record)
		cancel()
		m.metrics.RecordDelivery(err == nil)
	}

	if err == nil {
		if err := m.store.UpdateSyncStatus(ctx, record.ID, models.SyncSynced); err != nil {
			slog.Error("error marking record synced", "id", record.ID, "error", err)
		}
		m.publish(models.Event{Type: models.EventRecordSynced, RecordID: record.ID})
		return true
	}

	slog.Info("immediate delivery failed, queueing record", "id", record.ID, "error", err)
	item := &models.SyncQueueItem{
		Report:     record,
		Attempts:   0,
		EnqueuedAt: m.now(),
	}
	// The record is already stored; a queue failure leaves it unsynced but
	// visible, it is never dropped.
	if err := m.store.Enqueue(context.WithoutCancel(ctx), item); err != nil {
		slog.Error("error queueing record for sync", "id", record.ID, "error", err)
	}
	return false
}

func duplicateMessage(record, dup *models.Report) string {
	place := record.Location.District
	if record.Location.Village != "" {
		place = record.Location.Village + ", " + place
	}
	return fmt.Sprintf("Duplicate report: a %s report from %s was already submitted within the last hour (id %s)",
		record.Kind, place, dup.ID)
}
