package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-health-surveillance/internal/broadcast"
	"github.com/mr1hm/go-health-surveillance/internal/config"
	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/repository"
	"github.com/mr1hm/go-health-surveillance/internal/transport"
	"github.com/mr1hm/go-health-surveillance/internal/validator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingTransport struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (c *countingTransport) Deliver(ctx context.Context, r *models.Report) error {
	c.calls.Add(1)
	if c.fail.Load() {
		return transport.ErrOffline
	}
	return nil
}

type staticOnline bool

func (s staticOnline) Online() bool { return bool(s) }

func testConfig() *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{Count: 2, BufferSize: 10},
		Sync:   config.SyncConfig{DeliveryTimeout: time.Second, MaxAttempts: 5},
	}
}

func newTestManager(tr transport.Transport) (*Manager, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	return NewManager(testConfig(), store, tr, validator.New(nil)), store
}

func healthInput(village string) models.HealthInput {
	return models.HealthInput{
		Location: models.Location{Village: village, Ward: "2", District: "Majuli", State: "Assam"},
		Reporter: models.Reporter{Type: models.ReporterASHA, Name: "Rina"},
		HealthDetails: models.HealthDetails{
			Symptoms:       []string{" Diarrhea", "VOMITING "},
			Severity:       3,
			AgeGroup:       models.AgeChild,
			DateOfSymptoms: "2026-03-09",
		},
	}
}

func TestManager_SubmitDeliveredImmediately(t *testing.T) {
	tr := &countingTransport{}
	mgr, store := newTestManager(tr)
	b := broadcast.NewBroadcaster()
	mgr.WithBroadcaster(b)
	id, events := b.Subscribe()
	defer b.Unsubscribe(id)

	res := mgr.SubmitHealthReport(context.Background(), healthInput("Kamalabari"))
	if !res.Accepted {
		t.Fatalf("expected accepted, got %+v", res)
	}
	if res.Message != msgSubmitted {
		t.Errorf("expected submitted message, got %q", res.Message)
	}

	got, _ := store.GetRecord(context.Background(), res.RecordID)
	if got == nil {
		t.Fatal("expected record to be stored")
	}
	if got.SyncStatus != models.SyncSynced || got.LifecycleStatus != models.LifecycleSynced {
		t.Errorf("expected synced record, got %s/%s", got.SyncStatus, got.LifecycleStatus)
	}
	if got.Health.Symptoms[0] != "diarrhea" {
		t.Errorf("expected standardized symptoms, got %v", got.Health.Symptoms)
	}
	if len(got.Warnings) == 0 {
		t.Error("expected validation warnings to be kept with the record")
	}
	if n, _ := store.CountQueue(context.Background(), 5); n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}

	var types []models.EventType
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	if len(types) != 2 || types[0] != models.EventRecordAccepted || types[1] != models.EventRecordSynced {
		t.Errorf("unexpected events: %v", types)
	}
}

func TestManager_SubmitQueuesOnDeliveryFailure(t *testing.T) {
	tr := &countingTransport{}
	tr.fail.Store(true)
	mgr, store := newTestManager(tr)

	res := mgr.SubmitHealthReport(context.Background(), healthInput("Kamalabari"))
	if !res.Accepted {
		t.Fatalf("expected accepted despite delivery failure, got %+v", res)
	}
	if res.Message != msgSavedLocal {
		t.Errorf("expected saved-locally message, got %q", res.Message)
	}

	got, _ := store.GetRecord(context.Background(), res.RecordID)
	if got == nil || got.SyncStatus != models.SyncOffline {
		t.Fatalf("expected offline record to be stored, got %+v", got)
	}

	item, _ := store.GetQueueItem(context.Background(), res.RecordID)
	if item == nil {
		t.Fatal("expected queue item")
	}
	if item.Attempts != 0 {
		t.Errorf("expected 0 attempts on a fresh queue item, got %d", item.Attempts)
	}
}

func TestManager_SubmitSkipsDeliveryWhenOffline(t *testing.T) {
	tr := &countingTransport{}
	mgr, store := newTestManager(tr)
	mgr.WithConnectivity(staticOnline(false))

	res := mgr.SubmitHealthReport(context.Background(), healthInput("Kamalabari"))
	if !res.Accepted || res.Message != msgSavedLocal {
		t.Fatalf("unexpected result: %+v", res)
	}
	if tr.calls.Load() != 0 {
		t.Errorf("expected no delivery attempt while offline, got %d", tr.calls.Load())
	}
	if n, _ := store.CountQueue(context.Background(), 5); n != 1 {
		t.Errorf("expected 1 queued record, got %d", n)
	}
}

func TestManager_SubmitRejectsInvalid(t *testing.T) {
	tr := &countingTransport{}
	mgr, store := newTestManager(tr)

	in := healthInput("Kamalabari")
	in.Severity = 9
	res := mgr.SubmitHealthReport(context.Background(), in)
	if res.Accepted {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(res.Message, "severity") || len(res.Errors) == 0 {
		t.Errorf("expected severity error in result, got %+v", res)
	}

	records, _ := store.ListRecords(context.Background(), repository.Filter{})
	if len(records) != 0 {
		t.Errorf("invalid reports must not be stored, found %d", len(records))
	}
	if tr.calls.Load() != 0 {
		t.Error("invalid reports must not be delivered")
	}
}

func TestManager_Deduplication(t *testing.T) {
	base := time.Now().Add(-3 * time.Hour)

	tests := []struct {
		name       string
		gap        time.Duration
		secondKind models.ReportKind
		want       bool
	}{
		{"within the hour", 30 * time.Minute, models.KindHealth, false},
		{"61 minutes apart", 61 * time.Minute, models.KindHealth, true},
		{"different kind", 5 * time.Minute, models.KindWater, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, _ := newTestManager(&countingTransport{})

			mgr.WithClock(func() time.Time { return base })
			first := mgr.SubmitHealthReport(context.Background(), healthInput("Kamalabari"))
			if !first.Accepted {
				t.Fatalf("first submission rejected: %+v", first)
			}

			mgr.WithClock(func() time.Time { return base.Add(tt.gap) })
			var second models.SubmitResult
			if tt.secondKind == models.KindWater {
				second = mgr.SubmitWaterReport(context.Background(), models.WaterInput{
					Location:     models.Location{Village: "Kamalabari", District: "Majuli", State: "Assam"},
					Reporter:     models.Reporter{Type: models.ReporterASHA},
					WaterDetails: models.WaterDetails{SourceType: models.SourceWell},
				})
			} else {
				second = mgr.SubmitHealthReport(context.Background(), healthInput("Kamalabari"))
			}

			if second.Accepted != tt.want {
				t.Errorf("expected accepted=%v, got %+v", tt.want, second)
			}
			if !tt.want {
				if !strings.HasPrefix(second.Message, "Duplicate report") {
					t.Errorf("expected explicit duplicate message, got %q", second.Message)
				}
				if second.DuplicateOf != first.RecordID {
					t.Errorf("expected duplicate of %s, got %q", first.RecordID, second.DuplicateOf)
				}
			}
		})
	}
}

func TestManager_ConcurrentDuplicatesAcceptOnlyOne(t *testing.T) {
	mgr, store := newTestManager(&countingTransport{})

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if mgr.SubmitHealthReport(context.Background(), healthInput("Garamur")).Accepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Errorf("expected exactly 1 accepted submission, got %d", accepted.Load())
	}
	records, _ := store.ListRecords(context.Background(), repository.Filter{})
	if len(records) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(records))
	}
}

type failingStore struct {
	*repository.MemoryStore
}

func (f failingStore) PutRecord(ctx context.Context, r *models.Report) error {
	return errors.New("disk full")
}

func TestManager_StoreFailureRejects(t *testing.T) {
	tr := &countingTransport{}
	mgr := NewManager(testConfig(), failingStore{repository.NewMemoryStore()}, tr, validator.New(nil))

	res := mgr.SubmitHealthReport(context.Background(), healthInput("Kamalabari"))
	if res.Accepted {
		t.Fatal("expected rejection when the local write fails")
	}
	if tr.calls.Load() != 0 {
		t.Error("must not deliver a record that was not persisted")
	}
}

func TestManager_SubmitEnvironmental(t *testing.T) {
	mgr, store := newTestManager(&countingTransport{})
	humidity := 85.0

	res := mgr.SubmitEnvironmentalReport(context.Background(), models.EnvironmentalInput{
		Location: models.Location{District: "Majuli", State: "Assam"},
		Reporter: models.Reporter{Type: models.ReporterDistrict},
		EnvironmentalDetails: models.EnvironmentalDetails{
			Humidity:         &humidity,
			SanitationIssues: []string{" open defecation ", "blocked drains"},
		},
	})
	if !res.Accepted {
		t.Fatalf("expected accepted, got %+v", res)
	}

	got, _ := store.GetRecord(context.Background(), res.RecordID)
	if got.Environmental.SanitationIssues[0] != "open defecation" {
		t.Errorf("expected trimmed sanitation issue, got %q", got.Environmental.SanitationIssues[0])
	}
}

func TestManager_QueueSMS(t *testing.T) {
	tr := &countingTransport{}
	mgr, store := newTestManager(tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	msgs := []SMSMessage{
		{From: "+919876543210", Text: "HEALTH|fever,fatigue|3|Majuli,Majuli,Assam"},
		{From: "9876543211", Text: "HEALTH|cough|2|Garamur,Majuli,Assam"},
		{From: "9876543212", Text: "WATER|turbid|2|Garamur,Majuli,Assam"},
		{From: "9876543213", Text: "HEALTH|fever|2"},
	}
	outcomes := mgr.QueueSMS(ctx, msgs)

	mgr.Stop()

	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes[:2] {
		if !o.Queued {
			t.Errorf("outcome %d: expected queued, got %+v", i, o)
		}
	}
	for i, o := range outcomes[2:] {
		if o.ParseError == "" {
			t.Errorf("outcome %d: expected parse error, got %+v", i+2, o)
		}
	}

	records, _ := store.ListRecords(context.Background(), repository.Filter{})
	if len(records) != 2 {
		t.Fatalf("expected 2 stored sms reports, got %d", len(records))
	}
	for _, r := range records {
		if r.Reporter.Phone == "" || !strings.HasPrefix(r.Reporter.ID, "sms:") {
			t.Errorf("expected sender to be recorded, got %+v", r.Reporter)
		}
		if r.Location.Geotagged {
			t.Error("sms reports are never geotagged")
		}
	}
}

func TestManager_SubmitSMSSync(t *testing.T) {
	mgr, _ := newTestManager(&countingTransport{})

	out := mgr.SubmitSMS(context.Background(), SMSMessage{From: "gateway-7", Text: "HEALTH|fever|4|Kamalabari,Majuli,Assam"})
	if out.Result == nil || !out.Result.Accepted {
		t.Fatalf("expected accepted sms, got %+v", out)
	}

	out = mgr.SubmitSMS(context.Background(), SMSMessage{Text: "garbage"})
	if out.ParseError == "" || out.Result != nil {
		t.Errorf("expected parse failure only, got %+v", out)
	}
}

func TestParseSMS(t *testing.T) {
	in, err := ParseSMS("HEALTH|fever,fatigue|3|Majuli,Majuli,Assam")
	if err != nil {
		t.Fatalf("ParseSMS failed: %v", err)
	}
	if fmt.Sprint(in.Symptoms) != "[fever fatigue]" {
		t.Errorf("unexpected symptoms: %v", in.Symptoms)
	}
	if in.Severity != 3 {
		t.Errorf("expected severity 3, got %d", in.Severity)
	}
	if in.Location.Village != "Majuli" || in.Location.District != "Majuli" || in.Location.State != "Assam" {
		t.Errorf("unexpected location: %+v", in.Location)
	}
	if in.AgeGroup != models.AgeAdult || in.Location.Geotagged {
		t.Errorf("expected adult, not geotagged; got %s, %v", in.AgeGroup, in.Location.Geotagged)
	}
}

func TestParseSMS_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"HEALTH|fever|3",
		"WATER|fever|3|Majuli,Majuli,Assam",
		"HEALTH|fever|high|Majuli,Majuli,Assam",
		"HEALTH| , |3|Majuli,Majuli,Assam",
		"HEALTH|fever|3|Majuli",
	}
	for _, text := range inputs {
		in, err := ParseSMS(text)
		if !errors.Is(err, ErrMalformedSMS) {
			t.Errorf("%q: expected ErrMalformedSMS, got %v", text, err)
		}
		if in != nil {
			t.Errorf("%q: expected no record", text)
		}
	}
}

func TestNormalizeSender(t *testing.T) {
	tests := map[string]string{
		"+919876543210": "9876543210",
		"919876543210":  "9876543210",
		"9876543210":    "9876543210",
		" 9876543210 ":  "9876543210",
	}
	for in, want := range tests {
		if got := normalizeSender(in); got != want {
			t.Errorf("normalizeSender(%q) = %q, want %q", in, got, want)
		}
	}
}
