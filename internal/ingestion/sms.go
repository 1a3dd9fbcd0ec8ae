package ingestion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

var ErrMalformedSMS = errors.New("malformed sms report")

var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

const smsHealthPrefix = "HEALTH"

// ParseSMS parses "HEALTH|symptom1,symptom2|severity|village,district,state"
// into a health submission. Anything else yields ErrMalformedSMS.
func ParseSMS(text string) (*models.HealthInput, error) {
	parts := strings.Split(strings.TrimSpace(text), "|")
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedSMS, len(parts))
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), smsHealthPrefix) {
		return nil, fmt.Errorf("%w: unknown prefix %q", ErrMalformedSMS, parts[0])
	}

	var symptoms []string
	for _, s := range strings.Split(parts[1], ",") {
		if s = strings.TrimSpace(s); s != "" {
			symptoms = append(symptoms, s)
		}
	}
	if len(symptoms) == 0 {
		return nil, fmt.Errorf("%w: no symptoms", ErrMalformedSMS)
	}

	severity, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, fmt.Errorf("%w: severity %q is not a number", ErrMalformedSMS, parts[2])
	}

	place := strings.Split(parts[3], ",")
	if len(place) < 3 {
		return nil, fmt.Errorf("%w: location needs village,district,state", ErrMalformedSMS)
	}

	return &models.HealthInput{
		Location: models.Location{
			Village:   strings.TrimSpace(place[0]),
			District:  strings.TrimSpace(place[1]),
			State:     strings.TrimSpace(place[2]),
			Geotagged: false,
		},
		Reporter: models.Reporter{Type: models.ReporterCitizen},
		HealthDetails: models.HealthDetails{
			Symptoms: symptoms,
			Severity: severity,
			AgeGroup: models.AgeAdult,
		},
	}, nil
}

type SMSMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

type smsJob struct {
	from   string
	report *models.Report
}

// SMSOutcome is the per-line result of SMS intake. Result is nil when the
// line was handed to the async workers.
type SMSOutcome struct {
	From       string               `json:"from"`
	ParseError string               `json:"parseError,omitempty"`
	Queued     bool                 `json:"queued,omitempty"`
	Result     *models.SubmitResult `json:"result,omitempty"`
}

// SubmitSMS parses msg and submits it synchronously.
func (m *Manager) SubmitSMS(ctx context.Context, msg SMSMessage) SMSOutcome {
	r, err := m.smsReport(msg)
	if err != nil {
		return SMSOutcome{From: msg.From, ParseError: err.Error()}
	}
	res := m.Submit(ctx, r)
	return SMSOutcome{From: msg.From, Result: &res}
}

// QueueSMS parses every message and hands the well-formed ones to the intake
// workers. Parse failures are reported per message.
func (m *Manager) QueueSMS(ctx context.Context, msgs []SMSMessage) []SMSOutcome {
	outcomes := make([]SMSOutcome, 0, len(msgs))
	for _, msg := range msgs {
		r, err := m.smsReport(msg)
		if err != nil {
			outcomes = append(outcomes, SMSOutcome{From: msg.From, ParseError: err.Error()})
			continue
		}
		if m.pool == nil {
			res := m.Submit(ctx, r)
			outcomes = append(outcomes, SMSOutcome{From: msg.From, Result: &res})
			continue
		}
		if err := m.pool.Submit(ctx, smsJob{from: msg.From, report: r}); err != nil {
			res := m.Submit(ctx, r)
			outcomes = append(outcomes, SMSOutcome{From: msg.From, Result: &res})
			continue
		}
		outcomes = append(outcomes, SMSOutcome{From: msg.From, Queued: true})
	}
	return outcomes
}

func (m *Manager) smsReport(msg SMSMessage) (*models.Report, error) {
	in, err := ParseSMS(msg.Text)
	if err != nil {
		m.metrics.RecordSMSParseError()
		return nil, err
	}

	now := m.now()
	in.DateOfSymptoms = now.Format("2006-01-02")
	in.TimeOfSymptoms = now.Format("15:04")
	if msg.From != "" {
		in.Reporter.ID = "sms:" + strings.TrimSpace(msg.From)
	}
	if phone := normalizeSender(msg.From); mobilePattern.MatchString(phone) {
		in.Reporter.Phone = phone
	}

	details := in.HealthDetails
	return &models.Report{
		Kind:     models.KindHealth,
		Location: in.Location,
		Reporter: in.Reporter,
		Health:   &details,
	}, nil
}

// normalizeSender strips an Indian country code so gateway numbers validate
// as 10-digit mobiles.
func normalizeSender(from string) string {
	from = strings.TrimSpace(from)
	from = strings.TrimPrefix(from, "+91")
	if len(from) == 12 && strings.HasPrefix(from, "91") {
		from = from[2:]
	}
	return from
}
