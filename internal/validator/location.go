package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

var (
	mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const maxGPSAccuracyMeters = 100

func validateLocation(loc models.Location, res *models.ValidationResult) {
	if strings.TrimSpace(loc.District) == "" {
		res.AddError("district is required")
	}
	if strings.TrimSpace(loc.State) == "" {
		res.AddError("state is required")
	}
	if strings.TrimSpace(loc.Village) == "" {
		res.AddWarning("village not specified")
	}
	if strings.TrimSpace(loc.Ward) == "" {
		res.AddWarning("ward not specified")
	}

	if loc.GPS == nil {
		res.AddWarning("no GPS coordinates, location was entered manually")
		return
	}
	if loc.GPS.Latitude < -90 || loc.GPS.Latitude > 90 {
		res.AddError(fmt.Sprintf("latitude %.6f out of range [-90, 90]", loc.GPS.Latitude))
	}
	if loc.GPS.Longitude < -180 || loc.GPS.Longitude > 180 {
		res.AddError(fmt.Sprintf("longitude %.6f out of range [-180, 180]", loc.GPS.Longitude))
	}
	if loc.GPS.AccuracyMeters > maxGPSAccuracyMeters {
		res.AddWarning(fmt.Sprintf("GPS accuracy is low (%.0fm)", loc.GPS.AccuracyMeters))
	}
}

func validateReporter(rep models.Reporter, res *models.ValidationResult) {
	if !rep.Type.Valid() {
		res.AddError(fmt.Sprintf("invalid reporter type: %q", rep.Type))
	}
	if phone := strings.TrimSpace(rep.Phone); phone != "" && !mobilePattern.MatchString(phone) {
		res.AddError("phone must be a 10-digit mobile number starting with 6-9")
	}
	if email := strings.TrimSpace(rep.Email); email != "" && !emailPattern.MatchString(email) {
		res.AddError("invalid email address")
	}
}
