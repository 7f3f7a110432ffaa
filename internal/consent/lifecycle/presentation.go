package lifecycle

import "checkin/internal/consent/models"

var presentations = [...]models.Presentation{
	models.StatusNeverGiven: {Label: "Not Given", ColorToken: "neutral"},
	models.StatusActive:     {Label: "Active", ColorToken: "success"},
	models.StatusExpiring:   {Label: "Expiring Soon", ColorToken: "warning"},
	models.StatusGrace:      {Label: "Grace Period", ColorToken: "caution"},
	models.StatusExpired:    {Label: "Expired", ColorToken: "danger"},
	models.StatusWithdrawn:  {Label: "Withdrawn", ColorToken: "muted"},
}

// The table must have exactly one entry per status. Either array length below
// goes negative, and the build fails, when a status is added without a row.
var (
	_ [len(presentations) - int(models.StatusCount)]struct{}
	_ [int(models.StatusCount) - len(presentations)]struct{}
)

// Present returns the display label and color token for s. Statuses produced
// by Compute always have an entry; an out-of-range value yields the zero value.
func Present(s models.Status) models.Presentation {
	if !s.IsValid() {
		return models.Presentation{}
	}
	return presentations[s]
}
