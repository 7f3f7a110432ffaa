package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"checkin/internal/consent/lifecycle"
	"checkin/internal/consent/models"
)

func TestPresent_EveryStatusHasAnEntry(t *testing.T) {
	seen := map[string]models.Status{}
	for s := models.Status(0); s < models.StatusCount; s++ {
		p := lifecycle.Present(s)
		assert.NotEmpty(t, p.Label, "status %s", s)
		assert.NotEmpty(t, p.ColorToken, "status %s", s)
		if prev, dup := seen[p.Label]; dup {
			t.Errorf("label %q shared by %s and %s", p.Label, prev, s)
		}
		seen[p.Label] = s
	}
}

func TestPresent_KnownLabels(t *testing.T) {
	assert.Equal(t, models.Presentation{Label: "Grace Period", ColorToken: "caution"}, lifecycle.Present(models.StatusGrace))
	assert.Equal(t, models.Presentation{Label: "Withdrawn", ColorToken: "muted"}, lifecycle.Present(models.StatusWithdrawn))
}

func TestPresent_InvalidStatus(t *testing.T) {
	assert.Equal(t, models.Presentation{}, lifecycle.Present(models.StatusCount))
}
