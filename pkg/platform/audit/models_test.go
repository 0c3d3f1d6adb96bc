package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditEventCategory(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventProcessCompleted.Category())
	assert.Equal(t, CategoryCompliance, EventManualReview.Category())
	assert.Equal(t, CategorySecurity, EventProviderFallback.Category())
	assert.Equal(t, CategoryOperations, EventStageCompleted.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("something_new").Category())
}
