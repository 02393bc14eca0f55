package referral

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flox/server/internal/shared/database/dbtest"
	"github.com/flox/server/internal/utils/metrics"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func newTestDB(t *testing.T) *gorm.DB {
	return dbtest.New(t, Models()...)
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New("test", prometheus.NewRegistry())
}

// insertCode stores rc as-is, bypassing spec validation.
func insertCode(t *testing.T, db *gorm.DB, rc ReferralCode) *ReferralCode {
	t.Helper()
	if rc.ID == uuid.Nil {
		rc.ID = uuid.New()
	}
	require.NoError(t, db.Create(&rc).Error)
	return &rc
}

func reloadCode(t *testing.T, db *gorm.DB, id uuid.UUID) *ReferralCode {
	t.Helper()
	var rc ReferralCode
	require.NoError(t, db.First(&rc, "id = ?", id).Error)
	return &rc
}

func countUsages(t *testing.T, db *gorm.DB, codeID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&ReferralCodeUsage{}).Where("referral_code_id = ?", codeID).Count(&n).Error)
	return n
}

func newTestRecorder(db *gorm.DB, m *metrics.Metrics) *Recorder {
	r := NewRecorder(db, nil, m)
	r.now = func() time.Time { return fixedNow }
	return r
}
