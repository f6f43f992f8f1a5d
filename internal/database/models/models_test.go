package models_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected models.Severity
	}{
		{"Critical", models.SeverityCritical},
		{" high ", models.SeverityHigh},
		{"Moderate", models.SeverityMedium},
		{"Informational", models.SeverityInfo},
		{"9.8", models.SeverityCritical},
		{"4", models.SeverityMedium},
		{"0.1", models.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := models.ParseSeverity(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	for _, bad := range []string{"", "urgent", "10.5", "-1"} {
		_, err := models.ParseSeverity(bad)
		assert.Error(t, err, bad)
	}
}

func TestSeverity_Rank(t *testing.T) {
	ordered := []models.Severity{
		models.SeverityInfo, models.SeverityLow, models.SeverityMedium,
		models.SeverityHigh, models.SeverityCritical,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank())
	}
	assert.False(t, models.Severity("severe").Valid())
}

func TestRisk_Elements(t *testing.T) {
	r := models.Risk{AffectedElements: []string{" Port 3389 ", "", "198.51.100.24"}}
	assert.Equal(t, []string{"Port 3389", "198.51.100.24"}, r.Elements())
	assert.Equal(t, "Port 3389, 198.51.100.24", models.JoinElements(r.Elements()))

	r.AffectedElements = []string{" ", ""}
	assert.Nil(t, r.Elements())

	r.AffectedElements = nil
	assert.Nil(t, r.Elements())
}

func TestSplitElements(t *testing.T) {
	assert.Equal(t, []string{"Port 23", "198.51.100.24"}, models.SplitElements("Port 23, 198.51.100.24"))
	assert.Nil(t, models.SplitElements(" , "))
	assert.Nil(t, models.SplitElements(""))
}

func TestRisk_SeverityRankPersisted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db, org)
	report := testutil.CreateTestReport(t, db, org, user, `{"Overview": "test"}`)

	risk := models.Risk{
		ReportID:         report.ID,
		OrganizationID:   org.ID,
		Name:             "Open RDP Port",
		Severity:         models.SeverityCritical,
		AffectedElements: []string{"Ports 22, 3389 on 203.0.113.10", "rdp.example.com"},
		Recommendations:  datatypes.NewJSONType(models.Recommendation{EasyFix: "close 3389"}),
	}
	require.NoError(t, db.Create(&risk).Error)

	var stored models.Risk
	require.NoError(t, db.First(&stored, "id = ?", risk.ID).Error)
	assert.Equal(t, 4, stored.SeverityRank)
	assert.Equal(t, "close 3389", stored.Recommendations.Data().EasyFix)
	// Elements containing commas survive storage intact.
	assert.Equal(t, []string{"Ports 22, 3389 on 203.0.113.10", "rdp.example.com"}, stored.Elements())
}

func TestAutoFrequency(t *testing.T) {
	assert.Equal(t, "", models.FrequencyNone.CronExpr())
	assert.Equal(t, "0 0 1 * *", models.FrequencyMonthly.CronExpr())
	assert.Equal(t, "0 0 1 */3 *", models.FrequencyQuarterly.CronExpr())
	assert.True(t, models.FrequencyYearly.Valid())
	assert.False(t, models.AutoFrequency("weekly").Valid())
}

func TestUser_Capabilities(t *testing.T) {
	u := models.User{Capabilities: []models.Capability{models.CapViewRisk}}
	assert.True(t, u.Has(models.CapViewRisk))
	assert.False(t, u.Has(models.CapResolveRisk))
	assert.Equal(t, uuid.Nil, u.OrgID())

	orgID := uuid.New()
	u.OrganizationID = &orgID
	assert.Equal(t, orgID, u.OrgID())
}

func TestNewID_TimeOrdered(t *testing.T) {
	a := models.NewID()
	b := models.NewID()
	assert.Equal(t, uuid.Version(7), a.Version())
	assert.Less(t, a.String(), b.String())
}
