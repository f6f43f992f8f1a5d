package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/auth"
	"github.com/hugh/go-assess/internal/database"
	"github.com/hugh/go-assess/internal/database/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing. The pool is
// pinned to one connection so every query sees the same in-memory schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// CreateTestOrg creates a test organization
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:          "Test Organization",
		Slug:          "test-org-" + uuid.New().String()[:8],
		EmailDomain:   "example.com",
		WebsiteDomain: "example.com",
		ExternalIP:    "203.0.113.10",
	}

	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateTestUser creates an owner of the given organization holding every
// capability. A nil org yields an unaffiliated member.
func CreateTestUser(t *testing.T, db *gorm.DB, org *models.Organization) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		Role:         "member",
		IsActive:     true,
		Capabilities: []models.Capability{},
	}
	if org != nil {
		user.OrganizationID = &org.ID
		user.Role = "owner"
		user.Capabilities = append([]models.Capability(nil), models.AllCapabilities...)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Organization = org
	return user
}

// CreateTestMember creates a member of org limited to the given capabilities.
func CreateTestMember(t *testing.T, db *gorm.DB, org *models.Organization, caps ...models.Capability) *models.User {
	t.Helper()

	user := CreateTestUser(t, db, org)
	if caps == nil {
		caps = []models.Capability{}
	}
	user.Role = "member"
	user.Capabilities = caps
	if err := db.Model(user).Select("role", "capabilities").Updates(user).Error; err != nil {
		t.Fatalf("failed to update test member: %v", err)
	}
	return user
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.TokenFor(user)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// CreateTestReport stores a completed report for org authored by user.
func CreateTestReport(t *testing.T, db *gorm.DB, org *models.Organization, user *models.User, payload string) *models.Report {
	t.Helper()

	now := time.Now()
	report := &models.Report{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Name:           "Security Assessment - " + org.Name + " - " + now.Format("2006-01-02"),
		Format:         models.ReportFormatJSON,
		StartedAt:      now.Add(-time.Minute),
		CompletedAt:    &now,
		Payload:        datatypes.JSON(payload),
	}

	if err := db.Create(report).Error; err != nil {
		t.Fatalf("failed to create test report: %v", err)
	}

	return report
}

// CreateTestRisk stores a risk attached to report.
func CreateTestRisk(t *testing.T, db *gorm.DB, report *models.Report, name string, severity models.Severity, elements ...string) *models.Risk {
	t.Helper()

	risk := &models.Risk{
		ReportID:         report.ID,
		OrganizationID:   report.OrganizationID,
		Name:             name,
		Overview:         name + " overview",
		Severity:         severity,
		AffectedElements: elements,
		Recommendations: datatypes.NewJSONType(models.Recommendation{
			EasyFix:     "easy fix for " + name,
			LongTermFix: "long term fix for " + name,
		}),
	}

	if err := db.Create(risk).Error; err != nil {
		t.Fatalf("failed to create test risk: %v", err)
	}

	return risk
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Org        *models.Organization
	User       *models.User
	Token      string
}

// NewTestContext creates a complete test setup with DB, org, owner, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	org := CreateTestOrg(t, db)
	user := CreateTestUser(t, db, org)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Org:        org,
		User:       user,
		Token:      token,
	}
}
