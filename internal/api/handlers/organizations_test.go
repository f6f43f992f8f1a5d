package handlers_test

import (
	"net/http"
	"testing"

	"github.com/hugh/go-assess/internal/api/dto"
	"github.com/hugh/go-assess/internal/auth"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizationHandler_Get(t *testing.T) {
	a := setupTestAPI(t)
	a.member(t, models.CapViewRisk)

	rr := a.do(testutil.AuthenticatedRequest(t, "GET", "/api/v1/organization", nil, a.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp dto.OrganizationResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, a.Org.ID.String(), resp.ID)
	assert.Equal(t, "example.com", resp.EmailDomain)
	assert.Len(t, resp.Members, 2)
}

func TestOrganizationHandler_RequiresMembership(t *testing.T) {
	a := setupTestAPI(t)
	loner := testutil.CreateTestUser(t, a.DB, nil)
	token := testutil.GenerateTestToken(t, a.JWTService, loner)

	for _, path := range []string{"/api/v1/organization", "/api/v1/reports", "/api/v1/risks"} {
		rr := a.do(testutil.AuthenticatedRequest(t, "GET", path, nil, token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	}

	// The profile is still reachable
	rr := a.do(testutil.AuthenticatedRequest(t, "GET", "/api/v1/me", nil, token))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestOrganizationHandler_UpdatePosture(t *testing.T) {
	a := setupTestAPI(t)

	t.Run("owner updates answers", func(t *testing.T) {
		body := map[string]interface{}{
			"require_mfa_email":      true,
			"training_new_employees": true,
			"website_domain":         "www.example.com",
		}

		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/posture", body, a.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var org models.Organization
		require.NoError(t, a.DB.First(&org, "id = ?", a.Org.ID).Error)
		assert.True(t, org.RequireMFAEmail)
		assert.True(t, org.TrainingNewEmployees)
		assert.False(t, org.TrainingOncePerYear)
		assert.Equal(t, "www.example.com", org.WebsiteDomain)
	})

	t.Run("clearing a bool", func(t *testing.T) {
		body := map[string]interface{}{"require_mfa_email": false}

		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/posture", body, a.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var org models.Organization
		require.NoError(t, a.DB.First(&org, "id = ?", a.Org.ID).Error)
		assert.False(t, org.RequireMFAEmail)
		assert.True(t, org.TrainingNewEmployees)
	})

	t.Run("invalid ip", func(t *testing.T) {
		body := map[string]interface{}{"external_ip": "999.1.1.1"}

		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/posture", body, a.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("members cannot update", func(t *testing.T) {
		_, token := a.member(t, models.AllCapabilities...)
		body := map[string]interface{}{"require_mfa_email": true}

		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/posture", body, token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestOrganizationHandler_AddMember(t *testing.T) {
	a := setupTestAPI(t)

	t.Run("invite unaffiliated user", func(t *testing.T) {
		invitee := testutil.CreateTestUser(t, a.DB, nil)

		rr := a.do(testutil.AuthenticatedRequest(t, "POST", "/api/v1/organization/members",
			map[string]string{"email": invitee.Email}, a.Token))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var user dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &user)
		require.NotNil(t, user.OrganizationID)
		assert.Equal(t, a.Org.ID.String(), *user.OrganizationID)
		assert.Equal(t, "member", user.Role)
		assert.Len(t, user.Capabilities, len(auth.DefaultMemberCapabilities))
	})

	t.Run("invite with explicit capabilities", func(t *testing.T) {
		invitee := testutil.CreateTestUser(t, a.DB, nil)
		body := map[string]interface{}{
			"email":        invitee.Email,
			"capabilities": []string{"view_risk", "resolve_risk"},
		}

		rr := a.do(testutil.AuthenticatedRequest(t, "POST", "/api/v1/organization/members", body, a.Token))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var stored models.User
		require.NoError(t, a.DB.First(&stored, "id = ?", invitee.ID).Error)
		assert.True(t, stored.Has(models.CapResolveRisk))
		assert.False(t, stored.Has(models.CapGenerateReport))
	})

	t.Run("user in another organization", func(t *testing.T) {
		other := testutil.CreateTestUser(t, a.DB, testutil.CreateTestOrg(t, a.DB))

		rr := a.do(testutil.AuthenticatedRequest(t, "POST", "/api/v1/organization/members",
			map[string]string{"email": other.Email}, a.Token))
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("unknown email", func(t *testing.T) {
		rr := a.do(testutil.AuthenticatedRequest(t, "POST", "/api/v1/organization/members",
			map[string]string{"email": "nobody@example.com"}, a.Token))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("unknown capability", func(t *testing.T) {
		body := map[string]interface{}{"email": "x@example.com", "capabilities": []string{"launch_missiles"}}

		rr := a.do(testutil.AuthenticatedRequest(t, "POST", "/api/v1/organization/members", body, a.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("requires invite permission", func(t *testing.T) {
		_, token := a.member(t, models.CapViewRisk)
		invitee := testutil.CreateTestUser(t, a.DB, nil)

		rr := a.do(testutil.AuthenticatedRequest(t, "POST", "/api/v1/organization/members",
			map[string]string{"email": invitee.Email}, token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestOrganizationHandler_SetCapabilities(t *testing.T) {
	a := setupTestAPI(t)
	member, memberToken := a.member(t, models.CapViewRisk)

	t.Run("grant takes effect without a new token", func(t *testing.T) {
		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/risks/"+member.ID.String()+"/archive", nil, memberToken))
		testutil.AssertStatus(t, rr, http.StatusForbidden)

		body := map[string]interface{}{"capabilities": []string{"view_risk", "resolve_risk"}}
		rr = a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/members/"+member.ID.String()+"/capabilities", body, a.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		// Now past the permission check; the risk itself does not exist
		rr = a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/risks/"+member.ID.String()+"/archive", nil, memberToken))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("owner capabilities are fixed", func(t *testing.T) {
		body := map[string]interface{}{"capabilities": []string{}}

		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/members/"+a.User.ID.String()+"/capabilities", body, a.Token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("member of another organization", func(t *testing.T) {
		outsider := testutil.CreateTestMember(t, a.DB, testutil.CreateTestOrg(t, a.DB))
		body := map[string]interface{}{"capabilities": []string{"view_risk"}}

		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/members/"+outsider.ID.String()+"/capabilities", body, a.Token))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("missing list", func(t *testing.T) {
		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/members/"+member.ID.String()+"/capabilities", map[string]interface{}{}, a.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("requires edit permission", func(t *testing.T) {
		body := map[string]interface{}{"capabilities": []string{"view_risk"}}

		rr := a.do(testutil.AuthenticatedRequest(t, "PUT", "/api/v1/organization/members/"+member.ID.String()+"/capabilities", body, memberToken))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}
