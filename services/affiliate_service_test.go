package services

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAffiliateStatsRejectsInvalidDateRange(t *testing.T) {
	// Validation runs before any DB access, so a nil DB proves the request
	// is rejected up front instead of silently falling back to the default
	// window.
	app := fiber.New()
	s := NewAffiliateService(nil, nil)
	app.Get("/admin/affiliates/:id/stats", s.GetAffiliateStats)

	req := httptest.NewRequest(fiber.MethodGet, "/admin/affiliates/a1/stats?date_range=fortnight", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGenerateReferralCodeIsSluggedAndSuffixed(t *testing.T) {
	code := GenerateReferralCode("Jane Döe")
	assert.True(t, strings.HasPrefix(code, "jane-doe-"), code)
	assert.Len(t, code, len("jane-doe-")+6)
}
