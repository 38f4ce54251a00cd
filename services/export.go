package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"time"

	"coaching-crm-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

// ExportLeadsCSV renders the resolved lead list as CSV and stores it,
// returning the download URL and the exported row count.
func (s *LeadService) ExportLeadsCSV(filter LeadFilter) (string, int, error) {
	report, err := s.GetLeads(filter)
	if err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"name", "email", "quiz_type", "affiliate_code", "completed_at", "created_at"})
	for _, session := range report.Leads {
		name, email, _ := resolveLeadIdentity(session)
		code := ""
		if session.AffiliateCode != nil {
			code = *session.AffiliateCode
		}
		completed := ""
		if session.CompletedAt != nil {
			completed = session.CompletedAt.UTC().Format(time.RFC3339)
		}
		_ = w.Write([]string{
			unidecode.Unidecode(name), // ASCII-fold for legacy spreadsheet imports
			email,
			session.QuizType,
			code,
			completed,
			session.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", 0, fmt.Errorf("failed to render CSV: %w", err)
	}

	label := filter.DateRange
	if label == "" {
		label = DefaultDateRange
	}
	if filter.QuizType != "" {
		label = filter.QuizType + "-" + label
	}
	key := fmt.Sprintf("exports/leads/%s-%s.csv", slug.Make(label), uuid.NewString()[:8])

	url, err := utils.StoreObject(key, buf.Bytes(), "text/csv")
	if err != nil {
		return "", 0, err
	}
	return url, report.TotalLeads, nil
}

// ExportLeadsEndpoint handles GET /leads/export (admin only).
func (s *LeadService) ExportLeadsEndpoint(c *fiber.Ctx) error {
	filter, err := parseLeadFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	url, count, err := s.ExportLeadsCSV(filter)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate not found"})
		}
		log.Printf("❌ Lead export failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to export leads"})
	}

	log.Printf("📤 Exported %d lead(s) to %s", count, url)
	return c.JSON(fiber.Map{"url": url, "count": count})
}
