package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"coaching-crm-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LeadService struct {
	DB *gorm.DB
}

func NewLeadService(db *gorm.DB) *LeadService {
	return &LeadService{DB: db}
}

// LeadFilter scopes a lead query. StartDate/EndDate override DateRange when
// both are set.
type LeadFilter struct {
	AffiliateID   string
	AffiliateCode string
	DateRange     string // 24h | 7d | 30d | 90d | 1y | all
	StartDate     *time.Time
	EndDate       *time.Time
	QuizType      string
}

type LeadReport struct {
	TotalLeads           int                  `json:"total_leads"`
	Leads                []models.QuizSession `json:"leads"`
	AllCompletedSessions int64                `json:"all_completed_sessions"`
	LeadConversionRate   float64              `json:"lead_conversion_rate"`
}

const DefaultDateRange = "30d"

var dateRangeDurations = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

func validDateRange(r string) bool {
	if r == "" || r == "all" {
		return true
	}
	_, ok := dateRangeDurations[r]
	return ok
}

// resolveWindow turns a filter into an absolute [start, end] window. An
// explicit StartDate/EndDate pair wins over DateRange; "all" still applies a
// lower bound of the epoch rather than skipping the filter.
func resolveWindow(filter LeadFilter, now time.Time) (time.Time, time.Time) {
	if filter.StartDate != nil && filter.EndDate != nil {
		return *filter.StartDate, *filter.EndDate
	}
	rangeKey := filter.DateRange
	if rangeKey == "" {
		rangeKey = DefaultDateRange
	}
	if rangeKey == "all" {
		return time.Unix(0, 0), now
	}
	d, ok := dateRangeDurations[rangeKey]
	if !ok {
		d = dateRangeDurations[DefaultDateRange]
	}
	return now.Add(-d), now
}

// A "name" answer is any answer whose question prompt mentions "name".
func isNameAnswer(a models.QuizAnswer) bool {
	return strings.Contains(strings.ToLower(a.Question.Prompt), "name")
}

// An "email" answer is typed email or has "email" in the prompt.
func isEmailAnswer(a models.QuizAnswer) bool {
	return a.Question.Type == models.QuestionTypeEmail ||
		strings.Contains(strings.ToLower(a.Question.Prompt), "email")
}

// resolveLeadIdentity picks the first non-empty name and email answers of a
// session. ok is true only when both exist.
func resolveLeadIdentity(session models.QuizSession) (name, email string, ok bool) {
	for _, a := range session.Answers {
		if name == "" && a.Value != "" && isNameAnswer(a) {
			name = a.Value
		}
		if email == "" && a.Value != "" && isEmailAnswer(a) {
			email = a.Value
		}
	}
	return name, email, name != "" && email != ""
}

func leadTimestamp(s models.QuizSession) time.Time {
	if s.CompletedAt != nil {
		return *s.CompletedAt
	}
	return s.CreatedAt
}

// dedupeLeadsByEmail keeps one session per email value, preferring the most
// recently completed. Comparison is strict greater-than, so on an exact tie
// the first session encountered stays. The key is the stored email string,
// byte-exact — no case or whitespace normalization, since commission and
// reporting code downstream matches on the stored value.
func dedupeLeadsByEmail(leads []models.QuizSession) []models.QuizSession {
	kept := make(map[string]int, len(leads))
	out := make([]models.QuizSession, 0, len(leads))
	for _, session := range leads {
		_, email, _ := resolveLeadIdentity(session)
		idx, seen := kept[email]
		if !seen {
			kept[email] = len(out)
			out = append(out, session)
			continue
		}
		if leadTimestamp(session).After(leadTimestamp(out[idx])) {
			out[idx] = session
		}
	}
	return out
}

// buildLeadReport applies the lead eligibility check and dedupe to the
// candidate sessions. allCompleted is the raw completed-session count for the
// same window, used for the conversion rate.
func buildLeadReport(candidates []models.QuizSession, allCompleted int64) *LeadReport {
	leads := make([]models.QuizSession, 0, len(candidates))
	for _, session := range candidates {
		if _, _, ok := resolveLeadIdentity(session); ok {
			leads = append(leads, session)
		}
	}
	leads = dedupeLeadsByEmail(leads)

	rate := 0.0
	if allCompleted > 0 {
		rate = float64(len(leads)) / float64(allCompleted) * 100
	}

	return &LeadReport{
		TotalLeads:           len(leads),
		Leads:                leads,
		AllCompletedSessions: allCompleted,
		LeadConversionRate:   rate,
	}
}

// GetLeads returns the de-duplicated genuine leads in the filter's scope.
// Zero leads is a normal result, not an error.
func (s *LeadService) GetLeads(filter LeadFilter) (*LeadReport, error) {
	code := filter.AffiliateCode
	if filter.AffiliateID != "" {
		// Sessions are tagged by referral code, not affiliate ID.
		var aff models.Affiliate
		if err := s.DB.First(&aff, "id = ?", filter.AffiliateID).Error; err != nil {
			return nil, err
		}
		code = aff.ReferralCode
	}

	start, end := resolveWindow(filter, time.Now())

	scope := func() *gorm.DB {
		q := s.DB.Model(&models.QuizSession{}).
			Where("status = ?", models.SessionStatusCompleted).
			Where("created_at >= ? AND created_at <= ?", start, end)
		if filter.QuizType != "" {
			q = q.Where("quiz_type = ?", filter.QuizType)
		}
		if code != "" {
			q = q.Where("affiliate_code = ?", code)
		}
		return q
	}

	var allCompleted int64
	if err := scope().Count(&allCompleted).Error; err != nil {
		return nil, err
	}

	// Pre-filter: only sessions with at least one answered email question.
	// Eligibility proper (name + email both truthy) is checked in memory.
	emailAnswered := s.DB.Table("quiz_answers").
		Select("quiz_answers.session_id").
		Joins("JOIN quiz_questions ON quiz_questions.id = quiz_answers.question_id").
		Where("quiz_questions.type = ? OR LOWER(quiz_questions.prompt) LIKE ?", models.QuestionTypeEmail, "%email%").
		Where("quiz_answers.value <> ''")

	var candidates []models.QuizSession
	if err := scope().
		Where("id IN (?)", emailAnswered).
		Preload("Answers.Question").
		Order("created_at ASC").
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	return buildLeadReport(candidates, allCompleted), nil
}

func parseLeadFilter(c *fiber.Ctx) (LeadFilter, error) {
	filter := LeadFilter{
		AffiliateID:   c.Query("affiliate_id"),
		AffiliateCode: c.Query("affiliate_code"),
		DateRange:     c.Query("date_range"),
		QuizType:      c.Query("quiz_type"),
	}
	if !validDateRange(filter.DateRange) {
		return filter, errors.New("invalid date_range, expected one of 24h,7d,30d,90d,1y,all")
	}
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid start_date, expected RFC3339")
		}
		filter.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid end_date, expected RFC3339")
		}
		filter.EndDate = &t
	}
	return filter, nil
}

// GetLeadsEndpoint handles GET /leads (admin only).
func (s *LeadService) GetLeadsEndpoint(c *fiber.Ctx) error {
	filter, err := parseLeadFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := s.GetLeads(filter)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate not found"})
		}
		log.Printf("DB Error resolving leads: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load leads"})
	}

	return c.JSON(report)
}
