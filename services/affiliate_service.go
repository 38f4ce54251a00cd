package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"coaching-crm-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type AffiliateService struct {
	DB    *gorm.DB
	Leads *LeadService
}

func NewAffiliateService(db *gorm.DB, leads *LeadService) *AffiliateService {
	return &AffiliateService{DB: db, Leads: leads}
}

// GenerateReferralCode derives a human-readable unique code from the
// affiliate's name, e.g. "jane-doe-3f9a1c".
func GenerateReferralCode(name string) string {
	return slug.Make(name) + "-" + uuid.NewString()[:6]
}

func holdDuration() time.Duration {
	days := 14
	if raw := os.Getenv("COMMISSION_HOLD_DAYS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			days = n
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

// CreateAffiliate creates a new affiliate partner (Admin only).
func (s *AffiliateService) CreateAffiliate(c *fiber.Ctx) error {
	var req struct {
		Name           string   `json:"name"`
		Email          string   `json:"email"`
		CommissionRate *float64 `json:"commission_rate"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name and email are required"})
	}

	affiliate := &models.Affiliate{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Email:          req.Email,
		ReferralCode:   GenerateReferralCode(req.Name),
		CommissionRate: 0.1,
		IsActive:       true,
	}
	if req.CommissionRate != nil {
		affiliate.CommissionRate = *req.CommissionRate
	}

	if err := s.DB.Create(affiliate).Error; err != nil {
		log.Printf("DB Error creating affiliate: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create affiliate"})
	}
	return c.Status(fiber.StatusCreated).JSON(affiliate)
}

// GetAffiliates lists all affiliates (Admin only).
func (s *AffiliateService) GetAffiliates(c *fiber.Ctx) error {
	var affiliates []models.Affiliate
	if err := s.DB.Order("created_at DESC").Find(&affiliates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(affiliates)
}

// GetAffiliateStats returns one affiliate with its resolved lead report and
// commission totals (Admin only). Read-only: counters are not recomputed
// here.
func (s *AffiliateService) GetAffiliateStats(c *fiber.Ctx) error {
	id := c.Params("id")
	dateRange := c.Query("date_range")
	if !validDateRange(dateRange) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid date_range, expected one of 24h,7d,30d,90d,1y,all"})
	}

	var affiliate models.Affiliate
	if err := s.DB.First(&affiliate, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	report, err := s.Leads.GetLeads(LeadFilter{AffiliateID: id, DateRange: dateRange})
	if err != nil {
		log.Printf("DB Error resolving affiliate leads: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load affiliate stats"})
	}

	var held, available float64
	row := s.DB.Model(&models.AffiliateConversion{}).
		Where("affiliate_id = ? AND commission_status = ?", id, models.CommissionStatusHeld).
		Select("COALESCE(SUM(commission_amount), 0)")
	if err := row.Scan(&held).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	row = s.DB.Model(&models.AffiliateConversion{}).
		Where("affiliate_id = ? AND commission_status = ?", id, models.CommissionStatusAvailable).
		Select("COALESCE(SUM(commission_amount), 0)")
	if err := row.Scan(&available).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{
		"affiliate":            affiliate,
		"leads":                report,
		"held_commission":      held,
		"available_commission": available,
	})
}

// TrackClick handles GET /r/:code — records the click, bumps the counter and
// redirects into the funnel with the referral code attached.
func (s *AffiliateService) TrackClick(c *fiber.Ctx) error {
	code := c.Params("code")

	var affiliate models.Affiliate
	if err := s.DB.First(&affiliate, "referral_code = ? AND is_active = true", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown referral code"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	ipHash := sha256.Sum256([]byte(c.IP()))
	click := &models.AffiliateClick{
		ID:           uuid.NewString(),
		AffiliateID:  affiliate.ID,
		ReferralCode: code,
		IPHash:       hex.EncodeToString(ipHash[:8]),
		UserAgent:    c.Get("User-Agent"),
	}
	if err := s.DB.Create(click).Error; err != nil {
		log.Printf("DB Error recording click for %s: %v", code, err)
	}
	if err := s.DB.Model(&affiliate).
		UpdateColumn("total_clicks", gorm.Expr("total_clicks + 1")).Error; err != nil {
		log.Printf("DB Error bumping click counter for %s: %v", code, err)
	}

	funnelURL := os.Getenv("FUNNEL_BASE_URL")
	if funnelURL == "" {
		funnelURL = "http://localhost:3000"
	}
	return c.Redirect(funnelURL+"/?ref="+code, fiber.StatusFound)
}

// RecordConversion records a commission-bearing booking or sale (Admin
// only). This is the sale-time path: it creates the held conversion and is
// the ONLY place that increments the affiliate's TotalCommission — the
// release path later flips status without touching amounts.
func (s *AffiliateService) RecordConversion(c *fiber.Ctx) error {
	var req struct {
		AffiliateCode    string   `json:"affiliate_code"`
		ConversionType   string   `json:"conversion_type"`
		CustomerEmail    string   `json:"customer_email"`
		Amount           float64  `json:"amount"`
		CommissionAmount *float64 `json:"commission_amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ConversionType != models.ConversionTypeBooking && req.ConversionType != models.ConversionTypeSale {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "conversion_type must be booking or sale"})
	}

	var affiliate models.Affiliate
	if err := s.DB.First(&affiliate, "referral_code = ?", req.AffiliateCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	commission := 0.0
	if req.CommissionAmount != nil {
		commission = *req.CommissionAmount
	} else if req.ConversionType == models.ConversionTypeSale {
		commission = req.Amount * affiliate.CommissionRate
	}

	holdUntil := time.Now().Add(holdDuration())
	conversion := &models.AffiliateConversion{
		ID:               uuid.NewString(),
		AffiliateID:      affiliate.ID,
		ConversionType:   req.ConversionType,
		CustomerEmail:    req.CustomerEmail,
		Amount:           req.Amount,
		CommissionAmount: commission,
		CommissionStatus: models.CommissionStatusHeld,
		HoldUntil:        &holdUntil,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversion).Error; err != nil {
			return err
		}
		counter := "total_bookings"
		if req.ConversionType == models.ConversionTypeSale {
			counter = "total_sales"
		}
		return tx.Model(&affiliate).Updates(map[string]interface{}{
			counter:            gorm.Expr(counter+" + 1"),
			"total_commission": gorm.Expr("total_commission + ?", commission),
		}).Error
	})
	if err != nil {
		log.Printf("DB Error recording conversion: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record conversion"})
	}

	return c.Status(fiber.StatusCreated).JSON(conversion)
}
