package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"coaching-crm-system/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

var ErrCommissionNotFound = errors.New("commission not found")

// InvalidStateError reports a force-release attempt on a conversion that is
// not currently held. The actual status is carried for operator diagnosis.
type InvalidStateError struct {
	CommissionID string
	Status       string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("commission %s cannot be released: current status is %q, expected %q",
		e.CommissionID, e.Status, models.CommissionStatusHeld)
}

var moneyPrinter = message.NewPrinter(language.English)

type CommissionService struct {
	DB *gorm.DB
}

func NewCommissionService(db *gorm.DB) *CommissionService {
	return &CommissionService{DB: db}
}

type ReleaseResult struct {
	ReleasedCount  int       `json:"released_count"`
	ReleasedAmount float64   `json:"released_amount"`
	ReleasedIDs    []string  `json:"released_ids"`
	CurrentDate    time.Time `json:"current_date"`
}

// ReleaseEligibleCommissions moves every held, positive-amount conversion
// whose hold window has elapsed to available, in one batched update. Safe to
// call repeatedly: released rows no longer match the held filter, so a second
// pass with no new eligible rows is a zero-effect success.
//
// It never touches commission_amount or any affiliate-level total — those are
// written exactly once, at conversion recording time.
func (s *CommissionService) ReleaseEligibleCommissions() (*ReleaseResult, error) {
	now := time.Now()

	var eligible []models.AffiliateConversion
	if err := s.DB.
		Where("commission_status = ? AND commission_amount > 0 AND hold_until <= ?",
			models.CommissionStatusHeld, now).
		Find(&eligible).Error; err != nil {
		return nil, err
	}

	result := &ReleaseResult{ReleasedIDs: []string{}, CurrentDate: now}
	if len(eligible) == 0 {
		return result, nil
	}

	for _, conv := range eligible {
		result.ReleasedIDs = append(result.ReleasedIDs, conv.ID)
		result.ReleasedAmount += conv.CommissionAmount
	}
	result.ReleasedCount = len(eligible)

	if err := s.DB.Model(&models.AffiliateConversion{}).
		Where("id IN ?", result.ReleasedIDs).
		Updates(map[string]interface{}{
			"commission_status": models.CommissionStatusAvailable,
			"released_at":       now,
		}).Error; err != nil {
		return nil, err
	}

	return result, nil
}

type commissionBucket struct {
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}

type CommissionStatusReport struct {
	ReadyForRelease commissionBucket `json:"ready_for_release"`
	Held            commissionBucket `json:"held"`
	Available       commissionBucket `json:"available"`
	CurrentDate     time.Time        `json:"current_date"`
}

func (s *CommissionService) sumBucket(q *gorm.DB) (commissionBucket, error) {
	var b commissionBucket
	err := q.Select("COUNT(*) AS count, COALESCE(SUM(commission_amount), 0) AS total").Scan(&b).Error
	return b, err
}

// GetCommissionStatus reports counts and sums for held-and-ready, all held,
// and all available conversions (positive amounts only), plus the timestamp
// the readiness comparison used.
func (s *CommissionService) GetCommissionStatus() (*CommissionStatusReport, error) {
	now := time.Now()
	report := &CommissionStatusReport{CurrentDate: now}

	var err error
	report.ReadyForRelease, err = s.sumBucket(s.DB.Model(&models.AffiliateConversion{}).
		Where("commission_status = ? AND commission_amount > 0 AND hold_until <= ?",
			models.CommissionStatusHeld, now))
	if err != nil {
		return nil, err
	}

	report.Held, err = s.sumBucket(s.DB.Model(&models.AffiliateConversion{}).
		Where("commission_status = ? AND commission_amount > 0", models.CommissionStatusHeld))
	if err != nil {
		return nil, err
	}

	report.Available, err = s.sumBucket(s.DB.Model(&models.AffiliateConversion{}).
		Where("commission_status = ? AND commission_amount > 0", models.CommissionStatusAvailable))
	if err != nil {
		return nil, err
	}

	return report, nil
}

// ForceReleaseCommission releases a single held conversion regardless of its
// hold window. This is the only path that bypasses the time gate.
func (s *CommissionService) ForceReleaseCommission(commissionID string) (*models.AffiliateConversion, error) {
	var conv models.AffiliateConversion
	if err := s.DB.First(&conv, "id = ?", commissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCommissionNotFound, commissionID)
		}
		return nil, err
	}

	if conv.CommissionStatus != models.CommissionStatusHeld {
		return nil, &InvalidStateError{CommissionID: conv.ID, Status: conv.CommissionStatus}
	}

	now := time.Now()
	if err := s.DB.Model(&conv).
		Updates(map[string]interface{}{
			"commission_status": models.CommissionStatusAvailable,
			"released_at":       now,
		}).Error; err != nil {
		return nil, err
	}

	conv.CommissionStatus = models.CommissionStatusAvailable
	conv.ReleasedAt = &now
	return &conv, nil
}

// --- HTTP surface (admin only) ---

func (s *CommissionService) GetStatusEndpoint(c *fiber.Ctx) error {
	report, err := s.GetCommissionStatus()
	if err != nil {
		log.Printf("DB Error loading commission status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load commission status"})
	}
	return c.JSON(report)
}

func (s *CommissionService) ReleaseEndpoint(c *fiber.Ctx) error {
	result, err := s.ReleaseEligibleCommissions()
	if err != nil {
		log.Printf("DB Error releasing commissions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to release commissions"})
	}
	if result.ReleasedCount > 0 {
		log.Printf("✅ Manually released %d commission(s) totalling $%s",
			result.ReleasedCount, moneyPrinter.Sprintf("%.2f", result.ReleasedAmount))
	}
	return c.JSON(result)
}

func (s *CommissionService) ForceReleaseEndpoint(c *fiber.Ctx) error {
	conv, err := s.ForceReleaseCommission(c.Params("id"))
	if err != nil {
		var stateErr *InvalidStateError
		switch {
		case errors.Is(err, ErrCommissionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.As(err, &stateErr):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": stateErr.Error()})
		default:
			log.Printf("DB Error force-releasing commission: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to release commission"})
		}
	}
	log.Printf("⚠️  Commission %s force-released by %v", conv.ID, c.Locals("user_id"))
	return c.JSON(conv)
}
