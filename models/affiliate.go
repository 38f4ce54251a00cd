package models

import "time"

const (
	ConversionTypeBooking = "booking"
	ConversionTypeSale    = "sale"
)

const (
	CommissionStatusHeld      = "held"
	CommissionStatusAvailable = "available"
)

// Affiliate is a referral partner. Quiz sessions are tagged with the
// affiliate's referral code, not its ID.
type Affiliate struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name           string  `gorm:"not null" json:"name"`
	Email          string  `gorm:"uniqueIndex;not null" json:"email"`
	ReferralCode   string  `gorm:"uniqueIndex;not null" json:"referral_code"`
	CommissionRate float64 `gorm:"default:0.1" json:"commission_rate"` // 0.1 = 10%
	IsActive       bool    `gorm:"default:true" json:"is_active"`

	// Denormalized counters. TotalCommission is incremented exactly once per
	// conversion, at recording time — never by the release path.
	TotalClicks     int64   `gorm:"default:0" json:"total_clicks"`
	TotalLeads      int64   `gorm:"default:0" json:"total_leads"`
	TotalBookings   int64   `gorm:"default:0" json:"total_bookings"`
	TotalSales      int64   `gorm:"default:0" json:"total_sales"`
	TotalCommission float64 `gorm:"default:0" json:"total_commission"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// AffiliateClick records one visit through a referral link.
type AffiliateClick struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AffiliateID  string    `gorm:"index;not null" json:"affiliate_id"`
	ReferralCode string    `gorm:"index;not null" json:"referral_code"`
	IPHash       string    `json:"ip_hash,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// AffiliateConversion is a single commission-bearing event (booking or sale).
// Its commission starts held and becomes available once HoldUntil passes;
// the status only ever moves held → available.
type AffiliateConversion struct {
	ID               string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AffiliateID      string     `gorm:"index;not null" json:"affiliate_id"`
	ConversionType   string     `gorm:"not null" json:"conversion_type"` // booking | sale
	CustomerEmail    string     `gorm:"index" json:"customer_email"`
	Amount           float64    `json:"amount"` // order value for sales, 0 for bookings
	CommissionAmount float64    `json:"commission_amount"`
	CommissionStatus string     `gorm:"index;not null;default:'held'" json:"commission_status"`
	HoldUntil        *time.Time `gorm:"index" json:"hold_until,omitempty"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
}
