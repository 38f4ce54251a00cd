package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"coaching-crm-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingSyncClient mirrors booked calls from the booking (Calendly proxy)
// service into the local appointments table. Appointments are created only
// by this path; outcome fields are owned locally and never overwritten by a
// sync.
type BookingSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewBookingSyncClient(db *gorm.DB) *BookingSyncClient {
	baseURL := os.Getenv("BOOKING_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("BOOKING_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("CRM_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("CRM_SERVICE_TOKEN environment variable is required for booking sync")
	}

	return &BookingSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *BookingSyncClient) GetChangedBookings(ctx context.Context, since time.Time) ([]models.Appointment, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/bookings", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call booking service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("booking service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Bookings []models.Appointment `json:"bookings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode booking service response: %w", err)
	}

	return response.Bookings, nil
}

// PollBookings mirrors changed bookings into the DB on a fixed interval.
func PollBookings(ctx context.Context, client *BookingSyncClient, pollInterval time.Duration) {
	log.Println("Starting booking polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Booking polling stopped.")
			return
		case <-ticker.C:
			pollStart := time.Now().UTC()

			bookings, err := client.GetChangedBookings(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling bookings: %v", err)
				continue
			}

			count := len(bookings)
			if count == 0 {
				lastSyncTime = pollStart
				continue
			}
			log.Printf("📥 Received %d booking change(s) from booking service.", count)

			// Upsert on the Calendly event ID. Only booking-owned columns are
			// updated — outcome and recording links stay local.
			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "calendly_event_id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"quiz_session_id",
						"closer_id",
						"customer_name",
						"customer_email",
						"scheduled_at",
						"updated_at",
					}),
				},
			).Create(&bookings).Error; err != nil {
				log.Printf("❌ Failed to upsert %d booking(s): %v", count, err)
				// Do NOT advance lastSyncTime on failure — retry same window next tick
				continue
			}

			log.Printf("✅ Synced %d appointment(s).", count)
			lastSyncTime = pollStart
		}
	}
}
