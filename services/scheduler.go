// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

func (s *CommissionService) StartReleaseScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every hour: release held commissions whose hold window has elapsed.
	// Overlap with a manual release is harmless — released rows stop
	// matching the held filter.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			result, err := s.ReleaseEligibleCommissions()
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}
			if result.ReleasedCount == 0 {
				return
			}
			log.Printf("✅ Auto-released %d commission(s) totalling $%s",
				result.ReleasedCount, moneyPrinter.Sprintf("%.2f", result.ReleasedAmount))
		}),
	)
}
