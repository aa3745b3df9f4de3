package cronjob

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/asterolab/lightcurve-backend/internal/archive"
)

// Scheduler refreshes the mission sector catalog from the archive on a
// nightly schedule.
type Scheduler struct {
	client   *archive.Client
	catalog  *archive.CatalogRepository
	missions []string
	cron     *cron.Cron
}

func NewScheduler(client *archive.Client, catalog *archive.CatalogRepository, missions []string) *Scheduler {
	return &Scheduler{
		client:   client,
		catalog:  catalog,
		missions: missions,
	}
}

// Start initializes cron tasks
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	// nightly at 3:00 AM, after the archive publishes new sectors
	_, err := c.AddFunc("0 0 3 * * *", func() {
		s.RefreshCatalog()
	})

	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return
	}

	log.Println("Cron scheduler started (catalog refresh nightly at 3:00AM)")
	c.Start()
	s.cron = c
}

// Stop halts the scheduler, waiting for a running refresh to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RefreshCatalog pulls each configured mission's sector list and upserts
// it into postgres. Failures for one mission do not stop the others.
func (s *Scheduler) RefreshCatalog() {
	log.Println("Nightly catalog refresh started...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	for _, mission := range s.missions {
		sectors, err := s.client.ListMissionSectors(ctx, mission)
		if err != nil {
			log.Printf("Catalog fetch failed for mission %s: %v", mission, err)
			continue
		}
		if err := s.catalog.UpsertSectors(ctx, mission, sectors); err != nil {
			log.Printf("Catalog upsert failed for mission %s: %v", mission, err)
			continue
		}
		log.Printf("Catalog refreshed for mission %s (%d sectors)", mission, len(sectors))
	}

	log.Println("Nightly catalog refresh completed at:", time.Now().Format(time.RFC1123))
}
