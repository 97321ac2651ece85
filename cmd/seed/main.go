package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/config"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/storage"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// Development seeding tool: fills the local database with plausible clients,
// leads and appointments so the push pass has something to work with.
func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	clientCount := flag.Int("clients", 200, "Number of clients to seed")
	leadCount := flag.Int("leads", 50, "Number of leads to seed")
	apptsPerClient := flag.Int("appointments", 2, "Max appointments per client")
	optInRatio := flag.Float64("opt-in-ratio", 0.7, "Fraction of records with email consent")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	if err := logger.Initialize(*logLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	gofakeit.Seed(time.Now().UnixNano())

	repo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, true)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}

	ctx := context.Background()
	defer repo.Close(ctx)

	clients := repo.ClientRepo()
	leads := repo.LeadRepo()
	appts := repo.AppointmentRepo()

	services := []string{"Consultation", "Botox", "Dermal Fillers", "Skin Peel", "Laser Hair Removal", "Microneedling"}
	practitioners := []string{"Dr Patel", "Dr Hughes", "Nurse Kelly", "Nurse Owen"}

	seeded := 0
	for i := 0; i < *clientCount; i++ {
		pabauID := int64(100000 + i)
		created := gofakeit.DateRange(time.Now().AddDate(-2, 0, 0), time.Now()).UTC()
		now := utils.Now()

		client := &model.Client{
			PabauID:     pabauID,
			CustomID:    fmt.Sprintf("SV%06d", pabauID),
			FirstName:   gofakeit.FirstName(),
			LastName:    gofakeit.LastName(),
			Gender:      gofakeit.Gender(),
			Email:       gofakeit.Email(),
			Phone:       gofakeit.Phone(),
			Mobile:      gofakeit.Phone(),
			IsActive:    1,
			CreatedDate: &created,
			OptInEmail:  consentFlag(*optInRatio),
			OptInSms:    consentFlag(0.5),
			OptInPhone:  consentFlag(0.5),

			CreatedByName:     gofakeit.Name(),
			PabauLastSyncedAt: &now,
		}

		id, err := clients.Upsert(ctx, client)
		if err != nil {
			logger.Log.Warn("Failed to seed client", zap.Int64("pabau_id", pabauID), zap.Error(err))
			continue
		}
		seeded++

		n := rand.Intn(*apptsPerClient + 1)
		batch := make([]*model.Appointment, 0, n)
		for j := 0; j < n; j++ {
			when := gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now().AddDate(0, 3, 0)).UTC().Truncate(time.Minute)
			day := time.Date(when.Year(), when.Month(), when.Day(), 0, 0, 0, 0, time.UTC)
			duration := 15 * (1 + rand.Intn(6))
			batch = append(batch, &model.Appointment{
				ClientPabauID:       pabauID,
				AppointmentDate:     &day,
				AppointmentTime:     when.Format("15:04"),
				AppointmentDatetime: &when,
				Service:             services[rand.Intn(len(services))],
				Duration:            &duration,
				AppointmentStatus:   gofakeit.RandomString([]string{"Confirmed", "Completed", "Cancelled"}),
				ApptWith:            practitioners[rand.Intn(len(practitioners))],
				CreatedBy:           practitioners[rand.Intn(len(practitioners))],
				CreatedDate:         &created,
				PabauLastSyncedAt:   &now,
			})
		}
		if err := appts.BulkUpsert(ctx, batch); err != nil {
			logger.Log.Warn("Failed to seed appointments", zap.Int64("client_id", id), zap.Error(err))
		}
	}

	leadSeeded := 0
	for i := 0; i < *leadCount; i++ {
		pabauID := int64(500000 + i)
		created := gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).UTC()
		now := utils.Now()

		lead := &model.Lead{
			PabauID:             pabauID,
			FirstName:           gofakeit.FirstName(),
			LastName:            gofakeit.LastName(),
			Email:               gofakeit.Email(),
			Phone:               gofakeit.Phone(),
			Mobile:              gofakeit.Phone(),
			MailingCity:         gofakeit.City(),
			MailingCountry:      "United Kingdom",
			IsActive:            1,
			LeadStatus:          gofakeit.RandomString([]string{"New", "Contacted", "Qualified", "Converted"}),
			OwnerName:           gofakeit.Name(),
			CreatedDate:         &created,
			PipelineName:        "Default",
			DealValue:           gofakeit.Price(50, 2000),
			OptInEmailMailchimp: consentFlag(*optInRatio),
			PabauLastSyncedAt:   &now,
		}

		if _, err := leads.Upsert(ctx, lead); err != nil {
			logger.Log.Warn("Failed to seed lead", zap.Int64("pabau_id", pabauID), zap.Error(err))
			continue
		}
		leadSeeded++
	}

	logger.Log.Info("Seeding complete",
		zap.Int("clients", seeded),
		zap.Int("leads", leadSeeded))
}

func consentFlag(ratio float64) int16 {
	if rand.Float64() < ratio {
		return 1
	}
	return 0
}
