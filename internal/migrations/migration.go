package migrations

import (
	"context"
	"log"

	"agency_tracker/internal/models"
	"agency_tracker/internal/repository"

	"gorm.io/gorm"
)

// Models lists every table owned by the service, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.Client{},
		&models.Project{},
		&models.Phase{},
		&models.Task{},
		&models.Attachment{},
		&models.TrackingCode{},
		&models.NotificationPreference{},
		&models.TaxRate{},
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.Payment{},
		&models.Refund{},
		&models.Notification{},
		&models.ActivityLog{},
	}
}

// indexes gorm tags cannot express.
var indexes = []string{
	// at most one active code per project
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tracking_codes_one_active
		ON tracking_codes (project_id) WHERE is_active`,
}

// RunMigrations creates or updates the schema and, when seed is set, inserts
// the default tax rates into an empty catalogue.
func RunMigrations(db *gorm.DB, seed bool) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	if seed {
		if err := createDefaultData(context.Background(), repository.NewTaxRateRepository(db)); err != nil {
			log.Printf("Warning: Failed to create default data: %v", err)
		}
	}

	log.Println("Database migrations completed successfully!")
	return nil
}

var defaultTaxRates = []models.TaxRate{
	{Name: "No tax", Rate: 0, IsActive: true},
	{Name: "PPN", Rate: 11, Country: "ID", IsActive: true},
	{Name: "VAT (UK)", Rate: 20, Country: "GB", IsActive: true},
	{Name: "Sales tax (CA)", Rate: 7.25, Country: "US", State: "CA", IsActive: true},
}

func createDefaultData(ctx context.Context, taxRates repository.TaxRateRepository) error {
	existing, err := taxRates.List(ctx, false)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Println("Tax rates already present, skipping seed")
		return nil
	}

	log.Println("Creating default tax rates...")
	for i := range defaultTaxRates {
		rate := defaultTaxRates[i]
		if err := taxRates.Create(ctx, &rate); err != nil {
			return err
		}
	}
	return nil
}
