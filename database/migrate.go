package database

import (
	"fmt"

	"gorm.io/gorm"

	"home-service-server/models"
)

// Migrate creates or updates the schema. Run it from the migrate command, not on every boot.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Serviceman{},
		&models.ServicemanRegistration{},
		&models.ServiceRequest{},
		&models.JobRejection{},
		&models.PaymentObligation{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := migratePendingObligationIndex(db); err != nil {
		return err
	}
	return nil
}

// migratePendingObligationIndex keeps a single open obligation per request, customer and serviceman.
// Partial indexes are supported by both postgres and sqlite.
func migratePendingObligationIndex(db *gorm.DB) error {
	const stmt = `CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_obligation_pending
		ON payment_obligations (request_id, customer_id, serviceman_id)
		WHERE status = 'pending'`
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create pending obligation index: %w", err)
	}
	return nil
}
