package database

import (
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/utils"
	"gorm.io/gorm"
)

// Models lists every table the service migrates, catalog tables included so a
// fresh database is usable in development.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Concession{},
		&models.Item{},
		&models.VariationGroup{},
		&models.VariationOption{},
		&models.Order{},
		&models.OrderDetail{},
		&models.OrderDetailVariation{},
		&models.ReopeningRequest{},
		&models.Notification{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}
