package database

import (
	"todo-chat/config"
	"todo-chat/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) *gorm.DB {
	connectionString := appConfig.DatabaseURL
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}

	if err := db.AutoMigrate(&models.Task{}, &models.Conversation{}, &models.Message{}); err != nil {
		logger.Fatal("failed to migrate database schema", zap.Error(err))
	}

	logger.Info("connected to database")
	return db
}
