package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/analysis"
	"github.com/taxmitra/taxmitra/internal/conversation"
	"github.com/taxmitra/taxmitra/internal/facts"
	"github.com/taxmitra/taxmitra/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

// Migrate creates/updates every table the service owns.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&conversation.Session{},
		&conversation.Message{},
		&facts.UserProfile{},
		&facts.IncomeSource{},
		&facts.FamilyMember{},
		&facts.Expense{},
		&analysis.TaxAnalysis{},
		&analysis.Recommendation{},
		&analysis.Job{},
	)
}
