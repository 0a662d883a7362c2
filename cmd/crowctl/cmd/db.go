package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/ratethiscrow/crowapi/internal/config"
	"github.com/ratethiscrow/crowapi/internal/db"
)

func openDB() (*sqlx.DB, string, error) {
	driver, connection := config.Database()

	database, err := db.Init(driver, connection)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	return database, driver, nil
}
