package main

import (
	"fmt"
	"log"

	"github.com/localnerve/crmsync/internal/database"
	"github.com/localnerve/crmsync/internal/localstore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}

	// Auto-migrate to see what GORM creates for the server tables
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal(err)
	}
	// and for the client store
	if err := db.AutoMigrate(&localstore.LocalEntry{}); err != nil {
		log.Fatal(err)
	}

	// Get the schema
	var tables []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table'").Scan(&tables)

	for _, table := range tables {
		fmt.Printf("\n=== Table: %s ===\n", table)
		var schema string
		db.Raw("SELECT sql FROM sqlite_master WHERE name = ?", table).Scan(&schema)
		fmt.Println(schema)
	}
}
