package database

import "gorm.io/gorm"

// DB is the shared connection opened by SetupDatabase.
var DB *gorm.DB

// GetDB returns the shared connection. It is nil before SetupDatabase ran.
func GetDB() *gorm.DB {
	return DB
}
