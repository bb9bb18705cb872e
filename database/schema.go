package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// InitSchema creates the necessary database tables if they don't exist
func InitSchema(db *sql.DB) error {
	log.Info("Initializing snapshot-server database schema...")

	serverLogsTableSQL := `
	CREATE TABLE IF NOT EXISTS server_logs(
		uuid CHAR(36) NOT NULL,
		requester VARCHAR(255) NOT NULL,
		plugin_name VARCHAR(100) NOT NULL,
		plugin_version VARCHAR(50) NOT NULL,
		server_port INT NOT NULL,
		server_version VARCHAR(50) NOT NULL,
		server_software VARCHAR(100) NOT NULL,
		server_online_mode BOOL NOT NULL,
		extra JSON,
		ts TIMESTAMP NOT NULL,
		PRIMARY KEY (uuid),
		INDEX ts_index (ts),
		INDEX plugin_index (plugin_name)
	)`

	if _, err := db.Exec(serverLogsTableSQL); err != nil {
		return fmt.Errorf("failed to create server_logs table: %w", err)
	}
	log.Info("Server_logs table created/verified")

	return nil
}
