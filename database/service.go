package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snapshot-server/models"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("snapshot not found")

// ErrAmbiguousCode is returned when a code prefix matches more than one
// snapshot. Callers surface this instead of silently picking a record.
var ErrAmbiguousCode = errors.New("debug code matches multiple snapshots")

const logColumns = `uuid, requester, plugin_name, plugin_version, server_port,
	server_version, server_software, server_online_mode, extra, ts`

// LogsService handles all server_logs database operations
type LogsService struct {
	db *sql.DB
}

func NewLogsService(db *sql.DB) *LogsService {
	return &LogsService{db: db}
}

// SaveLog persists an uploaded snapshot. The UUID and creation timestamp
// are assigned here, exactly once.
func (s *LogsService) SaveLog(ctx context.Context, req *models.UploadRequest) (*models.ServerLog, error) {
	entry := &models.ServerLog{
		UUID:           uuid.NewString(),
		Requester:      req.Requester,
		PluginName:     req.PluginName,
		PluginVersion:  req.PluginVersion,
		ServerPort:     req.ServerPort,
		ServerVersion:  req.ServerVersion,
		ServerSoftware: req.ServerSoftware,
		Extra:          req.Extra,
		Timestamp:      time.Now().UTC(),
	}
	if req.ServerOnlineMode != nil {
		entry.ServerOnlineMode = *req.ServerOnlineMode
	}

	var extra any
	if len(entry.Extra) > 0 {
		extra = string(entry.Extra)
	}

	_, err := s.db.ExecContext(ctx, `INSERT
		INTO server_logs (uuid, requester, plugin_name, plugin_version, server_port,
			server_version, server_software, server_online_mode, extra, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UUID, entry.Requester, entry.PluginName, entry.PluginVersion, entry.ServerPort,
		entry.ServerVersion, entry.ServerSoftware, entry.ServerOnlineMode, extra, entry.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to insert server log: %w", err)
	}

	return entry, nil
}

// FindByCodePrefix finds the unique snapshot whose dashless UUID starts
// with the given six-character prefix, case-insensitively. Returns
// ErrNotFound on zero matches and ErrAmbiguousCode on more than one.
func (s *LogsService) FindByCodePrefix(ctx context.Context, prefix string) (*models.ServerLog, error) {
	// Stored UUIDs carry dashes; submitted codes do not.
	query := fmt.Sprintf(`SELECT %s FROM server_logs
		WHERE LOWER(SUBSTRING(REPLACE(uuid, '-', ''), 1, 6)) = LOWER(?)`, logColumns)

	rows, err := s.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query server log by prefix: %w", err)
	}
	defer rows.Close()

	var entry *models.ServerLog
	for rows.Next() {
		if entry != nil {
			return nil, ErrAmbiguousCode
		}
		entry = &models.ServerLog{}
		var extra sql.NullString
		if err := rows.Scan(
			&entry.UUID,
			&entry.Requester,
			&entry.PluginName,
			&entry.PluginVersion,
			&entry.ServerPort,
			&entry.ServerVersion,
			&entry.ServerSoftware,
			&entry.ServerOnlineMode,
			&extra,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan server log: %w", err)
		}
		if extra.Valid {
			entry.Extra = json.RawMessage(extra.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating server logs: %w", err)
	}
	if entry == nil {
		return nil, ErrNotFound
	}

	return entry, nil
}

// DeleteOlderThan removes snapshots created before cutoff and returns the
// number of rows deleted.
func (s *LogsService) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM server_logs WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old server logs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		log.Warnf("Could not read deleted row count: %v", err)
		return 0, nil
	}
	return deleted, nil
}
