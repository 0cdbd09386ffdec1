package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"nasmon/internal/models"
)

// PostgresAlertStore keeps one row per live alert in the alerts table.
type PostgresAlertStore struct {
	db *sql.DB
}

func NewPostgresAlertStore(db *sql.DB) *PostgresAlertStore {
	return &PostgresAlertStore{db: db}
}

func (s *PostgresAlertStore) LoadAll(ctx context.Context) ([]models.Alert, error) {
	query := `SELECT uuid, node, source, klass, "key", datetime, last_occurrence, text, args, dismissed
		FROM alerts ORDER BY datetime`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var alert models.Alert
		var argsJSON []byte

		err := rows.Scan(
			&alert.UUID,
			&alert.Node,
			&alert.Source,
			&alert.Class,
			&alert.Key,
			&alert.Datetime,
			&alert.LastOccurrence,
			&alert.Text,
			&argsJSON,
			&alert.Dismissed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}

		if err := json.Unmarshal(argsJSON, &alert.Args); err != nil {
			alert.Args = make(map[string]interface{})
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return alerts, nil
}

// ReplaceAll rewrites the alerts table wholesale in one transaction.
func (s *PostgresAlertStore) ReplaceAll(ctx context.Context, alerts []models.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}

	for _, alert := range alerts {
		if err := insertAlert(ctx, tx, alert); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresAlertStore) Insert(ctx context.Context, alert models.Alert) error {
	return insertAlert(ctx, s.db, alert)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertAlert(ctx context.Context, db execer, alert models.Alert) error {
	argsJSON, err := json.Marshal(alert.Args)
	if err != nil {
		return fmt.Errorf("failed to marshal alert args: %w", err)
	}

	query := `INSERT INTO alerts (
		uuid, node, source, klass, "key", datetime, last_occurrence, text, args, dismissed
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = db.ExecContext(ctx, query,
		alert.UUID,
		alert.Node,
		alert.Source,
		alert.Class,
		alert.Key,
		alert.Datetime,
		alert.LastOccurrence,
		alert.Text,
		argsJSON,
		alert.Dismissed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert %s: %w", alert.UUID, err)
	}

	return nil
}

// PostgresServiceStore persists configured alert services.
type PostgresServiceStore struct {
	db *sql.DB
}

func NewPostgresServiceStore(db *sql.DB) *PostgresServiceStore {
	return &PostgresServiceStore{db: db}
}

func (s *PostgresServiceStore) List(ctx context.Context) ([]models.AlertService, error) {
	query := `SELECT id, name, type, attributes, enabled, level FROM alert_services ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert services: %w", err)
	}
	defer rows.Close()

	var services []models.AlertService
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *svc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return services, nil
}

func (s *PostgresServiceStore) Get(ctx context.Context, id int64) (*models.AlertService, error) {
	query := `SELECT id, name, type, attributes, enabled, level FROM alert_services WHERE id=$1`

	svc, err := scanService(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, fmt.Errorf("alert service %d not found", id)
	}
	return svc, nil
}

func (s *PostgresServiceStore) Create(ctx context.Context, svc models.AlertService) (models.AlertService, error) {
	attrsJSON, err := json.Marshal(svc.Attributes)
	if err != nil {
		return svc, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `INSERT INTO alert_services (name, type, attributes, enabled, level)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err = s.db.QueryRowContext(ctx, query,
		svc.Name, svc.Type, attrsJSON, svc.Enabled, svc.Level.String(),
	).Scan(&svc.ID)
	if err != nil {
		return svc, fmt.Errorf("failed to insert alert service: %w", err)
	}

	return svc, nil
}

func (s *PostgresServiceStore) Update(ctx context.Context, svc models.AlertService) error {
	attrsJSON, err := json.Marshal(svc.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `UPDATE alert_services
		SET name=$2, type=$3, attributes=$4, enabled=$5, level=$6
		WHERE id=$1`

	result, err := s.db.ExecContext(ctx, query,
		svc.ID, svc.Name, svc.Type, attrsJSON, svc.Enabled, svc.Level.String())
	if err != nil {
		return fmt.Errorf("failed to update alert service: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alert service %d not found", svc.ID)
	}

	return nil
}

func (s *PostgresServiceStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alert_services WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert service: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alert service %d not found", id)
	}
	return nil
}

func scanService(row interface {
	Scan(dest ...interface{}) error
}) (*models.AlertService, error) {
	var svc models.AlertService
	var attrsJSON []byte
	var levelName string

	err := row.Scan(&svc.ID, &svc.Name, &svc.Type, &attrsJSON, &svc.Enabled, &levelName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert service: %w", err)
	}

	if err := json.Unmarshal(attrsJSON, &svc.Attributes); err != nil {
		svc.Attributes = make(map[string]interface{})
	}
	if level, err := models.ParseLevel(levelName); err == nil {
		svc.Level = level
	}

	return &svc, nil
}

// PostgresClassConfigStore persists per-class overrides.
type PostgresClassConfigStore struct {
	db *sql.DB
}

func NewPostgresClassConfigStore(db *sql.DB) *PostgresClassConfigStore {
	return &PostgresClassConfigStore{db: db}
}

func (s *PostgresClassConfigStore) All(ctx context.Context) (map[string]models.ClassConfig, error) {
	query := `SELECT klass, level, policy, proactive_support FROM alert_class_configs`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query class configs: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]models.ClassConfig)
	for rows.Next() {
		var cfg models.ClassConfig
		var levelName, policy sql.NullString
		var proactive sql.NullBool

		if err := rows.Scan(&cfg.Class, &levelName, &policy, &proactive); err != nil {
			return nil, fmt.Errorf("failed to scan class config: %w", err)
		}

		if levelName.Valid {
			if level, err := models.ParseLevel(levelName.String); err == nil {
				cfg.Level = &level
			}
		}
		if policy.Valid {
			cfg.Policy = policy.String
		}
		if proactive.Valid {
			value := proactive.Bool
			cfg.ProactiveSupport = &value
		}

		configs[cfg.Class] = cfg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return configs, nil
}

func (s *PostgresClassConfigStore) Upsert(ctx context.Context, cfg models.ClassConfig) error {
	var levelName, policy sql.NullString
	var proactive sql.NullBool

	if cfg.Level != nil {
		levelName = sql.NullString{String: cfg.Level.String(), Valid: true}
	}
	if cfg.Policy != "" {
		policy = sql.NullString{String: cfg.Policy, Valid: true}
	}
	if cfg.ProactiveSupport != nil {
		proactive = sql.NullBool{Bool: *cfg.ProactiveSupport, Valid: true}
	}

	query := `INSERT INTO alert_class_configs (klass, level, policy, proactive_support)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (klass) DO UPDATE
		SET level=EXCLUDED.level, policy=EXCLUDED.policy, proactive_support=EXCLUDED.proactive_support`

	if _, err := s.db.ExecContext(ctx, query, cfg.Class, levelName, policy, proactive); err != nil {
		return fmt.Errorf("failed to upsert class config: %w", err)
	}

	return nil
}

// PostgresHealthChecker implements health checking
type PostgresHealthChecker struct {
	db *sql.DB
}

func NewPostgresHealthChecker(db *sql.DB) *PostgresHealthChecker {
	return &PostgresHealthChecker{db: db}
}

func (h *PostgresHealthChecker) CheckHealth() error {
	return h.db.Ping()
}
