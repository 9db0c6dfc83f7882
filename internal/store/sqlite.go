package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/orchestra/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is a durable AgentStore+TaskStore backend for workspaces that
// need Agent/Task records to survive an orchestrator restart. It implements
// the exact same interfaces as the in-memory default (SPEC_FULL.md §4.2);
// callers never see the backend choice.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) a SQLite-backed store at dbPath.
// Use ":memory:" for an ephemeral database useful in tests.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, a models.Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, workspace_id, role, status, parent_id, name, model_tier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id=excluded.workspace_id, role=excluded.role, status=excluded.status,
			parent_id=excluded.parent_id, name=excluded.name, model_tier=excluded.model_tier,
			updated_at=excluded.updated_at`,
		a.ID, a.WorkspaceID, string(a.Role), string(a.Status), a.ParentID, a.Name, string(a.ModelTier),
		a.CreatedAt.Format(time.RFC3339Nano), a.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save agent %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Agent, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, workspace_id, role, status, parent_id, name, model_tier, created_at, updated_at FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return models.Agent{}, false, nil
	}
	if err != nil {
		return models.Agent{}, false, fmt.Errorf("get agent %s: %w", id, err)
	}
	return a, true, nil
}

func (s *SQLiteStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, workspace_id, role, status, parent_id, name, model_tier, created_at, updated_at FROM agents WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status models.AgentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agents SET status = ?, updated_at = ? WHERE id = ?`, string(status), time.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update agent status %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent %s: not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(r rowScanner) (models.Agent, error) {
	var a models.Agent
	var role, status, tier, createdAt, updatedAt string
	if err := r.Scan(&a.ID, &a.WorkspaceID, &role, &status, &a.ParentID, &a.Name, &tier, &createdAt, &updatedAt); err != nil {
		return models.Agent{}, err
	}
	a.Role = models.Role(role)
	a.Status = models.AgentStatus(status)
	a.ModelTier = models.ModelTier(tier)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return a, nil
}

func (s *SQLiteStore) SaveTask(ctx context.Context, t models.Task) error {
	criteria, _ := json.Marshal(t.AcceptanceCriteria)
	verification, _ := json.Marshal(t.VerificationCommands)
	deps, _ := json.Marshal(t.Dependencies)
	var verdict string
	if t.VerificationVerdict != nil {
		verdict = string(*t.VerificationVerdict)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, workspace_id, title, objective, scope, acceptance_criteria, verification_commands,
			status, assigned_to, completion_summary, verification_report, verification_verdict, dependencies,
			parallel_group, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, objective=excluded.objective, scope=excluded.scope,
			acceptance_criteria=excluded.acceptance_criteria, verification_commands=excluded.verification_commands,
			status=excluded.status, assigned_to=excluded.assigned_to, completion_summary=excluded.completion_summary,
			verification_report=excluded.verification_report, verification_verdict=excluded.verification_verdict,
			dependencies=excluded.dependencies, parallel_group=excluded.parallel_group, updated_at=excluded.updated_at`,
		t.ID, t.WorkspaceID, t.Title, t.Objective, t.Scope, string(criteria), string(verification),
		string(t.Status), t.AssignedTo, t.CompletionSummary, t.VerificationReport, verdict, string(deps),
		t.ParallelGroup, t.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (models.Task, bool, error) {
	row := s.db.QueryRowContext(ctx, taskSelectColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return models.Task{}, false, nil
	}
	if err != nil {
		return models.Task{}, false, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, true, nil
}

func (s *SQLiteStore) ListTasksByWorkspace(ctx context.Context, workspaceID string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelectColumns+` FROM tasks WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *SQLiteStore) ListTasksByStatus(ctx context.Context, workspaceID string, status models.TaskStatus) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelectColumns+` FROM tasks WHERE workspace_id = ? AND status = ?`, workspaceID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

const taskSelectColumns = `SELECT id, workspace_id, title, objective, scope, acceptance_criteria, verification_commands,
	status, assigned_to, completion_summary, verification_report, verification_verdict, dependencies,
	parallel_group, updated_at`

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(r rowScanner) (models.Task, error) {
	var t models.Task
	var criteria, verification, deps, status, verdict, updatedAt string
	if err := r.Scan(&t.ID, &t.WorkspaceID, &t.Title, &t.Objective, &t.Scope, &criteria, &verification,
		&status, &t.AssignedTo, &t.CompletionSummary, &t.VerificationReport, &verdict, &deps,
		&t.ParallelGroup, &updatedAt); err != nil {
		return models.Task{}, err
	}
	_ = json.Unmarshal([]byte(criteria), &t.AcceptanceCriteria)
	_ = json.Unmarshal([]byte(verification), &t.VerificationCommands)
	_ = json.Unmarshal([]byte(deps), &t.Dependencies)
	t.Status = models.TaskStatus(status)
	if verdict != "" {
		v := models.Verdict(verdict)
		t.VerificationVerdict = &v
	}
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return t, nil
}

// sqliteTaskStore adapts SQLiteStore's Task* methods to the TaskStore interface.
type sqliteTaskStore struct{ s *SQLiteStore }

// TaskStore returns a TaskStore view of this SQLiteStore.
func (s *SQLiteStore) TaskStore() TaskStore { return sqliteTaskStore{s} }

func (a sqliteTaskStore) Save(ctx context.Context, t models.Task) error { return a.s.SaveTask(ctx, t) }
func (a sqliteTaskStore) Get(ctx context.Context, id string) (models.Task, bool, error) {
	return a.s.GetTask(ctx, id)
}
func (a sqliteTaskStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Task, error) {
	return a.s.ListTasksByWorkspace(ctx, workspaceID)
}
func (a sqliteTaskStore) ListByStatus(ctx context.Context, workspaceID string, status models.TaskStatus) ([]models.Task, error) {
	return a.s.ListTasksByStatus(ctx, workspaceID, status)
}
