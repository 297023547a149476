// Package localstore keeps local tasks in a SQLite database.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"tasksync/internal/service"
)

// timeLayout is fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB implements service.LocalStore on SQLite.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open task database: %w", err)
	}
	// One writer; SQLite serialises anyway and this avoids SQLITE_BUSY between our own connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open task database: %w", err)
	}

	d := &DB{db: db, now: time.Now}
	if err := d.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise task database: %w", err)
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) initTables() error {
	_, err := d.db.Exec(`
        CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            priority TEXT NOT NULL DEFAULT 'none',
            completed INTEGER NOT NULL DEFAULT 0,
            due_date TEXT NOT NULL DEFAULT '',
            due_time TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	// list_id was added after the first schema; add it to older databases.
	var hasListColumn bool
	err = d.db.QueryRow(`
        SELECT COUNT(*) > 0
        FROM pragma_table_info('tasks')
        WHERE name = 'list_id'
    `).Scan(&hasListColumn)
	if err != nil {
		return err
	}

	if !hasListColumn {
		_, err = d.db.Exec(`
            ALTER TABLE tasks
            ADD COLUMN list_id TEXT NOT NULL DEFAULT ''
        `)
		if err != nil {
			return err
		}
	}
	return nil
}

const selectColumns = `id, list_id, title, notes, priority, completed, due_date, due_time, created_at, updated_at`

// ListAll implements service.LocalStore.
func (d *DB) ListAll(ctx context.Context) ([]service.Task, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT `+selectColumns+`
        FROM tasks
        ORDER BY created_at, rowid
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []service.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Get implements service.LocalStore.
func (d *DB) Get(ctx context.Context, id string) (service.Task, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return service.Task{}, service.ErrNotFound
	}
	return task, err
}

// Create implements service.LocalStore.
func (d *DB) Create(ctx context.Context, fields service.TaskFields) (service.Task, error) {
	fields, err := validate(fields)
	if err != nil {
		return service.Task{}, err
	}

	now := d.now().UTC()
	task := service.Task{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	apply(&task, fields)

	_, err = d.db.ExecContext(ctx, `
        INSERT INTO tasks (id, list_id, title, notes, priority, completed, due_date, due_time, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, task.ID, task.ListID, task.Title, task.Notes, string(task.Priority), task.Completed,
		task.DueDate, task.DueTime, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return service.Task{}, err
	}
	return task, nil
}

// Update implements service.LocalStore.
func (d *DB) Update(ctx context.Context, id string, fields service.TaskFields) (service.Task, error) {
	fields, err := validate(fields)
	if err != nil {
		return service.Task{}, err
	}

	now := d.now().UTC()
	res, err := d.db.ExecContext(ctx, `
        UPDATE tasks
        SET list_id = ?, title = ?, notes = ?, priority = ?, completed = ?, due_date = ?, due_time = ?, updated_at = ?
        WHERE id = ?
    `, fields.ListID, fields.Title, fields.Notes, string(fields.Priority), fields.Completed,
		fields.DueDate, fields.DueTime, now.Format(timeLayout), id)
	if err != nil {
		return service.Task{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return service.Task{}, service.ErrNotFound
	}
	return d.Get(ctx, id)
}

// Delete implements service.LocalStore.
func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return service.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTask reads one row into a typed record, rejecting values the schema allows but the model does not.
func scanTask(s scanner) (service.Task, error) {
	var (
		task             service.Task
		priority         string
		created, updated string
	)
	err := s.Scan(&task.ID, &task.ListID, &task.Title, &task.Notes, &priority, &task.Completed,
		&task.DueDate, &task.DueTime, &created, &updated)
	if err != nil {
		return service.Task{}, err
	}

	if task.Priority, err = service.ParsePriority(priority); err != nil {
		return service.Task{}, fmt.Errorf("task %s: %w", task.ID, err)
	}
	if task.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return service.Task{}, fmt.Errorf("task %s: invalid created_at: %w", task.ID, err)
	}
	if task.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return service.Task{}, fmt.Errorf("task %s: invalid updated_at: %w", task.ID, err)
	}
	return task, nil
}

// validate normalises fields before they reach the database.
func validate(f service.TaskFields) (service.TaskFields, error) {
	p, err := service.ParsePriority(string(f.Priority))
	if err != nil {
		return f, err
	}
	f.Priority = p

	if f.DueDate != "" {
		if _, err := time.Parse("2006-01-02", f.DueDate); err != nil {
			return f, fmt.Errorf("invalid due date: %s", f.DueDate)
		}
	}
	if f.DueTime != "" {
		if f.DueDate == "" {
			return f, errors.New("due time requires a due date")
		}
		if _, err := time.Parse("15:04", f.DueTime); err != nil {
			return f, fmt.Errorf("invalid due time: %s", f.DueTime)
		}
	}
	return f, nil
}

func apply(t *service.Task, f service.TaskFields) {
	t.ListID = f.ListID
	t.Title = f.Title
	t.Notes = f.Notes
	t.Priority = f.Priority
	t.Completed = f.Completed
	t.DueDate = f.DueDate
	t.DueTime = f.DueTime
}
