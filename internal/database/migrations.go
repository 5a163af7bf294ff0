package database

import (
	"database/sql"
	"fmt"
)

// Migrate runs database migrations
func Migrate(db *sql.DB) error {
	// Create accounts table
	accountsSchema := `
    CREATE TABLE IF NOT EXISTS accounts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('ADMIN', 'INSTRUCTOR', 'STUDENT')),
        password_hash TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'LOCKED')),
        failed_attempts INTEGER NOT NULL DEFAULT 0 CHECK (failed_attempts >= 0),
        last_login DATETIME,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts(role);
    CREATE INDEX IF NOT EXISTS idx_accounts_status ON accounts(status);
    `

	if _, err := db.Exec(accountsSchema); err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}

	// Create catalog tables
	catalogSchema := `
    CREATE TABLE IF NOT EXISTS courses (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        code TEXT UNIQUE NOT NULL,
        title TEXT NOT NULL,
        credits INTEGER NOT NULL CHECK (credits > 0)
    );

    CREATE TABLE IF NOT EXISTS sections (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        course_id INTEGER NOT NULL,
        instructor_id INTEGER NOT NULL,
        day_of_week TEXT NOT NULL,
        start_time TEXT NOT NULL,
        end_time TEXT NOT NULL,
        room TEXT NOT NULL,
        capacity INTEGER NOT NULL CHECK (capacity > 0),
        semester TEXT NOT NULL,
        year INTEGER NOT NULL,
        registration_deadline DATETIME,
        drop_deadline DATETIME,
        FOREIGN KEY (course_id) REFERENCES courses(id),
        FOREIGN KEY (instructor_id) REFERENCES accounts(id)
    );

    CREATE INDEX IF NOT EXISTS idx_sections_course ON sections(course_id);
    CREATE INDEX IF NOT EXISTS idx_sections_instructor ON sections(instructor_id);
    CREATE INDEX IF NOT EXISTS idx_sections_term ON sections(semester, year);
    `

	if _, err := db.Exec(catalogSchema); err != nil {
		return fmt.Errorf("failed to create catalog tables: %w", err)
	}

	// Create enrollments table; rows are flipped, never deleted
	enrollmentsSchema := `
    CREATE TABLE IF NOT EXISTS enrollments (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        student_id INTEGER NOT NULL,
        section_id INTEGER NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('ENROLLED', 'DROPPED')),
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        UNIQUE (student_id, section_id),
        FOREIGN KEY (student_id) REFERENCES accounts(id),
        FOREIGN KEY (section_id) REFERENCES sections(id)
    );

    CREATE INDEX IF NOT EXISTS idx_enrollments_section_status ON enrollments(section_id, status);
    CREATE INDEX IF NOT EXISTS idx_enrollments_student ON enrollments(student_id);
    `

	if _, err := db.Exec(enrollmentsSchema); err != nil {
		return fmt.Errorf("failed to create enrollments table: %w", err)
	}

	// Create grades table
	gradesSchema := `
    CREATE TABLE IF NOT EXISTS grades (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        enrollment_id INTEGER NOT NULL,
        component TEXT NOT NULL CHECK (component IN ('QUIZ', 'MIDTERM', 'ENDSEM', 'FINAL')),
        score REAL NOT NULL,
        letter TEXT,
        updated_at DATETIME NOT NULL,
        UNIQUE (enrollment_id, component),
        FOREIGN KEY (enrollment_id) REFERENCES enrollments(id)
    );
    `

	if _, err := db.Exec(gradesSchema); err != nil {
		return fmt.Errorf("failed to create grades table: %w", err)
	}

	// Create settings table for maintenance flag and deadlines
	settingsSchema := `
    CREATE TABLE IF NOT EXISTS settings (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at DATETIME NOT NULL
    );
    `

	if _, err := db.Exec(settingsSchema); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}

	return nil
}
