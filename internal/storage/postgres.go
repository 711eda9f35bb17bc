package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL. Annotations
// are stored as a JSONB column on the document row, so a whole-collection
// replace together with the last-modified bump is a single atomic UPDATE.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(cfg *config.Config, logger *zap.Logger) (Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &PostgresRepository{
		pool:   pool,
		logger: logger,
	}

	if err := repo.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Connected to PostgreSQL database")
	return repo, nil
}

// migrate creates the necessary database tables if they don't exist.
func (r *PostgresRepository) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(256) NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			original_name TEXT NOT NULL,
			file_name TEXT NOT NULL UNIQUE,
			file_path TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			pages INTEGER NOT NULL,
			annotations JSONB NOT NULL DEFAULT '[]',
			uploaded_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			last_modified TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, uploaded_at DESC);
	`

	_, err := r.pool.Exec(ctx, query)
	return err
}

// CreateUser stores a new account.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: email already registered", models.ErrValidation)
		}
		r.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("%w: create user: %v", models.ErrTransport, err)
	}

	r.logger.Info("Created user", zap.String("id", user.ID))
	return user, nil
}

// GetUserByEmail retrieves an account by email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`
	return r.scanUser(ctx, query, email)
}

// GetUserByID retrieves an account by id.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

func (r *PostgresRepository) scanUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Error(err))
		return nil, fmt.Errorf("%w: get user: %v", models.ErrTransport, err)
	}
	return &user, nil
}

// CreateDocument stores a new document record with an empty annotation
// collection.
func (r *PostgresRepository) CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error) {
	now := time.Now().UTC()
	doc.ID = uuid.New().String()
	doc.UploadedAt = now
	doc.LastModified = now
	doc.AnnotationsCount = 0

	query := `
		INSERT INTO documents (id, owner_id, original_name, file_name, file_path, file_size, pages, annotations, uploaded_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '[]', $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		doc.ID,
		doc.OwnerID,
		doc.OriginalName,
		doc.FileName,
		doc.FilePath,
		doc.FileSize,
		doc.Pages,
		doc.UploadedAt,
		doc.LastModified,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.Error(err))
		return nil, fmt.Errorf("%w: create document: %v", models.ErrTransport, err)
	}

	r.logger.Info("Created document",
		zap.String("id", doc.ID),
		zap.String("owner", doc.OwnerID),
		zap.Int("pages", doc.Pages),
	)
	return &doc, nil
}

const documentColumns = `id, owner_id, original_name, file_name, file_path, file_size, pages, jsonb_array_length(annotations), uploaded_at, last_modified`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.OriginalName,
		&doc.FileName,
		&doc.FilePath,
		&doc.FileSize,
		&doc.Pages,
		&doc.AnnotationsCount,
		&doc.UploadedAt,
		&doc.LastModified,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments retrieves the owner's documents, newest upload first.
func (r *PostgresRepository) ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner_id = $1 ORDER BY uploaded_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Error(err))
		return nil, fmt.Errorf("%w: list documents: %v", models.ErrTransport, err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			r.logger.Error("Failed to scan document row", zap.Error(err))
			return nil, fmt.Errorf("%w: scan document: %v", models.ErrTransport, err)
		}
		docs = append(docs, *doc)
	}

	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// GetDocument retrieves one document owned by ownerID.
func (r *PostgresRepository) GetDocument(ctx context.Context, id, ownerID string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND owner_id = $2`
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id, ownerID))
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get document: %v", models.ErrTransport, err)
	}
	return doc, nil
}

// DeleteDocument removes a document; its annotations live on the same
// row and disappear with it.
func (r *PostgresRepository) DeleteDocument(ctx context.Context, id, ownerID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		r.logger.Error("Failed to delete document", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: delete document: %v", models.ErrTransport, err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	r.logger.Info("Deleted document", zap.String("id", id))
	return nil
}

// GetAnnotations retrieves the document's annotation sequence in storage
// order.
func (r *PostgresRepository) GetAnnotations(ctx context.Context, id, ownerID string) ([]models.Annotation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT annotations FROM documents WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get annotations", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get annotations: %v", models.ErrTransport, err)
	}

	var annotations []models.Annotation
	if err := json.Unmarshal(raw, &annotations); err != nil {
		r.logger.Error("Failed to decode stored annotations", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: decode annotations: %v", models.ErrTransport, err)
	}
	if annotations == nil {
		annotations = []models.Annotation{}
	}
	return annotations, nil
}

// ReplaceAnnotations overwrites the whole stored sequence and bumps
// last_modified in the same UPDATE, so both change together or neither
// does. Last writer wins under concurrent saves.
func (r *PostgresRepository) ReplaceAnnotations(ctx context.Context, id, ownerID string, annotations []models.Annotation) (*models.Document, error) {
	doc, err := r.GetDocument(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if err := models.ValidateAll(annotations, doc.Pages); err != nil {
		return nil, err
	}

	if annotations == nil {
		annotations = []models.Annotation{}
	}
	raw, err := json.Marshal(annotations)
	if err != nil {
		return nil, fmt.Errorf("%w: encode annotations: %v", models.ErrTransport, err)
	}

	query := `
		UPDATE documents
		SET annotations = $3, last_modified = $4
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + documentColumns

	updated, err := scanDocument(r.pool.QueryRow(ctx, query, id, ownerID, raw, time.Now().UTC()))
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to replace annotations", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: replace annotations: %v", models.ErrTransport, err)
	}

	r.logger.Info("Replaced annotations",
		zap.String("id", id),
		zap.Int("count", len(annotations)),
	)
	return updated, nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
	r.logger.Info("Closed database connection")
}
