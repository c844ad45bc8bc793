package multisig

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/postgres"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations is the schema of the multisig_transactions table.
func Migrations() *postgres.Migrations {
	return &postgres.Migrations{FS: migrationFS, Dir: "migrations"}
}

const columns = `id, transaction_message, description, status, threshold, hedera_account_id,
	key_list, signed_keys, signatures, network, start_date, created_at`

// PostgresRepository stores transactions in PostgreSQL. Writes go to the
// primary and reads to the replicas through the client's resolver.
type PostgresRepository struct {
	client *postgres.Client
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a repository over client.
func NewPostgresRepository(client *postgres.Client) *PostgresRepository {
	return &PostgresRepository{client: client}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (Transaction, error) {
	var (
		t      Transaction
		status string
	)

	err := row.Scan(
		&t.ID, &t.Message, &t.Description, &status, &t.Threshold, &t.AccountID,
		pq.Array(&t.KeyList), pq.Array(&t.SignedKeys), pq.Array(&t.Signatures),
		&t.Network, &t.StartDate, &t.CreatedAt,
	)
	if err != nil {
		return Transaction{}, err
	}

	t.Status = Status(status)

	return t, nil
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, t Transaction) error {
	db, err := r.client.Resolver(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `INSERT INTO multisig_transactions (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Message, t.Description, string(t.Status), t.Threshold, t.AccountID,
		pq.Array(t.KeyList), pq.Array(t.SignedKeys), pq.Array(t.Signatures),
		t.Network, t.StartDate, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert multisig transaction: %w", err)
	}

	return nil
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	db, err := r.client.Resolver(ctx)
	if err != nil {
		return Transaction{}, err
	}

	t, err := scanTransaction(db.QueryRowContext(ctx, `SELECT `+columns+` FROM multisig_transactions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, constant.ErrNotFound
	}

	if err != nil {
		return Transaction{}, fmt.Errorf("select multisig transaction: %w", err)
	}

	return t, nil
}

// Update implements Repository.
func (r *PostgresRepository) Update(ctx context.Context, t Transaction) error {
	return r.exec(ctx, `UPDATE multisig_transactions
		SET status = $2, signed_keys = $3, signatures = $4 WHERE id = $1`,
		t.ID, string(t.Status), pq.Array(t.SignedKeys), pq.Array(t.Signatures))
}

// UpdateStatus implements Repository.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	return r.exec(ctx, `UPDATE multisig_transactions SET status = $2 WHERE id = $1`, id, string(status))
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM multisig_transactions WHERE id = $1`, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	db, err := r.client.Resolver(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("write multisig transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return constant.ErrNotFound
	}

	return nil
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Transaction, int, error) {
	db, err := r.client.Resolver(ctx)
	if err != nil {
		return nil, 0, err
	}

	var (
		where []string
		args  []any
	)

	if f.PublicKey != "" {
		args = append(args, normalizeKey(f.PublicKey))
		where = append(where, fmt.Sprintf("$%d = ANY(key_list)", len(args)))
	}

	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	if f.Network != "" {
		args = append(args, f.Network)
		where = append(where, fmt.Sprintf("network = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM multisig_transactions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count multisig transactions: %w", err)
	}

	query := `SELECT ` + columns + ` FROM multisig_transactions` + clause + ` ORDER BY created_at, id`

	if f.Limit > 0 {
		args = append(args, f.Limit, (max(f.Page, 1)-1)*f.Limit)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list multisig transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}

		out = append(out, t)
	}

	return out, total, rows.Err()
}
