package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	walletsUserIDKey = "wallets_user_id_key"
	walletsCodeKey   = "wallets_code_key"
)

const walletColumns = `id, user_id, user_name, user_image, code, balance, currency, status, contacts, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet. created_at and updated_at are filled from the database.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, user_name, user_image, code, balance, currency, status, contacts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '[]'::jsonb)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		w.ID, w.UserID, w.UserName, w.UserImage, w.Code,
		w.Balance, w.Currency, w.Status,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if name, ok := uniqueConstraint(err); ok {
			switch name {
			case walletsUserIDKey:
				return domain.ErrWalletExists
			case walletsCodeKey:
				return domain.ErrCodeTaken
			}
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	if w.Contacts == nil {
		w.Contacts = []domain.ContactRef{}
	}
	return nil
}

// GetByID fetches a wallet by its UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByUserID fetches the wallet owned by userID.
func (r *WalletRepo) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by user id: %w", err)
	}
	return w, nil
}

// GetByCode fetches a wallet by its shareable code (exact, case-sensitive).
func (r *WalletRepo) GetByCode(ctx context.Context, code string) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE code = $1`, code))
	if err != nil {
		return nil, fmt.Errorf("get wallet by code: %w", err)
	}
	return w, nil
}

// CodeExists reports whether any wallet already uses code.
func (r *WalletRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wallet code: %w", err)
	}
	return exists, nil
}

// Search matches query as a literal, case-insensitive substring of user_name or code.
func (r *WalletRepo) Search(ctx context.Context, query string, limit int) ([]domain.WalletSummary, error) {
	sql := `SELECT id, code, user_id, user_name, user_image, status
		FROM wallets
		WHERE user_name ILIKE $1 ESCAPE '\' OR code ILIKE $1 ESCAPE '\'
		ORDER BY user_name, code
		LIMIT $2`

	rows, err := r.pool.Query(ctx, sql, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search wallets: %w", err)
	}
	defer rows.Close()

	results := make([]domain.WalletSummary, 0)
	for rows.Next() {
		var s domain.WalletSummary
		if err := rows.Scan(&s.WalletID, &s.Code, &s.UserID, &s.UserName, &s.UserImage, &s.Status); err != nil {
			return nil, fmt.Errorf("scan wallet summary: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet summaries: %w", err)
	}
	return results, nil
}

// AdjustBalance applies a credit or debit as one conditional UPDATE inside tx.
// A debit only matches while balance >= amount, so concurrent debits cannot both
// pass a stale check. Returns nil, nil when no row matched.
func (r *WalletRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, dir domain.Direction, amount int64) (*domain.Wallet, error) {
	var query string
	switch dir {
	case domain.DirectionCredit:
		query = `UPDATE wallets SET balance = balance + $2, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + walletColumns
	case domain.DirectionDebit:
		query = `UPDATE wallets SET balance = balance - $2, updated_at = NOW()
			WHERE id = $1 AND balance >= $2
			RETURNING ` + walletColumns
	default:
		return nil, fmt.Errorf("unknown direction %q", dir)
	}

	w, err := scanWallet(tx.QueryRow(ctx, query, id, amount))
	if err != nil {
		return nil, fmt.Errorf("adjust wallet balance: %w", err)
	}
	return w, nil
}

// UpdateStatus sets the wallet status. Returns nil, nil when the wallet does not exist.
func (r *WalletRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error) {
	query := `UPDATE wallets SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		return nil, fmt.Errorf("update wallet status: %w", err)
	}
	return w, nil
}

// AddContact appends ref unless a contact with the same code exists. The containment
// check and the append are one statement. Returns nil, nil when nothing was updated.
func (r *WalletRepo) AddContact(ctx context.Context, id uuid.UUID, ref domain.ContactRef) (*domain.Wallet, error) {
	entry, err := json.Marshal([]domain.ContactRef{ref})
	if err != nil {
		return nil, fmt.Errorf("marshal contact: %w", err)
	}
	probe, err := codeProbe(ref.Code)
	if err != nil {
		return nil, err
	}

	query := `UPDATE wallets SET contacts = contacts || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND NOT contacts @> $3::jsonb
		RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id, string(entry), probe))
	if err != nil {
		return nil, fmt.Errorf("add wallet contact: %w", err)
	}
	return w, nil
}

// RemoveContact filters the contact with code out of the list, preserving order.
// Returns nil, nil when the wallet is missing or code is not a contact.
func (r *WalletRepo) RemoveContact(ctx context.Context, id uuid.UUID, code string) (*domain.Wallet, error) {
	probe, err := codeProbe(code)
	if err != nil {
		return nil, err
	}

	query := `UPDATE wallets SET contacts = COALESCE((
			SELECT jsonb_agg(e.c ORDER BY e.i)
			FROM jsonb_array_elements(contacts) WITH ORDINALITY AS e(c, i)
			WHERE e.c->>'code' <> $2
		), '[]'::jsonb), updated_at = NOW()
		WHERE id = $1 AND contacts @> $3::jsonb
		RETURNING ` + walletColumns

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id, code, probe))
	if err != nil {
		return nil, fmt.Errorf("remove wallet contact: %w", err)
	}
	return w, nil
}

// scanWallet reads one wallet row. pgx.ErrNoRows becomes nil, nil.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	var contacts []byte
	err := row.Scan(
		&w.ID, &w.UserID, &w.UserName, &w.UserImage, &w.Code,
		&w.Balance, &w.Currency, &w.Status, &contacts,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.Contacts = []domain.ContactRef{}
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &w.Contacts); err != nil {
			return nil, fmt.Errorf("decode contacts: %w", err)
		}
	}
	return w, nil
}

// codeProbe builds the jsonb containment operand matching any contact with code.
func codeProbe(code string) (string, error) {
	b, err := json.Marshal([]map[string]string{{"code": code}})
	if err != nil {
		return "", fmt.Errorf("marshal contact probe: %w", err)
	}
	return string(b), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
