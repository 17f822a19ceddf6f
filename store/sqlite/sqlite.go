/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.AdmissionStore and ledger.AuditLog on SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

AGGREGATE PERSISTENCE:
  An admission is saved as one row in `admissions` plus its child rows in
  `installments`. Save runs in a single SQL transaction:

    1. UPDATE admissions ... WHERE id = ? AND version = ?   (version CAS)
    2. DELETE FROM installments WHERE admission_id = ?
    3. INSERT the current schedule rows

  A failed compare-and-swap rolls back and surfaces
  ledger.ErrConcurrentModification - that is the per-record serialization
  guarantee: two interleaved mutations on the same admission cannot both
  commit.

MONEY:
  Stored as INTEGER minor units, never floating point.

LINEAGE:
  Stored as discrete columns (kind, ref, amount), not encoded into a text
  remark. The display string is derived at the edge.

AUDIT LOG:
  Append-only. No UPDATE or DELETE statements exist for audit_log.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/fees.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/fee-ledger/ledger"
)

// Store implements ledger.AdmissionStore and ledger.AuditLog on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a SQLite database. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and lets
	// SQLite serialize writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS admissions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		total_fees INTEGER NOT NULL,
		down_payment INTEGER NOT NULL,
		down_payment_status TEXT NOT NULL,
		down_payment_paid INTEGER NOT NULL DEFAULT 0,
		down_payment_paid_date TEXT,
		down_payment_method TEXT,
		number_of_installments INTEGER NOT NULL,
		installment_amount INTEGER NOT NULL,
		total_paid INTEGER NOT NULL DEFAULT 0,
		paid_adjustment INTEGER NOT NULL DEFAULT 0,
		remaining INTEGER NOT NULL DEFAULT 0,
		payment_status TEXT NOT NULL,
		carry_forward INTEGER NOT NULL DEFAULT 0,
		marked_for_carry_forward BOOLEAN NOT NULL DEFAULT FALSE,
		policy_json TEXT NOT NULL,
		audit_json TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_admissions_payment_status
		ON admissions(payment_status);
	CREATE INDEX IF NOT EXISTS idx_admissions_created
		ON admissions(created_at);

	CREATE TABLE IF NOT EXISTS installments (
		admission_id TEXT NOT NULL REFERENCES admissions(id),
		number INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		amount INTEGER NOT NULL,
		paid_amount INTEGER NOT NULL DEFAULT 0,
		paid_date TEXT,
		status TEXT NOT NULL,
		method TEXT,
		lineage_kind TEXT,
		lineage_ref INTEGER,
		lineage_amount INTEGER,
		PRIMARY KEY (admission_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_status
		ON installments(status);
	CREATE INDEX IF NOT EXISTS idx_installments_due
		ON installments(due_date);

	-- Append-only: corrections are recorded, never edited.
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		admission_id TEXT NOT NULL,
		at TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_admission
		ON audit_log(admission_id, at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ADMISSION STORE (ledger.AdmissionStore interface)
// =============================================================================

func (s *Store) Create(ctx context.Context, adm *ledger.Admission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	policyJSON, err := json.Marshal(adm.Policy)
	if err != nil {
		return err
	}
	auditJSON, err := json.Marshal(adm.Audit)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO admissions
		(id, status, total_fees, down_payment, down_payment_status,
		 down_payment_paid, down_payment_paid_date, down_payment_method,
		 number_of_installments, installment_amount, total_paid,
		 paid_adjustment, remaining, payment_status, carry_forward,
		 marked_for_carry_forward, policy_json, audit_json, version,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		adm.ID,
		adm.Status,
		adm.TotalFees.Minor(),
		adm.DownPayment.Amount.Minor(),
		adm.DownPayment.Status,
		adm.DownPayment.PaidAmount.Minor(),
		nullTime(adm.DownPayment.PaidDate),
		nullString(string(adm.DownPayment.Method)),
		adm.NumberOfInstallments,
		adm.InstallmentAmount.Minor(),
		adm.TotalPaid.Minor(),
		adm.PaidAdjustment.Minor(),
		adm.Remaining.Minor(),
		adm.PaymentStatus,
		adm.CarryForwardBalance.Minor(),
		adm.MarkedForCarryForward,
		string(policyJSON),
		string(auditJSON),
		adm.Version,
		adm.CreatedAt.UTC().Format(time.RFC3339),
		adm.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.InvalidArgumentError{Field: "id", Reason: "admission already exists"}
		}
		return fmt.Errorf("failed to insert admission: %w", err)
	}

	if err := insertInstallments(ctx, tx, adm); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, id ledger.AdmissionID) (*ledger.Admission, error) {
	row := s.db.QueryRowContext(ctx, admissionSelect+` WHERE id = ?`, id)
	adm, err := scanAdmission(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrAdmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadInstallments(ctx, adm); err != nil {
		return nil, err
	}
	return adm, nil
}

func (s *Store) List(ctx context.Context) ([]*ledger.Admission, error) {
	rows, err := s.db.QueryContext(ctx, admissionSelect+` ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ledger.Admission
	for rows.Next() {
		adm, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, adm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, adm := range result {
		if err := s.loadInstallments(ctx, adm); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) Save(ctx context.Context, adm *ledger.Admission, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	policyJSON, err := json.Marshal(adm.Policy)
	if err != nil {
		return err
	}
	auditJSON, err := json.Marshal(adm.Audit)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE admissions SET
			status = ?,
			total_fees = ?,
			down_payment = ?,
			down_payment_status = ?,
			down_payment_paid = ?,
			down_payment_paid_date = ?,
			down_payment_method = ?,
			number_of_installments = ?,
			installment_amount = ?,
			total_paid = ?,
			paid_adjustment = ?,
			remaining = ?,
			payment_status = ?,
			carry_forward = ?,
			marked_for_carry_forward = ?,
			policy_json = ?,
			audit_json = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?`,
		adm.Status,
		adm.TotalFees.Minor(),
		adm.DownPayment.Amount.Minor(),
		adm.DownPayment.Status,
		adm.DownPayment.PaidAmount.Minor(),
		nullTime(adm.DownPayment.PaidDate),
		nullString(string(adm.DownPayment.Method)),
		adm.NumberOfInstallments,
		adm.InstallmentAmount.Minor(),
		adm.TotalPaid.Minor(),
		adm.PaidAdjustment.Minor(),
		adm.Remaining.Minor(),
		adm.PaymentStatus,
		adm.CarryForwardBalance.Minor(),
		adm.MarkedForCarryForward,
		string(policyJSON),
		string(auditJSON),
		adm.UpdatedAt.UTC().Format(time.RFC3339),
		adm.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update admission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the record is gone or someone else committed first.
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM admissions WHERE id = ?`, adm.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ledger.ErrAdmissionNotFound
		}
		return ledger.ErrConcurrentModification
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE admission_id = ?`, adm.ID); err != nil {
		return fmt.Errorf("failed to clear installments: %w", err)
	}
	if err := insertInstallments(ctx, tx, adm); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// AUDIT LOG (ledger.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry ledger.AuditEntry) error {
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, admission_id, at, actor, action, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Admission,
		entry.At.UTC().Format(time.RFC3339),
		entry.Actor,
		entry.Action,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) AuditByAdmission(ctx context.Context, id ledger.AdmissionID) ([]ledger.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admission_id, at, actor, action, payload_json
		FROM audit_log WHERE admission_id = ? ORDER BY at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.AuditEntry
	for rows.Next() {
		var e ledger.AuditEntry
		var at, payloadJSON string
		if err := rows.Scan(&e.ID, &e.Admission, &at, &e.Actor, &e.Action, &payloadJSON); err != nil {
			return nil, err
		}
		e.At, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, err
		}
		if payloadJSON != "" {
			if err := json.Unmarshal([]byte(payloadJSON), &e.Payload); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// ROW MAPPING
// =============================================================================

const admissionSelect = `
	SELECT id, status, total_fees, down_payment, down_payment_status,
	       down_payment_paid, down_payment_paid_date, down_payment_method,
	       number_of_installments, installment_amount, total_paid,
	       paid_adjustment, remaining, payment_status, carry_forward,
	       marked_for_carry_forward, policy_json, audit_json, version,
	       created_at, updated_at
	FROM admissions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdmission(row rowScanner) (*ledger.Admission, error) {
	var (
		adm                              ledger.Admission
		totalFees, downPayment, downPaid int64
		installmentAmount, totalPaid     int64
		paidAdjustment, remaining, carry int64
		downPaidDate, downMethod         sql.NullString
		policyJSON                       string
		auditJSON                        sql.NullString
		createdAt, updatedAt             string
	)
	err := row.Scan(
		&adm.ID,
		&adm.Status,
		&totalFees,
		&downPayment,
		&adm.DownPayment.Status,
		&downPaid,
		&downPaidDate,
		&downMethod,
		&adm.NumberOfInstallments,
		&installmentAmount,
		&totalPaid,
		&paidAdjustment,
		&remaining,
		&adm.PaymentStatus,
		&carry,
		&adm.MarkedForCarryForward,
		&policyJSON,
		&auditJSON,
		&adm.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	adm.TotalFees = ledger.NewMoney(totalFees)
	adm.DownPayment.Amount = ledger.NewMoney(downPayment)
	adm.DownPayment.PaidAmount = ledger.NewMoney(downPaid)
	adm.InstallmentAmount = ledger.NewMoney(installmentAmount)
	adm.TotalPaid = ledger.NewMoney(totalPaid)
	adm.PaidAdjustment = ledger.NewMoney(paidAdjustment)
	adm.Remaining = ledger.NewMoney(remaining)
	adm.CarryForwardBalance = ledger.NewMoney(carry)

	if downPaidDate.Valid {
		t, err := time.Parse(time.RFC3339, downPaidDate.String)
		if err != nil {
			return nil, err
		}
		adm.DownPayment.PaidDate = &t
	}
	if downMethod.Valid {
		adm.DownPayment.Method = ledger.PaymentMethod(downMethod.String)
	}
	if err := json.Unmarshal([]byte(policyJSON), &adm.Policy); err != nil {
		return nil, fmt.Errorf("corrupt policy for admission %s: %w", adm.ID, err)
	}
	if auditJSON.Valid && auditJSON.String != "" {
		if err := json.Unmarshal([]byte(auditJSON.String), &adm.Audit); err != nil {
			return nil, fmt.Errorf("corrupt audit remarks for admission %s: %w", adm.ID, err)
		}
	}
	if adm.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	if adm.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, err
	}
	return &adm, nil
}

func (s *Store) loadInstallments(ctx context.Context, adm *ledger.Admission) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, due_date, amount, paid_amount, paid_date, status,
		       method, lineage_kind, lineage_ref, lineage_amount
		FROM installments WHERE admission_id = ? ORDER BY number`, adm.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	adm.Installments = nil
	for rows.Next() {
		var (
			inst                      ledger.Installment
			dueDate                   string
			amount, paidAmount        int64
			paidDate, method, lineage sql.NullString
			lineageRef, lineageAmt    sql.NullInt64
		)
		if err := rows.Scan(&inst.Number, &dueDate, &amount, &paidAmount,
			&paidDate, &inst.Status, &method, &lineage, &lineageRef, &lineageAmt); err != nil {
			return err
		}
		inst.Amount = ledger.NewMoney(amount)
		inst.PaidAmount = ledger.NewMoney(paidAmount)
		if inst.DueDate, err = time.Parse(time.RFC3339, dueDate); err != nil {
			return err
		}
		if paidDate.Valid {
			t, err := time.Parse(time.RFC3339, paidDate.String)
			if err != nil {
				return err
			}
			inst.PaidDate = &t
		}
		if method.Valid {
			inst.Method = ledger.PaymentMethod(method.String)
		}
		if lineage.Valid && lineage.String != "" {
			inst.Lineage = ledger.Lineage{
				Kind:   ledger.LineageKind(lineage.String),
				From:   ledger.InstallmentNumber(lineageRef.Int64),
				Amount: ledger.NewMoney(lineageAmt.Int64),
			}
		}
		adm.Installments = append(adm.Installments, inst)
	}
	return rows.Err()
}

func insertInstallments(ctx context.Context, tx *sql.Tx, adm *ledger.Admission) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO installments
		(admission_id, number, due_date, amount, paid_amount, paid_date,
		 status, method, lineage_kind, lineage_ref, lineage_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range adm.Installments {
		inst := &adm.Installments[i]
		var lineageKind, lineageRef, lineageAmt any
		if !inst.Lineage.IsZero() {
			lineageKind = string(inst.Lineage.Kind)
			lineageRef = int64(inst.Lineage.From)
			lineageAmt = inst.Lineage.Amount.Minor()
		}
		_, err := stmt.ExecContext(ctx,
			adm.ID,
			inst.Number,
			inst.DueDate.UTC().Format(time.RFC3339),
			inst.Amount.Minor(),
			inst.PaidAmount.Minor(),
			nullTime(inst.PaidDate),
			inst.Status,
			nullString(string(inst.Method)),
			lineageKind,
			lineageRef,
			lineageAmt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert installment %d: %w", inst.Number, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
