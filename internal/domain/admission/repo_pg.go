package admission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/internal/platform/db"
)

const activePerPatientIndex = "admission_one_active_per_patient"

// checkFields maps admission CHECK constraints to the request field whose
// value violated them.
var checkFields = map[string]string{
	"admission_reason_check":       "reason",
	"admission_rate_per_day_check": "room_charge_per_day",
	"admission_dates_ordered":      "discharge_date",
}

type repoPG struct {
	pool db.Pool
}

func NewRepo(pool db.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, db.ReadWrite, fn)
}

func (r *repoPG) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.ReadSnapshot(ctx, r.pool, fn)
}

const admCols = `a.id, a.patient_id, a.doctor_id, a.admission_date, a.discharge_date, a.reason,
	a.status::text, a.rate_per_day, a.total_charge, a.discharge_notes, a.created_at, a.updated_at`

func (r *repoPG) LockPatient(ctx context.Context, patientID uuid.UUID) error {
	return r.lockRow(ctx, `SELECT id FROM patient WHERE id = $1 FOR UPDATE`, "patient", patientID)
}

func (r *repoPG) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	return r.lockRow(ctx, `SELECT id FROM doctor WHERE id = $1 FOR SHARE`, "doctor", doctorID)
}

func (r *repoPG) lockRow(ctx context.Context, sql, resource string, id uuid.UUID) error {
	var got uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, sql, id).Scan(&got)
	if db.IsNoRows(err) {
		return apperr.NotFound(resource, id.String())
	}
	if err != nil {
		return apperr.Store("lock "+resource, err)
	}
	return nil
}

func (r *repoPG) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctor WHERE id = $1)`, doctorID).Scan(&ok)
	if err != nil {
		return false, apperr.Store("check doctor", err)
	}
	return ok, nil
}

func (r *repoPG) HasActiveAdmission(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admission WHERE patient_id = $1 AND status = 'Admitted')`,
		patientID).Scan(&ok)
	if err != nil {
		return false, apperr.Store("check active admission", err)
	}
	return ok, nil
}

func (r *repoPG) CountActiveAdmissions(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM admission WHERE doctor_id = $1 AND status = 'Admitted'`,
		doctorID).Scan(&n)
	if err != nil {
		return 0, apperr.Store("count active admissions", err)
	}
	return n, nil
}

func (r *repoPG) Insert(ctx context.Context, a *Admission) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admission (id, patient_id, doctor_id, admission_date, reason, status, rate_per_day)
		VALUES ($1, $2, $3, $4, $5, $6::admission_status, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.AdmissionDate, a.Reason, string(a.Status), a.RatePerDay,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if constraint, ok := db.Violation(err, db.CodeUniqueViolation); ok && constraint == activePerPatientIndex {
		return alreadyAdmitted(a.PatientID)
	}
	if verr := checkViolation(err); verr != nil {
		return verr
	}
	if err != nil {
		return apperr.Store("insert admission", err)
	}
	return nil
}

// checkViolation turns a known CHECK violation into a field error. Unknown
// constraints stay store errors.
func checkViolation(err error) error {
	constraint, ok := db.Violation(err, db.CodeCheckViolation)
	if !ok {
		return nil
	}
	field, ok := checkFields[constraint]
	if !ok {
		return nil
	}
	return apperr.Invalid(field, "check", "rejected by the database ("+constraint+")")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return r.get(ctx, `SELECT `+admCols+` FROM admission a WHERE a.id = $1`, id)
}

func (r *repoPG) LockByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return r.get(ctx, `SELECT `+admCols+` FROM admission a WHERE a.id = $1 FOR UPDATE`, id)
}

func (r *repoPG) get(ctx context.Context, sql string, id uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx, sql, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("admission", id.String())
	}
	if err != nil {
		return nil, apperr.Store("get admission", err)
	}
	return a, nil
}

func (r *repoPG) UpdateOnDischarge(ctx context.Context, id uuid.UUID, dischargeDate time.Time, totalCharge float64, notes *string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE admission
		SET status = 'Discharged', discharge_date = $2, total_charge = $3, discharge_notes = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'Admitted'`,
		id, dischargeDate, totalCharge, notes)
	if verr := checkViolation(err); verr != nil {
		return false, verr
	}
	if err != nil {
		return false, apperr.Store("update admission on discharge", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f Filter, limit, offset int) ([]*Assignment, int, error) {
	where, args := filterClause(doctorID, f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admission a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Store("count doctor admissions", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s, p.first_name || ' ' || p.last_name, p.code
		FROM admission a
		JOIN patient p ON p.id = a.patient_id
		WHERE %s
		ORDER BY a.admission_date DESC, a.created_at DESC
		LIMIT $%d OFFSET $%d`, admCols, where, len(args)-1, len(args))

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Store("list doctor admissions", err)
	}
	defer rows.Close()

	out := []*Assignment{}
	for rows.Next() {
		var as Assignment
		a, err := scanAdmission(rows, &as.PatientName, &as.PatientCode)
		if err != nil {
			return nil, 0, apperr.Store("scan doctor admission", err)
		}
		as.Admission = a
		out = append(out, &as)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Store("list doctor admissions", err)
	}
	return out, total, nil
}

func filterClause(doctorID uuid.UUID, f Filter) (string, []interface{}) {
	clauses := []string{"a.doctor_id = $1"}
	args := []interface{}{doctorID}

	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf("a.status = $%d::admission_status", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		clauses = append(clauses, fmt.Sprintf("a.admission_date >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		clauses = append(clauses, fmt.Sprintf("a.admission_date <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// scanAdmission reads admCols followed by any extra columns into extra.
func scanAdmission(row pgx.Row, extra ...interface{}) (*Admission, error) {
	var a Admission
	var status string
	dest := []interface{}{
		&a.ID, &a.PatientID, &a.DoctorID, &a.AdmissionDate, &a.DischargeDate, &a.Reason,
		&status, &a.RatePerDay, &a.TotalCharge, &a.DischargeNotes, &a.CreatedAt, &a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}
