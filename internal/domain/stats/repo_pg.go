package stats

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/internal/platform/db"
)

type repoPG struct {
	pool db.Pool
}

func NewRepo(pool db.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.ReadSnapshot(ctx, r.pool, fn)
}

const workloadSQL = `
	SELECT d.id, d.name, d.specialization,
	       COUNT(a.id),
	       COUNT(a.id) FILTER (WHERE a.status = 'Admitted'),
	       COUNT(a.id) FILTER (WHERE a.status = 'Discharged'),
	       COALESCE(SUM(a.discharge_date - a.admission_date) FILTER (WHERE a.status = 'Discharged'), 0),
	       COUNT(a.id) FILTER (WHERE a.admission_date >= $1),
	       COUNT(a.id) FILTER (WHERE a.admission_date >= $2),
	       MAX(a.admission_date)
	FROM doctor d
	LEFT JOIN admission a ON a.doctor_id = d.id`

const workloadGroupSQL = `
	GROUP BY d.id, d.name, d.specialization
	ORDER BY d.name, d.id`

func (r *repoPG) AggregateDoctorWorkload(ctx context.Context, since7, since30 time.Time, doctorID *uuid.UUID) ([]WorkloadRow, error) {
	query := workloadSQL
	args := []interface{}{since7, since30}
	if doctorID != nil {
		query += ` WHERE d.id = $3`
		args = append(args, *doctorID)
	}

	rows, err := r.conn(ctx).Query(ctx, query+workloadGroupSQL, args...)
	if err != nil {
		return nil, apperr.Store("aggregate doctor workload", err)
	}
	defer rows.Close()

	out := []WorkloadRow{}
	for rows.Next() {
		var w WorkloadRow
		var total, active, completed, stay, recent7, recent30 int64
		if err := rows.Scan(&w.DoctorID, &w.Name, &w.Specialization,
			&total, &active, &completed, &stay, &recent7, &recent30, &w.LastAdmission); err != nil {
			return nil, apperr.Store("scan doctor workload", err)
		}
		w.Total, w.Active, w.Completed = int(total), int(active), int(completed)
		w.StayDaysSum, w.Recent7, w.Recent30 = int(stay), int(recent7), int(recent30)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("aggregate doctor workload", err)
	}
	return out, nil
}

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*PatientRef, error) {
	p := &PatientRef{ID: id}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT code, first_name || ' ' || last_name FROM patient WHERE id = $1`, id,
	).Scan(&p.Code, &p.Name)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, apperr.Store("get patient", err)
	}
	return p, nil
}

func (r *repoPG) ListAdmissionsByPatient(ctx context.Context, patientID uuid.UUID) ([]AdmissionRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.doctor_id, d.name, d.specialization, a.admission_date, a.discharge_date,
		       a.status::text, a.reason, a.rate_per_day, a.total_charge
		FROM admission a
		JOIN doctor d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.admission_date DESC, a.created_at DESC`, patientID)
	if err != nil {
		return nil, apperr.Store("list patient admissions", err)
	}
	defer rows.Close()

	out := []AdmissionRow{}
	for rows.Next() {
		var a AdmissionRow
		if err := rows.Scan(&a.AdmissionID, &a.DoctorID, &a.DoctorName, &a.Specialization,
			&a.AdmissionDate, &a.DischargeDate, &a.Status, &a.Reason, &a.RatePerDay, &a.TotalCharge); err != nil {
			return nil, apperr.Store("scan patient admission", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list patient admissions", err)
	}
	return out, nil
}

func (r *repoPG) ListBillsByPatient(ctx context.Context, patientID uuid.UUID) ([]BillRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT b.id, b.description, b.total_amount, COALESCE(SUM(p.amount), 0), b.created_at
		FROM bill b
		LEFT JOIN bill_payment p ON p.bill_id = b.id
		WHERE b.patient_id = $1
		GROUP BY b.id
		ORDER BY b.created_at DESC`, patientID)
	if err != nil {
		return nil, apperr.Store("list patient bills", err)
	}
	defer rows.Close()

	out := []BillRow{}
	for rows.Next() {
		var b BillRow
		if err := rows.Scan(&b.BillID, &b.Description, &b.TotalAmount, &b.Paid, &b.CreatedAt); err != nil {
			return nil, apperr.Store("scan patient bill", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list patient bills", err)
	}
	return out, nil
}
