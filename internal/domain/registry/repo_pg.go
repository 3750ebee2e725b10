package registry

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

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

func (r *repoPG) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, db.ReadWrite, fn)
}

// constraintFields maps unique constraints to the request field they guard.
var constraintFields = map[string]string{
	"patient_code_key":  "code",
	"patient_phone_key": "phone",
	"doctor_phone_key":  "phone",
	"doctor_email_key":  "email",
}

func translate(op, resource string, err error) error {
	if constraint, ok := db.Violation(err, db.CodeUniqueViolation); ok {
		field := constraintFields[constraint]
		if field == "" {
			field = constraint
		}
		return &apperr.ConflictError{
			Resource: resource,
			Field:    field,
			Message:  "a " + resource + " with this " + field + " already exists",
			Guidance: "use a different " + field + " or look up the existing " + resource,
		}
	}
	return apperr.Store(op, err)
}

const patientCols = `id, code, first_name, last_name, age, gender, phone, contact, medical_history, created_at, updated_at`

func (r *repoPG) CreatePatient(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, code, first_name, last_name, age, gender, phone, contact, medical_history)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.Code, p.FirstName, p.LastName, p.Age, p.Gender, p.Phone, p.Contact, p.MedicalHistory,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return translate("insert patient", "patient", err)
	}
	return nil
}

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, apperr.Store("get patient", err)
	}
	return p, nil
}

func (r *repoPG) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, apperr.Store("count patients", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY last_name, first_name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store("list patients", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, apperr.Store("scan patient", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Store("list patients", err)
	}
	return out, total, nil
}

const doctorCols = `id, name, specialization, phone, email, consultation_fee, schedule, created_at, updated_at`

func (r *repoPG) CreateDoctor(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (id, name, specialization, phone, email, consultation_fee, schedule)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialization, d.Phone, d.Email, d.ConsultationFee, d.Schedule,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return translate("insert doctor", "doctor", err)
	}
	return nil
}

func (r *repoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.getDoctor(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id)
}

func (r *repoPG) LockDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.getDoctor(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) getDoctor(ctx context.Context, sql string, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, sql, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("doctor", id.String())
	}
	if err != nil {
		return nil, apperr.Store("get doctor", err)
	}
	return d, nil
}

func (r *repoPG) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, apperr.Store("count doctors", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctor ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store("list doctors", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, apperr.Store("scan doctor", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Store("list doctors", err)
	}
	return out, total, nil
}

func (r *repoPG) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	if _, ok := db.Violation(err, db.CodeForeignKeyViolation); ok {
		return doctorInUse(id)
	}
	if err != nil {
		return apperr.Store("delete doctor", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor", id.String())
	}
	return nil
}

func (r *repoPG) CountAdmissions(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admission WHERE doctor_id = $1`, doctorID).Scan(&n); err != nil {
		return 0, apperr.Store("count doctor admissions", err)
	}
	return n, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Code, &p.FirstName, &p.LastName, &p.Age, &p.Gender, &p.Phone,
		&p.Contact, &p.MedicalHistory, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialization, &d.Phone, &d.Email,
		&d.ConsultationFee, &d.Schedule, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
