package workload

import (
	"context"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/internal/platform/db"
)

type repoPG struct {
	pool db.Pool
}

func NewRepo(pool db.Pool) Repository {
	return &repoPG{pool: pool}
}

const doctorLoadsSQL = `
	SELECT d.id, d.name, d.specialization,
	       COUNT(a.id) FILTER (WHERE a.status = 'Admitted') AS active
	FROM doctor d
	LEFT JOIN admission a ON a.doctor_id = d.id
	GROUP BY d.id, d.name, d.specialization
	ORDER BY d.name, d.id`

func (r *repoPG) DoctorLoads(ctx context.Context) ([]DoctorLoad, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, doctorLoadsSQL)
	if err != nil {
		return nil, apperr.Store("query doctor loads", err)
	}
	defer rows.Close()

	out := []DoctorLoad{}
	for rows.Next() {
		var l DoctorLoad
		var active int64
		if err := rows.Scan(&l.DoctorID, &l.Name, &l.Specialization, &active); err != nil {
			return nil, apperr.Store("scan doctor load", err)
		}
		l.Active = int(active)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("query doctor loads", err)
	}
	return out, nil
}
