package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"

	"github.com/ehr/careflow/internal/config"
	"github.com/ehr/careflow/internal/domain/workload"
	"github.com/ehr/careflow/internal/platform/auth"
	"github.com/ehr/careflow/internal/platform/cache"
	"github.com/ehr/careflow/internal/platform/middleware"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:            env,
		AuthIssuer:     "careflow",
		AuthSigningKey: testSigningKey,
		CORSOrigins:    []string{"http://localhost:3000"},
	}
}

func newTestRouter(t *testing.T, env string) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)

	cfg := testConfig(env)
	s := newServices(mock, cache.NewMemory(), cfg, time.UTC, zerolog.Nop())
	return newRouter(cfg, zerolog.Nop(), s), mock
}

func bearer(t *testing.T, roles ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "careflow",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	})
	signed, err := token.SignedString([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func serve(h http.Handler, method, path, body, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorBody {
	t.Helper()
	var body middleware.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, "production")

	rec := serve(h, http.MethodGet, "/health", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestRouter_DevRecommendations(t *testing.T) {
	h, mock := newTestRouter(t, "development")
	mock.ExpectQuery("LEFT JOIN admission").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "specialization", "active"}).
			AddRow(uuid.New(), "Adams", "Cardiology", int64(12)))

	rec := serve(h, http.MethodGet, "/api/v1/doctors/recommendations", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"tier":"High"`) {
		t.Errorf("expected High tier in %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRouter_ProductionRequiresToken(t *testing.T) {
	h, _ := newTestRouter(t, "production")

	rec := serve(h, http.MethodGet, "/api/v1/stats/facility", "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.RequestID == "" {
		t.Error("expected error body to carry the request id")
	}
}

func TestRouter_NurseCannotAdmit(t *testing.T) {
	h, _ := newTestRouter(t, "production")

	rec := serve(h, http.MethodPost, "/api/v1/admissions", `{}`, bearer(t, auth.RoleNurse))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_AdmitValidationIs422(t *testing.T) {
	h, _ := newTestRouter(t, "production")

	rec := serve(h, http.MethodPost, "/api/v1/admissions",
		`{"patient_id":"x","admission_date":"2999-01-01"}`, bearer(t, auth.RolePhysician))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	fields := map[string]bool{}
	for _, f := range decodeError(t, rec).Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"patient_id", "doctor_id", "admission_date", "reason"} {
		if !fields[want] {
			t.Errorf("expected a violation for %s, got %v", want, fields)
		}
	}
}

func TestRouter_StoreFailureIs503(t *testing.T) {
	h, mock := newTestRouter(t, "production")
	mock.ExpectQuery("LEFT JOIN admission").WillReturnError(errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	rec := serve(h, http.MethodGet, "/api/v1/doctors/recommendations", "", bearer(t, auth.RoleRegistrar))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("store detail leaked: %s", rec.Body.String())
	}
}

func TestPrintWorkload(t *testing.T) {
	var buf bytes.Buffer
	printWorkload(&buf, []workload.DoctorWithTier{{
		DoctorLoad: workload.DoctorLoad{DoctorID: uuid.New(), Name: "Adams", Specialization: "Cardiology", Active: 7},
		Tier:       workload.TierMedium,
	}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "Adams") || !strings.HasSuffix(lines[1], "7 Medium") {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestPrintWorkload_Empty(t *testing.T) {
	var buf bytes.Buffer
	printWorkload(&buf, []workload.DoctorWithTier{})

	if !strings.Contains(buf.String(), "no doctors registered") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestOpenCache(t *testing.T) {
	tests := []struct {
		name     string
		ttl      time.Duration
		redisURL string
		want     string
	}{
		{"non-positive ttl disables caching", 0, "", "nop"},
		{"no redis configured", time.Minute, "", "memory"},
		{"bad redis url falls back", time.Minute, "ftp://nowhere", "memory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("development")
			cfg.StatsCacheTTL = tt.ttl
			cfg.RedisURL = tt.redisURL

			kv, closeKV := openCache(context.Background(), cfg, zerolog.Nop())
			defer closeKV()

			got := "other"
			switch kv.(type) {
			case cache.Nop:
				got = "nop"
			case *cache.Memory:
				got = "memory"
			}
			if got != tt.want {
				t.Errorf("expected %s backend, got %s (%T)", tt.want, got, kv)
			}
		})
	}
}
