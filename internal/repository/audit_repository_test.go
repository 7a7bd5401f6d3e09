package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/otcheredev/roadservice-api/internal/database"
	"github.com/otcheredev/roadservice-api/internal/models"
	"gorm.io/driver/postgres"
)

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	gdb, err := database.Open(postgres.New(postgres.Config{Conn: db}), "silent")
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	return NewAuditRepository(gdb), mock
}

func TestAuditCreate(t *testing.T) {
	repo, mock := newAuditRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "audit_logs"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{
		CompanyID: "c-1",
		ActorID:   "u-1",
		Action:    "invitation.issue",
		Status:    "success",
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("expected id to be assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditListByCompany(t *testing.T) {
	repo, mock := newAuditRepo(t)

	rows := sqlmock.NewRows([]string{"id", "company_id", "action", "status"}).
		AddRow("7b0c3a46-1d0e-4a3c-9d0a-8f8a2f6d9e11", "c-1", "user.delete", "success")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "audit_logs" WHERE company_id = $1 ORDER BY created_at DESC`)).
		WillReturnRows(rows)

	logs, err := repo.ListByCompany(context.Background(), "c-1", 10, 0)
	if err != nil {
		t.Fatalf("ListByCompany: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "user.delete" {
		t.Fatalf("unexpected logs %+v", logs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
