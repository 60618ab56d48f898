package wmpostgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"
)

func newRepoWithMock(t *testing.T) (PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return PostgresRepo{DB: &dbpg.DB{Master: db}}, mock
}

// CREATE JOB - SUCCESS
func TestPostgresRepo_CreateJob_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	ctime := time.Now()
	job := &model.Job{
		UID:       uuid.New(),
		Status:    model.StatusCreated,
		Files:     model.StringSlice{"a.jpg"},
		CreatedAt: &ctime,
	}

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(job.UID, job.Status, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg(), job.CreatedAt, job.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

// GET JOB - SUCCESS
func TestPostgresRepo_GetJob_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	id := uuid.New().String()
	rows := sqlmock.NewRows([]string{
		"job_uid", "status", "files", "source_keys", "asset_keys",
		"settings", "result_key", "err_msg", "created_at", "updated_at",
	}).AddRow(
		id, model.StatusDone, []byte(`["a.jpg","b.png"]`), []byte(`["src/1","src/2"]`), []byte(`[]`),
		[]byte(`{"watermark":{"type":"text","text":"AI生成"},"output":{}}`), "results/1.zip", nil, time.Now(), time.Now(),
	)

	mock.ExpectQuery(`SELECT job_uid`).
		WithArgs(id).
		WillReturnRows(rows)

	job, err := repo.GetJob(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, job.UID.String())
	require.Equal(t, model.StatusDone, job.Status)
	require.Equal(t, model.StringSlice{"a.jpg", "b.png"}, job.Files)
	require.Equal(t, "AI生成", job.Settings.Watermark.Text)
	require.Equal(t, "results/1.zip", job.ResultKey)
	require.Empty(t, job.ErrMsg)
}

// GET JOB - NOT FOUND
func TestPostgresRepo_GetJob_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT job_uid`).
		WillReturnRows(sqlmock.NewRows([]string{"job_uid"}))

	_, err := repo.GetJob(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrJobNotFound)
}

func TestPostgresRepo_DeleteJob(t *testing.T) {
	tests := []struct {
		name    string
		result  func(*sqlmock.ExpectedExec)
		wantErr error
	}{
		{
			name:   "OK",
			result: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 1)) },
		},
		{
			name:    "not found",
			result:  func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 0)) },
			wantErr: model.ErrJobNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			tt.result(mock.ExpectExec(`DELETE FROM jobs`).WithArgs("id"))

			err := repo.DeleteJob(context.Background(), "id")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

// DELETE JOB - DBERROR
func TestPostgresRepo_DeleteJob_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM jobs`).
		WithArgs("id").
		WillReturnError(errors.New("db down"))

	err := repo.DeleteJob(context.Background(), "id")
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrJobNotFound)
}

func TestPostgresRepo_UpdateJobStatus(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs(model.StatusInProgress, "id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateJobStatus(context.Background(), "id", model.StatusInProgress))

	mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs(model.StatusInProgress, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.UpdateJobStatus(context.Background(), "missing", model.StatusInProgress), model.ErrJobNotFound)
}

func TestPostgresRepo_SaveJobResult(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	job := &model.Job{UID: uuid.New(), Status: model.StatusDone, ResultKey: "results/x.zip", UpdatedAt: &now}

	mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs(model.StatusDone, job.UpdatedAt, "results/x.zip", sqlmock.AnyArg(), job.UID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveJobResult(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

// staleBefore принимает порог брошенных задач: now - OrphanTimeout
type staleBefore struct{}

func (staleBefore) Match(v driver.Value) bool {
	ts, ok := v.(time.Time)
	if !ok {
		return false
	}
	age := time.Since(ts)
	return age >= model.OrphanTimeout && age < model.OrphanTimeout+time.Minute
}

// FETCHORPHANS - SUCCESS
func TestPostgresRepo_FetchOrphans_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"job_uid"}).
		AddRow("id1").
		AddRow("id2")

	mock.ExpectQuery(`SELECT job_uid`).
		WithArgs(model.StatusCreated, model.StatusInProgress, staleBefore{}, 2).
		WillReturnRows(rows)

	res, err := repo.FetchOrphans(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"id1", "id2"}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_CreatePreset(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ps := &model.Preset{ID: uuid.New(), Name: "corner", Config: model.WatermarkConfig{Kind: model.KindText, Text: "AI合成"}}

	mock.ExpectQuery(`INSERT INTO presets`).
		WithArgs(ps.ID, "corner", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"preset_uid"}).AddRow(ps.ID.String()))
	require.NoError(t, repo.CreatePreset(context.Background(), ps))

	// ON CONFLICT DO NOTHING -> ни одной строки
	mock.ExpectQuery(`INSERT INTO presets`).
		WillReturnRows(sqlmock.NewRows([]string{"preset_uid"}))
	require.ErrorIs(t, repo.CreatePreset(context.Background(), ps), model.ErrDuplicatePreset)
}

func TestPostgresRepo_ListPresets(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"preset_uid", "name", "config", "created_at"}).
		AddRow(uuid.New().String(), "first", []byte(`{"type":"text","text":"one"}`), time.Now()).
		AddRow(uuid.New().String(), "second", []byte(`{"type":"image","watermarkSize":1.5}`), time.Now())

	mock.ExpectQuery(`SELECT preset_uid, name, config`).WillReturnRows(rows)

	res, err := repo.ListPresets(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "one", res[0].Config.Text)
	require.Equal(t, model.KindImage, res[1].Config.Kind)
	require.Equal(t, 1.5, *res[1].Config.WatermarkSize)
}

func TestPostgresRepo_DeletePreset_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM presets`).
		WithArgs("id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.DeletePreset(context.Background(), "id"), model.ErrPresetNotFound)
}

func TestPostgresRepo_Recent(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	since := now.Add(-model.RecentTTL)

	mock.ExpectExec(`INSERT INTO recent_configs`).
		WithArgs("client", "fp", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveRecent(context.Background(), "client", "fp", model.WatermarkConfig{Kind: model.KindText}, now))

	mock.ExpectExec(`DELETE FROM recent_configs`).
		WithArgs("client", since, model.RecentLimit).
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, repo.TrimRecent(context.Background(), "client", since, model.RecentLimit))

	rows := sqlmock.NewRows([]string{"config", "saved_at"}).
		AddRow([]byte(`{"type":"text","text":"latest"}`), now)
	mock.ExpectQuery(`SELECT config, saved_at`).
		WithArgs("client", since, model.RecentLimit).
		WillReturnRows(rows)

	res, err := repo.ListRecent(context.Background(), "client", since, model.RecentLimit)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "latest", res[0].Config.Text)
	require.NoError(t, mock.ExpectationsWereMet())
}
