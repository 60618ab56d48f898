package service

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/preview"
	"github.com/UnendingLoop/Watermarker/internal/watermark"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func textSettings() model.Settings {
	return model.Settings{Watermark: model.WatermarkConfig{Kind: model.KindText, Text: "AI生成"}}
}

func jpegSource(name string) model.SourceFile {
	return model.SourceFile{Name: name, ContentType: model.JPEG, Data: []byte("jpeg-bytes")}
}

func newTestService(repo *mockRepo, strg *mockStorage, pub *mockPublisher) *WatermarkService {
	return &WatermarkService{
		jobs:      repo,
		presets:   repo,
		recent:    repo,
		storage:   strg,
		publisher: pub,
		limits:    Limits{}.withDefaults(),
		now:       func() time.Time { return fixedNow },
	}
}

// CREATE JOB - SUCCESS
func TestWatermarkService_CreateJob_OK(t *testing.T) {
	var putKeys []string
	strg := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			require.Equal(t, size, int64(len(data)))
			putKeys = append(putKeys, key)
			return nil
		},
	}
	repo := &mockRepo{
		createJobFn: func(ctx context.Context, j *model.Job) error {
			require.NotEqual(t, uuid.Nil, j.UID)
			require.Equal(t, model.StatusCreated, j.Status)
			require.Equal(t, model.StringSlice{"a.jpg", "b.jpg"}, j.Files)
			require.Len(t, j.SourceKeys, 2)
			require.Len(t, j.AssetKeys, 1)
			return nil
		},
	}
	var published []byte
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			published = key
			return nil
		},
	}

	svc := newTestService(repo, strg, pub)
	job, err := svc.CreateJob(context.Background(), model.WatermarkRequest{
		Settings:   textSettings(),
		Images:     []model.SourceFile{jpegSource("a.jpg"), jpegSource("b.jpg")},
		Watermarks: []model.SourceFile{{Name: "logo.png", ContentType: model.PNG, Data: []byte("png")}},
	})
	require.NoError(t, err)
	require.Equal(t, job.UID.String(), string(published))
	require.Equal(t, fixedNow, *job.CreatedAt)
	require.Len(t, putKeys, 3)
	require.True(t, strings.HasPrefix(putKeys[0], srcKeyPrefix+job.UID.String()+"/0"))
	require.True(t, strings.HasSuffix(putKeys[0], ".jpg"))
	require.True(t, strings.HasSuffix(putKeys[2], ".png"))
}

// CREATE JOB - VALIDATION FAIL
func TestWatermarkService_CreateJob_Invalid(t *testing.T) {
	svc := newTestService(&mockRepo{}, &mockStorage{}, &mockPublisher{})

	tests := []struct {
		name    string
		req     model.WatermarkRequest
		wantErr error
	}{
		{
			name:    "no kind",
			req:     model.WatermarkRequest{Images: []model.SourceFile{jpegSource("a.jpg")}},
			wantErr: model.ErrIncorrectConfig,
		},
		{
			name:    "no images",
			req:     model.WatermarkRequest{Settings: textSettings()},
			wantErr: model.ErrEmptySource,
		},
		{
			name: "too many watermarks",
			req: model.WatermarkRequest{
				Settings:   textSettings(),
				Images:     []model.SourceFile{jpegSource("a.jpg")},
				Watermarks: []model.SourceFile{jpegSource("1"), jpegSource("2"), jpegSource("3"), jpegSource("4")},
			},
			wantErr: model.ErrTooManyFiles,
		},
		{
			name: "empty file",
			req: model.WatermarkRequest{
				Settings: textSettings(),
				Images:   []model.SourceFile{jpegSource("a.jpg"), {Name: "zero.jpg", ContentType: model.JPEG}},
			},
			wantErr: model.ErrInvalidInput,
		},
		{
			name: "wrong mime",
			req: model.WatermarkRequest{
				Settings: textSettings(),
				Images:   []model.SourceFile{{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}},
			},
			wantErr: model.ErrInvalidInput,
		},
		{
			name: "font size out of range",
			req: model.WatermarkRequest{
				Settings: model.Settings{Watermark: model.WatermarkConfig{Kind: model.KindText, FontSize: ptr(500.0)}},
				Images:   []model.SourceFile{jpegSource("a.jpg")},
			},
			wantErr: model.ErrIncorrectConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// CREATE JOB - STORAGE PUT FAIL
func TestWatermarkService_CreateJob_StorageError(t *testing.T) {
	strg := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return errors.New("storage is down")
		},
	}
	svc := newTestService(&mockRepo{}, strg, &mockPublisher{})

	_, err := svc.CreateJob(context.Background(), model.WatermarkRequest{Settings: textSettings(), Images: []model.SourceFile{jpegSource("a.jpg")}})
	require.ErrorIs(t, err, model.ErrCommon500)
}

// CREATE JOB - PUBLISH FAIL
func TestWatermarkService_CreateJob_PublishError(t *testing.T) {
	strg := &mockStorage{putFn: func(context.Context, string, int64, string, io.Reader) error { return nil }}
	repo := &mockRepo{createJobFn: func(context.Context, *model.Job) error { return nil }}
	pub := &mockPublisher{sendFn: func(context.Context, retry.Strategy, []byte, []byte) error { return errors.New("kafka down") }}

	svc := newTestService(repo, strg, pub)
	_, err := svc.CreateJob(context.Background(), model.WatermarkRequest{Settings: textSettings(), Images: []model.SourceFile{jpegSource("a.jpg")}})
	require.ErrorIs(t, err, model.ErrCommon500)
}

func TestWatermarkService_GetJob(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name    string
		id      string
		repoErr error
		wantErr error
	}{
		{name: "OK", id: id},
		{name: "incorrect id", id: "not-a-uuid", wantErr: model.ErrIncorrectID},
		{name: "not found", id: id, repoErr: model.ErrJobNotFound, wantErr: model.ErrJobNotFound},
		{name: "db error", id: id, repoErr: errors.New("db down"), wantErr: model.ErrCommon500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{
				getJobFn: func(ctx context.Context, got string) (*model.Job, error) {
					if tt.repoErr != nil {
						return nil, tt.repoErr
					}
					return &model.Job{UID: uuid.MustParse(got), Status: model.StatusCreated}, nil
				},
			}
			svc := newTestService(repo, &mockStorage{}, &mockPublisher{})

			job, err := svc.GetJob(context.Background(), tt.id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.id, job.UID.String())
		})
	}
}

func TestWatermarkService_LoadResult(t *testing.T) {
	id := uuid.New().String()
	status := model.StatusInProgress

	repo := &mockRepo{
		getJobFn: func(ctx context.Context, got string) (*model.Job, error) {
			return &model.Job{UID: uuid.MustParse(got), Status: status, ResultKey: ResultKey(uuid.MustParse(got))}, nil
		},
	}
	strg := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			require.Equal(t, resultKeyPrefix+id+".zip", key)
			return io.NopCloser(strings.NewReader("zip")), "", nil
		},
	}
	svc := newTestService(repo, strg, &mockPublisher{})

	_, _, err := svc.LoadResult(context.Background(), id)
	require.ErrorIs(t, err, model.ErrResultNotReady)

	status = model.StatusDone
	rc, ct, err := svc.LoadResult(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, model.ZIP, ct)
	require.NoError(t, rc.Close())
}

func TestWatermarkService_DeleteJob(t *testing.T) {
	uid := uuid.New()
	repo := &mockRepo{
		getJobFn: func(ctx context.Context, id string) (*model.Job, error) {
			return &model.Job{
				UID:        uid,
				Status:     model.StatusDone,
				SourceKeys: model.StringSlice{"sources/1", "sources/2"},
				AssetKeys:  model.StringSlice{"assets/1"},
				ResultKey:  "results/1.zip",
			}, nil
		},
		deleteJobFn: func(ctx context.Context, id string) error { return nil },
	}
	var deleted []string
	strg := &mockStorage{
		deleteFn: func(ctx context.Context, key string) error {
			deleted = append(deleted, key)
			return nil
		},
	}

	svc := newTestService(repo, strg, &mockPublisher{})
	require.NoError(t, svc.DeleteJob(context.Background(), uid.String()))
	require.Equal(t, []string{"sources/1", "sources/2", "assets/1", "results/1.zip"}, deleted)
}

func TestWatermarkService_UpdateStatus(t *testing.T) {
	repo := &mockRepo{
		updateStatusFn: func(ctx context.Context, id string, st model.Status) error {
			return model.ErrJobNotFound
		},
	}
	svc := newTestService(repo, &mockStorage{}, &mockPublisher{})

	require.ErrorIs(t, svc.UpdateStatus(context.Background(), "bad", model.StatusDone), model.ErrIncorrectID)
	require.ErrorIs(t, svc.UpdateStatus(context.Background(), uuid.NewString(), "paused"), model.ErrIncorrectStatus)
	require.ErrorIs(t, svc.UpdateStatus(context.Background(), uuid.NewString(), model.StatusDone), model.ErrJobNotFound)
}

func TestWatermarkService_SaveResult(t *testing.T) {
	repo := &mockRepo{
		saveResultFn: func(ctx context.Context, j *model.Job) error {
			require.Equal(t, fixedNow, *j.UpdatedAt)
			return errors.New("db down")
		},
	}
	svc := newTestService(repo, &mockStorage{}, &mockPublisher{})

	err := svc.SaveResult(context.Background(), &model.Job{UID: uuid.New()})
	require.ErrorIs(t, err, model.ErrCommon500)
}

func TestWatermarkService_ReviveOrphans(t *testing.T) {
	repo := &mockRepo{
		fetchOrphansFn: func(ctx context.Context, limit int) ([]string, error) {
			require.Equal(t, 20, limit)
			return []string{"id1", "id2"}, nil
		},
	}
	var sent []string
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			sent = append(sent, string(key))
			return nil
		},
	}

	newTestService(repo, &mockStorage{}, pub).ReviveOrphans(context.Background(), 20)
	require.Equal(t, []string{"id1", "id2"}, sent)
}

func TestWatermarkService_Watermark(t *testing.T) {
	tests := []struct {
		name      string
		engineErr error
		wantErr   error
	}{
		{name: "OK"},
		{name: "decode error is shown to client", engineErr: model.ErrDecode, wantErr: model.ErrDecode},
		{name: "unknown error is hidden", engineErr: errors.New("oom"), wantErr: model.ErrCommon500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockRepo{}, &mockStorage{}, &mockPublisher{})
			svc.engine = &mockCompositor{
				compositeFn: func(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error) {
					if tt.engineErr != nil {
						return nil, tt.engineErr
					}
					return &model.Composite{Name: "a_watermarked.jpg", Data: []byte("x")}, nil
				},
			}

			res, err := svc.Watermark(context.Background(), model.WatermarkRequest{Settings: textSettings(), Images: []model.SourceFile{jpegSource("a.jpg")}})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "a_watermarked.jpg", res.Name)
		})
	}

	svc := newTestService(&mockRepo{}, &mockStorage{}, &mockPublisher{})
	_, err := svc.Watermark(context.Background(), model.WatermarkRequest{Settings: textSettings()})
	require.ErrorIs(t, err, model.ErrEmptySource)
}

func TestWatermarkService_Watermark_ImageCount(t *testing.T) {
	tests := []struct {
		name    string
		images  int
		wantErr error
		wantMsg string
	}{
		{name: "no images", images: 0, wantErr: model.ErrEmptySource},
		{name: "one image", images: 1},
		{name: "two images", images: 2, wantErr: model.ErrTooManyFiles, wantMsg: "got 2"},
		{name: "many images", images: 5, wantErr: model.ErrTooManyFiles, wantMsg: "got 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			svc := newTestService(&mockRepo{}, &mockStorage{}, &mockPublisher{})
			svc.engine = &mockCompositor{
				compositeFn: func(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error) {
					calls++
					return &model.Composite{Name: "a_watermarked.jpg", Data: []byte("x")}, nil
				},
			}

			images := make([]model.SourceFile, tt.images)
			for i := range images {
				images[i] = jpegSource("a.jpg")
			}

			_, err := svc.Watermark(context.Background(), model.WatermarkRequest{Settings: textSettings(), Images: images})
			if tt.wantErr == nil {
				require.NoError(t, err)
				require.Equal(t, 1, calls)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			require.Contains(t, err.Error(), tt.wantMsg)
			require.Zero(t, calls)
		})
	}
}

func TestWatermarkService_RenderPreview(t *testing.T) {
	var big bytes.Buffer
	require.NoError(t, imaging.Encode(&big, imaging.New(1600, 1200, color.NRGBA{G: 200, A: 255}), imaging.JPEG))

	tests := []struct {
		name       string
		data       []byte
		wantErr    error
		wantWidth  int
		wantHeight int
	}{
		{name: "result is shrunk to preview size", data: big.Bytes(), wantWidth: 800, wantHeight: 600},
		{name: "undecodable result is hidden", data: []byte("not a jpeg"), wantErr: model.ErrCommon500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockRepo{}, &mockStorage{}, &mockPublisher{})
			svc.engine = &mockCompositor{
				compositeFn: func(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error) {
					return &model.Composite{Name: "a_watermarked.jpg", ContentType: model.JPEG, Data: tt.data}, nil
				},
			}

			res, err := svc.RenderPreview(context.Background(), model.WatermarkRequest{Settings: textSettings(), Images: []model.SourceFile{jpegSource("a.jpg")}})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, res)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantWidth, res.Width)
			require.Equal(t, tt.wantHeight, res.Height)
		})
	}
}

func TestWatermarkService_Batch(t *testing.T) {
	svc := newTestService(&mockRepo{}, &mockStorage{}, &mockPublisher{})
	svc.limits = Limits{MaxFileSize: 4, MaxFiles: 2}.withDefaults()
	svc.batch = &mockBatch{
		buildFn: func(ctx context.Context, req model.WatermarkRequest) ([]byte, error) {
			return nil, &model.FileError{Name: "b.jpg", Err: model.ErrDecode}
		},
	}

	small := model.SourceFile{Name: "a.jpg", ContentType: model.JPEG, Data: []byte("1234")}

	_, err := svc.Batch(context.Background(), model.WatermarkRequest{Settings: textSettings(), Images: []model.SourceFile{small, small, small}})
	require.ErrorIs(t, err, model.ErrTooManyFiles)

	big := model.SourceFile{Name: "big.jpg", ContentType: model.JPEG, Data: []byte("12345")}
	_, err = svc.Batch(context.Background(), model.WatermarkRequest{Settings: textSettings(), Images: []model.SourceFile{big}})
	require.ErrorIs(t, err, model.ErrFileTooLarge)

	_, err = svc.Batch(context.Background(), model.WatermarkRequest{Settings: textSettings(), Images: []model.SourceFile{small, small}})
	require.ErrorIs(t, err, model.ErrDecode)
	var fe *model.FileError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, "b.jpg", fe.Name)
}

func TestWatermarkService_Preview(t *testing.T) {
	fonts, err := watermark.NewFontRegistry()
	require.NoError(t, err)
	svc := newTestService(&mockRepo{}, &mockStorage{}, &mockPublisher{})
	svc.fonts = fonts

	ov, err := svc.Preview(context.Background(), preview.Request{
		Watermark:    model.WatermarkConfig{Kind: model.KindText, Text: "AI"},
		Natural:      model.Size{Width: 400, Height: 300},
		DisplayScale: 0.5,
	})
	require.NoError(t, err)
	require.True(t, ov.Visible)
	require.InDelta(t, 7.5, ov.Left, 1e-9)

	_, err = svc.Preview(context.Background(), preview.Request{Watermark: model.WatermarkConfig{Kind: model.KindText}})
	require.ErrorIs(t, err, model.ErrIncorrectDisplay)
}

func TestWatermarkService_Presets(t *testing.T) {
	var stored *model.Preset
	repo := &mockRepo{
		createPresetFn: func(ctx context.Context, p *model.Preset) error {
			if stored != nil && stored.Name == p.Name {
				return model.ErrDuplicatePreset
			}
			stored = p
			return nil
		},
		deletePresetFn: func(ctx context.Context, id string) error { return model.ErrPresetNotFound },
	}
	svc := newTestService(repo, &mockStorage{}, &mockPublisher{})

	p, err := svc.CreatePreset(context.Background(), &model.Preset{Name: "  corner  ", Config: model.WatermarkConfig{Kind: model.KindText, Text: "x"}})
	require.NoError(t, err)
	require.Equal(t, "corner", p.Name)
	require.NotEqual(t, uuid.Nil, p.ID)

	_, err = svc.CreatePreset(context.Background(), &model.Preset{Name: "corner", Config: model.WatermarkConfig{Kind: model.KindText}})
	require.ErrorIs(t, err, model.ErrDuplicatePreset)

	_, err = svc.CreatePreset(context.Background(), &model.Preset{Name: "", Config: model.WatermarkConfig{Kind: model.KindText}})
	require.ErrorIs(t, err, model.ErrIncorrectConfig)

	_, err = svc.CreatePreset(context.Background(), &model.Preset{Name: "bad color", Config: model.WatermarkConfig{Kind: model.KindText, TextColor: "red"}})
	require.ErrorIs(t, err, model.ErrIncorrectConfig)

	require.ErrorIs(t, svc.DeletePreset(context.Background(), uuid.NewString()), model.ErrPresetNotFound)
	require.ErrorIs(t, svc.DeletePreset(context.Background(), "x"), model.ErrIncorrectID)

	builtin := svc.BuiltinPresets()
	require.Len(t, builtin, 3)
	require.Equal(t, "AI生成", builtin[0].Config.Text)
	require.Equal(t, builtin[0].ID, svc.BuiltinPresets()[0].ID)
}

func TestWatermarkService_Recent(t *testing.T) {
	var savedFP string
	var trimmedSince time.Time
	repo := &mockRepo{
		saveRecentFn: func(ctx context.Context, clientID, fp string, cfg model.WatermarkConfig, at time.Time) error {
			require.Equal(t, "client-1", clientID)
			require.Equal(t, fixedNow, at)
			savedFP = fp
			return nil
		},
		trimRecentFn: func(ctx context.Context, clientID string, since time.Time, keep int) error {
			require.Equal(t, model.RecentLimit, keep)
			trimmedSince = since
			return errors.New("trim failed is not fatal")
		},
		listRecentFn: func(ctx context.Context, clientID string, since time.Time, limit int) ([]model.RecentConfig, error) {
			require.Equal(t, fixedNow.Add(-model.RecentTTL), since)
			return []model.RecentConfig{{Config: model.WatermarkConfig{Kind: model.KindText}, SavedAt: fixedNow}}, nil
		},
	}
	svc := newTestService(repo, &mockStorage{}, &mockPublisher{})

	cfg := model.WatermarkConfig{Kind: model.KindText, Text: "mine"}
	require.NoError(t, svc.SaveRecent(context.Background(), " client-1 ", cfg))
	require.Len(t, savedFP, 64)
	require.Equal(t, fixedNow.Add(-model.RecentTTL), trimmedSince)

	first := savedFP
	require.NoError(t, svc.SaveRecent(context.Background(), "client-1", cfg))
	require.Equal(t, first, savedFP)

	require.ErrorIs(t, svc.SaveRecent(context.Background(), "", cfg), model.ErrMissingClientID)

	res, err := svc.ListRecent(context.Background(), "client-1")
	require.NoError(t, err)
	require.Len(t, res, 1)
}

func ptr[T any](v T) *T { return &v }
