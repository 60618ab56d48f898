package archive

import (
	"context"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

type compositorMock struct {
	CompositeFn func(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error)
}

func (m *compositorMock) Composite(ctx context.Context, src model.SourceFile, assets []model.SourceFile, s model.Settings) (*model.Composite, error) {
	return m.CompositeFn(ctx, src, assets, s)
}
