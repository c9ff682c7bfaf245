package ports

import (
	"context"

	"github.com/manthysbr/floral/internal/core/domain"
)

// Rasterizer abstracts turning a PDF into page images (Docker, local binary, etc.)
type Rasterizer interface {
	// Rasterize returns one JPEG per page, in page order.
	Rasterize(ctx context.Context, pdf []byte) ([][]byte, error)
}

// SettingsRepository persists opaque settings blobs by key.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key string, value string) error
}

// RunRepository records execution history.
type RunRepository interface {
	SaveRun(ctx context.Context, run domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// Repository abstracts the persistent storage (DuckDB)
type Repository interface {
	SettingsRepository
	RunRepository
	Close() error
}
