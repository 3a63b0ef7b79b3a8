package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/sqlinline"
)

// ImageRepositoryPG implements domain.ImageRepository.
type ImageRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewImageRepository(sql infra.SQLExecutor) *ImageRepositoryPG {
	return &ImageRepositoryPG{sql: sql}
}

func (r *ImageRepositoryPG) Create(ctx context.Context, image *domain.SourceImage) error {
	if image == nil || image.OriginalURL == "" {
		return domain.ErrInvalidInput
	}
	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertImage, image.ID, image.OriginalURL, image.Filename, image.ContentType)
	if err := row.Scan(&image.CreatedAt); err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (r *ImageRepositoryPG) GetByID(ctx context.Context, imageID string) (*domain.SourceImage, error) {
	if !validID(imageID) {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectImageByID, imageID)
	var image domain.SourceImage
	if err := row.Scan(&image.ID, &image.OriginalURL, &image.Filename, &image.ContentType, &image.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select image %s: %w", imageID, err)
	}
	return &image, nil
}

var _ domain.ImageRepository = (*ImageRepositoryPG)(nil)
