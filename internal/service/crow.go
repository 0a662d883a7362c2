package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ratethiscrow/crowapi/internal/model"
	"github.com/ratethiscrow/crowapi/internal/repository"
	"github.com/ratethiscrow/crowapi/internal/storage"
	"github.com/ratethiscrow/crowapi/internal/validation"
)

var (
	ErrInvalidRating   = errors.New("invalid rating")
	ErrInvalidVote     = errors.New("invalid vote type")
	ErrInvalidName     = errors.New("invalid name")
	ErrMissingImage    = errors.New("missing img_url")
	ErrInvalidImage    = errors.New("invalid image")
	ErrStorageDisabled = errors.New("image uploads are not enabled")
)

type CrowServiceConfig struct {
	RatingMin           float64
	RatingMax           float64
	LeaderboardFraction float64
}

type CrowService struct {
	crowRepo repository.CrowRepository
	nameRepo repository.NameRepository
	storage  storage.Storage // nil when image uploads are disabled
	cfg      CrowServiceConfig
	now      func() time.Time
}

func NewCrowService(crowRepo repository.CrowRepository, nameRepo repository.NameRepository, store storage.Storage, cfg CrowServiceConfig) *CrowService {
	return &CrowService{
		crowRepo: crowRepo,
		nameRepo: nameRepo,
		storage:  store,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NewCrow is the input for an upload. Empty credits take the display defaults.
type NewCrow struct {
	ImgURL     string
	CreditName string
	CreditLink string
}

func (s *CrowService) Random(ctx context.Context) (*model.Crow, error) {
	return s.crowRepo.Random(ctx)
}

func (s *CrowService) Crow(ctx context.Context, crowID string) (model.CrowDetails, error) {
	crow, err := s.crowRepo.ByID(ctx, crowID)
	if err != nil {
		return model.CrowDetails{}, err
	}
	return crow.Details(), nil
}

func (s *CrowService) Upload(ctx context.Context, in NewCrow) (*model.Crow, error) {
	imgURL := strings.TrimSpace(in.ImgURL)
	if imgURL == "" {
		return nil, ErrMissingImage
	}

	crow := &model.Crow{
		ImgURL:     imgURL,
		CreditName: orDefault(in.CreditName, model.DefaultCreditName),
		CreditLink: orDefault(in.CreditLink, model.DefaultCreditLink),
		CreatedAt:  s.now().UTC(),
	}

	err := s.crowRepo.Create(ctx, crow)
	if err != nil {
		return nil, fmt.Errorf("failed to create crow: %w", err)
	}

	slog.Info("crow uploaded", "crow_id", crow.CrowID, "img_url", crow.ImgURL)
	return crow, nil
}

// UploadImage stores the photo and creates a crow pointing at it. The object
// is removed again if the crow row cannot be written.
func (s *CrowService) UploadImage(ctx context.Context, header *multipart.FileHeader, in NewCrow) (*model.Crow, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	contentType, err := validation.ValidateFile(header, validation.ImageConstraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	storagePath := "crows/" + uuid.NewString() + ext

	err = s.storage.Save(ctx, storagePath, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	in.ImgURL = s.storage.URL(storagePath)
	crow, err := s.Upload(ctx, in)
	if err != nil {
		delErr := s.storage.Delete(context.WithoutCancel(ctx), storagePath)
		if delErr != nil {
			slog.Error("failed to delete image from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, err
	}

	return crow, nil
}

// Rate folds one score into the crow's running mean. Scores must be finite
// and inside the configured range.
func (s *CrowService) Rate(ctx context.Context, crowID string, score float64) (*model.Rating, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < s.cfg.RatingMin || score > s.cfg.RatingMax {
		return nil, fmt.Errorf("%w: must be between %g and %g", ErrInvalidRating, s.cfg.RatingMin, s.cfg.RatingMax)
	}

	rating, err := s.crowRepo.AddRating(ctx, crowID, score)
	if err != nil {
		return nil, err
	}

	slog.Debug("crow rated", "crow_id", crowID, "score", score, "avg_rating", rating.AvgRating, "rating_count", rating.RatingCount)
	return rating, nil
}

func (s *CrowService) All(ctx context.Context) ([]*model.Crow, error) {
	return s.crowRepo.All(ctx)
}

// Leaderboard is the leading ceil(fraction*n) crows of All.
func (s *CrowService) Leaderboard(ctx context.Context) ([]*model.Crow, error) {
	crows, err := s.crowRepo.All(ctx)
	if err != nil {
		return nil, err
	}

	n := int(math.Ceil(float64(len(crows)) * s.cfg.LeaderboardFraction))
	if n > len(crows) {
		n = len(crows)
	}

	return crows[:n], nil
}

func (s *CrowService) ProposeName(ctx context.Context, crowID, text string) (*model.Name, error) {
	if !validation.IsValidName(text) {
		return nil, ErrInvalidName
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate name id: %w", err)
	}

	name := &model.Name{
		NameID:    "name_" + id.String(),
		CrowID:    crowID,
		Name:      strings.TrimSpace(text),
		CreatedAt: s.now().UTC(),
	}

	err = s.nameRepo.Create(ctx, name)
	if err != nil {
		return nil, err
	}

	return name, nil
}

func (s *CrowService) VoteName(ctx context.Context, crowID, nameID, voteType string) error {
	if !model.IsValidVoteType(voteType) {
		return ErrInvalidVote
	}

	return s.nameRepo.Vote(ctx, crowID, nameID, voteType == model.VoteUp)
}

func (s *CrowService) Names(ctx context.Context, crowID string) ([]*model.Name, error) {
	return s.nameRepo.ByCrow(ctx, crowID)
}

func orDefault(s, def string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		s = def
	}
	return &s
}
