package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ratethiscrow/crowapi/internal/model"
	"github.com/ratethiscrow/crowapi/internal/repository"
	"github.com/ratethiscrow/crowapi/internal/storage"
	"github.com/ratethiscrow/crowapi/internal/testutil"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Save(ctx context.Context, path string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return nil
}

func (m *memoryStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memoryStorage) URL(path string) string {
	return "https://cdn.example/" + path
}

func newCrowService(t *testing.T, store storage.Storage) *CrowService {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewCrowService(
		repository.NewCrowRepository(db),
		repository.NewNameRepository(db),
		store,
		CrowServiceConfig{RatingMin: 1, RatingMax: 5, LeaderboardFraction: 0.25},
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestUploadRateScenario(t *testing.T) {
	svc := newCrowService(t, nil)
	ctx := context.Background()

	crow, err := svc.Upload(ctx, NewCrow{ImgURL: "http://x/1.png"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if crow.CrowID != "crow_1" {
		t.Fatalf("expected crow_1, got %s", crow.CrowID)
	}
	if *crow.CreditName != model.DefaultCreditName || *crow.CreditLink != model.DefaultCreditLink {
		t.Errorf("expected default credits, got %q %q", *crow.CreditName, *crow.CreditLink)
	}

	steps := []struct {
		score     float64
		wantAvg   float64
		wantCount int64
	}{
		{4, 4, 1},
		{2, 3, 2},
	}
	for _, step := range steps {
		rating, err := svc.Rate(ctx, "crow_1", step.score)
		if err != nil {
			t.Fatalf("Rate(%v): %v", step.score, err)
		}
		if rating.AvgRating != step.wantAvg || rating.RatingCount != step.wantCount {
			t.Errorf("after %v expected %v/%d, got %v/%d",
				step.score, step.wantAvg, step.wantCount, rating.AvgRating, rating.RatingCount)
		}
	}

	details, err := svc.Crow(ctx, "crow_1")
	if err != nil {
		t.Fatalf("Crow: %v", err)
	}
	if details.Name != model.DefaultCrowName {
		t.Errorf("expected default name, got %q", details.Name)
	}
	if details.AvgRating != 3 || details.RatingCount != 2 {
		t.Errorf("expected 3/2, got %v/%d", details.AvgRating, details.RatingCount)
	}
}

func TestUploadRequiresImage(t *testing.T) {
	svc := newCrowService(t, nil)

	_, err := svc.Upload(context.Background(), NewCrow{ImgURL: "   "})
	if !errors.Is(err, ErrMissingImage) {
		t.Fatalf("expected ErrMissingImage, got %v", err)
	}
}

func TestRateRejectsOutOfRange(t *testing.T) {
	svc := newCrowService(t, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, NewCrow{ImgURL: "http://x/1.png"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	tests := []struct {
		name  string
		score float64
	}{
		{"below min", 0.5},
		{"above max", 5.5},
		{"negative", -3},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Rate(ctx, "crow_1", tt.score)
			if !errors.Is(err, ErrInvalidRating) {
				t.Errorf("expected ErrInvalidRating, got %v", err)
			}
		})
	}

	details, err := svc.Crow(ctx, "crow_1")
	if err != nil {
		t.Fatalf("Crow: %v", err)
	}
	if details.RatingCount != 0 {
		t.Errorf("rejected ratings must not count, got %d", details.RatingCount)
	}
}

func TestRateUnknownCrow(t *testing.T) {
	svc := newCrowService(t, nil)

	_, err := svc.Rate(context.Background(), "crow_77", 3)
	if !errors.Is(err, repository.ErrCrowNotFound) {
		t.Fatalf("expected ErrCrowNotFound, got %v", err)
	}
}

func TestLeaderboardIsPrefixOfAll(t *testing.T) {
	svc := newCrowService(t, nil)
	ctx := context.Background()

	board, err := svc.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(board) != 0 {
		t.Fatalf("expected empty leaderboard, got %d", len(board))
	}

	tests := []struct {
		crows int
		want  int
	}{
		{1, 1},
		{4, 1},
		{5, 2},
		{8, 2},
		{9, 3},
	}

	created := 0
	for _, tt := range tests {
		for created < tt.crows {
			if _, err := svc.Upload(ctx, NewCrow{ImgURL: "http://x/img.png"}); err != nil {
				t.Fatalf("Upload: %v", err)
			}
			created++
			score := float64(created%5 + 1)
			if _, err := svc.Rate(ctx, model.CrowID(int64(created)), score); err != nil {
				t.Fatalf("Rate: %v", err)
			}
		}

		board, err := svc.Leaderboard(ctx)
		if err != nil {
			t.Fatalf("Leaderboard: %v", err)
		}
		all, err := svc.All(ctx)
		if err != nil {
			t.Fatalf("All: %v", err)
		}

		if len(board) != tt.want {
			t.Errorf("%d crows: expected %d on leaderboard, got %d", tt.crows, tt.want, len(board))
		}
		for i := range board {
			if board[i].CrowID != all[i].CrowID {
				t.Errorf("%d crows: leaderboard position %d is %s, all has %s", tt.crows, i, board[i].CrowID, all[i].CrowID)
			}
		}
	}
}

func TestProposeAndVoteNames(t *testing.T) {
	svc := newCrowService(t, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, NewCrow{ImgURL: "http://x/1.png"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	edgar, err := svc.ProposeName(ctx, "crow_1", "  Edgar ")
	if err != nil {
		t.Fatalf("ProposeName: %v", err)
	}
	if !strings.HasPrefix(edgar.NameID, "name_") || edgar.Name != "Edgar" {
		t.Errorf("unexpected name %+v", edgar)
	}

	poe, err := svc.ProposeName(ctx, "crow_1", "Poe")
	if err != nil {
		t.Fatalf("ProposeName: %v", err)
	}

	if err := svc.VoteName(ctx, "crow_1", poe.NameID, model.VoteUp); err != nil {
		t.Fatalf("VoteName: %v", err)
	}
	if err := svc.VoteName(ctx, "crow_1", edgar.NameID, model.VoteDown); err != nil {
		t.Fatalf("VoteName: %v", err)
	}

	names, err := svc.Names(ctx, "crow_1")
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 || names[0].Name != "Poe" || names[0].Upvotes != 1 || names[1].Downvotes != 1 {
		t.Errorf("unexpected names %+v %+v", names[0], names[1])
	}
}

func TestProposeNameErrors(t *testing.T) {
	svc := newCrowService(t, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, NewCrow{ImgURL: "http://x/1.png"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	tests := []struct {
		name    string
		crowID  string
		text    string
		wantErr error
	}{
		{"too short", "crow_1", "x", ErrInvalidName},
		{"profane", "crow_1", "shit", ErrInvalidName},
		{"unknown crow", "crow_9", "Edgar", repository.ErrCrowNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ProposeName(ctx, tt.crowID, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestVoteNameErrors(t *testing.T) {
	svc := newCrowService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		voteType string
		wantErr  error
	}{
		{"bad vote type", "sideways", ErrInvalidVote},
		{"unknown name", model.VoteUp, repository.ErrNameNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.VoteName(ctx, "crow_1", "name_missing", tt.voteType)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func imageHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(10 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["image"][0]
}

func TestUploadImage(t *testing.T) {
	store := newMemoryStorage()
	svc := newCrowService(t, store)
	ctx := context.Background()

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 32)...)

	crow, err := svc.UploadImage(ctx, imageHeader(t, "crow.png", png), NewCrow{CreditName: "Oscar"})
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(crow.ImgURL, "https://cdn.example/crows/") || !strings.HasSuffix(crow.ImgURL, ".png") {
		t.Errorf("unexpected img_url %s", crow.ImgURL)
	}
	if *crow.CreditName != "Oscar" {
		t.Errorf("expected credit Oscar, got %s", *crow.CreditName)
	}
	if len(store.objects) != 1 {
		t.Errorf("expected one stored object, got %d", len(store.objects))
	}

	_, err = svc.UploadImage(ctx, imageHeader(t, "crow.png", []byte("not an image")), NewCrow{})
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

func TestUploadImageDisabled(t *testing.T) {
	svc := newCrowService(t, nil)

	_, err := svc.UploadImage(context.Background(), imageHeader(t, "crow.png", []byte("x")), NewCrow{})
	if !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("expected ErrStorageDisabled, got %v", err)
	}
}
