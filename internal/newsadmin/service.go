// Package newsadmin implements the admin console operations on news items.
// Every successful write is published to the change feed with its before and
// after state; publishing is best effort and never undoes the write.
package newsadmin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/herewego/transfer-admin/internal/models"
	"github.com/herewego/transfer-admin/internal/processing"
	"github.com/herewego/transfer-admin/internal/store"
	"github.com/herewego/transfer-admin/internal/topics"
)

var (
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid news item")
	// ErrImagesDisabled is returned when no image store is configured.
	ErrImagesDisabled = errors.New("image uploads are not configured")
)

// Store is the document store holding news items.
type Store interface {
	Get(ctx context.Context, id string) (*models.NewsItem, error)
	Save(ctx context.Context, item models.NewsItem) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, params store.ListParams) (*store.ListResult, error)
	Analytics(ctx context.Context) (*store.Analytics, error)
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, change models.Change) (string, error)
}

// ImageStore hosts uploaded pictures.
type ImageStore interface {
	Upload(ctx context.Context, newsID, contentType string, body io.Reader, size int64) (string, error)
}

// Input is the editable part of a news item.
type Input struct {
	PlayerName     string `json:"playerName"`
	FromClub       string `json:"fromClub"`
	ToClub         string `json:"toClub"`
	Summary        string `json:"summary"`
	ImageURL       string `json:"imageUrl"`
	Stage          int    `json:"stage"`
	Canceled       bool   `json:"canceled"`
	IsBreakingNews bool   `json:"isBreakingNews"`
	// RemoveImage clears the stored image on update. An empty ImageURL alone
	// keeps the current one.
	RemoveImage    bool   `json:"removeImage"`
}

// Options tune the service.
type Options struct {
	KeywordLimit   int
	KeywordMinLen  int
	PublishTimeout time.Duration
}

// Service coordinates the store, the change feed and image hosting.
type Service struct {
	store  Store
	feed   Publisher
	images ImageStore
	opts   Options
	log    *slog.Logger
	now    func() time.Time
}

// New creates a Service. images may be nil.
func New(st Store, feed Publisher, images ImageStore, opts Options, log *slog.Logger) *Service {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: st, feed: feed, images: images, opts: opts, log: log, now: time.Now}
}

// Get returns one news item.
func (s *Service) Get(ctx context.Context, id string) (*models.NewsItem, error) {
	return s.store.Get(ctx, id)
}

// List returns news items, newest first.
func (s *Service) List(ctx context.Context, params store.ListParams) (*store.ListResult, error) {
	return s.store.List(ctx, params)
}

// Analytics returns dashboard figures.
func (s *Service) Analytics(ctx context.Context) (*store.Analytics, error) {
	return s.store.Analytics(ctx)
}

// Create stores a new news item with zero follows.
func (s *Service) Create(ctx context.Context, in Input) (*models.NewsItem, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	item := models.NewsItem{ID: uuid.NewString()}
	s.apply(&item, in)

	if err := s.store.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save news item: %w", err)
	}

	s.publish(ctx, item.ID, nil, &item)
	return &item, nil
}

// Update merges in over the stored item. Follow counts are preserved and the
// timestamp always moves forward.
func (s *Service) Update(ctx context.Context, id string, in Input) (*models.NewsItem, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	before, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	after := *before
	if in.ImageURL == "" && !in.RemoveImage {
		in.ImageURL = before.ImageURL
	}
	s.apply(&after, in)

	if err := s.store.Save(ctx, after); err != nil {
		return nil, fmt.Errorf("save news item: %w", err)
	}

	s.publish(ctx, id, before, &after)
	return &after, nil
}

// Delete removes a news item.
func (s *Service) Delete(ctx context.Context, id string) error {
	before, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, id, before, nil)
	return nil
}

// AttachImage uploads a picture and stores its URL on the item.
func (s *Service) AttachImage(ctx context.Context, id, contentType string, body io.Reader, size int64) (*models.NewsItem, error) {
	if s.images == nil {
		return nil, ErrImagesDisabled
	}

	before, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.images.Upload(ctx, id, contentType, body, size)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	after := *before
	after.ImageURL = url
	after.Timestamp = s.now().UTC()

	if err := s.store.Save(ctx, after); err != nil {
		return nil, fmt.Errorf("save news item: %w", err)
	}

	s.publish(ctx, id, before, &after)
	return &after, nil
}

func (s *Service) apply(item *models.NewsItem, in Input) {
	item.PlayerName = processing.NormalizeName(in.PlayerName)
	item.FromTo = topics.ComposeFromTo(processing.NormalizeName(in.FromClub), processing.NormalizeName(in.ToClub))
	item.Summary = processing.NormalizeSummary(in.Summary)
	item.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.RemoveImage {
		item.ImageURL = ""
	}
	item.MilestoneStatus = in.Stage
	if in.Canceled {
		item.MilestoneStatus = -in.Stage
	}
	item.IsBreakingNews = in.IsBreakingNews
	item.Timestamp = s.now().UTC()
	item.Keywords = processing.ExtractKeywords(
		strings.Join([]string{item.PlayerName, item.FromTo, item.Summary}, " "),
		s.opts.KeywordLimit, s.opts.KeywordMinLen,
	)
}

// publish runs detached from the request context: a client hanging up after
// the write must not drop the change event.
func (s *Service) publish(ctx context.Context, id string, before, after *models.NewsItem) {
	change, err := models.NewChange(id, before, after)
	if err != nil {
		s.log.Error("build change", slog.String("news_id", id), slog.Any("err", err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()

	eventID, err := s.feed.Publish(pubCtx, change)
	if err != nil {
		s.log.Error("publish change event failed, notification skipped",
			slog.String("news_id", id),
			slog.String("kind", change.Kind.String()),
			slog.Any("err", err),
		)
		return
	}
	s.log.Info("published change event",
		slog.String("news_id", id),
		slog.String("kind", change.Kind.String()),
		slog.String("event_id", eventID),
	)
}

func validate(in Input) error {
	if strings.TrimSpace(in.PlayerName) == "" {
		return fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}
	if in.Stage < models.MilestoneRumor || in.Stage > models.MilestoneOfficial {
		return fmt.Errorf("%w: stage must be between %d and %d", ErrInvalidInput, models.MilestoneRumor, models.MilestoneOfficial)
	}
	if strings.TrimSpace(in.FromClub) == "" && strings.TrimSpace(in.ToClub) == "" {
		return fmt.Errorf("%w: select a from and/or to club", ErrInvalidInput)
	}
	if strings.Contains(in.FromClub, topics.Separator) || strings.Contains(in.ToClub, topics.Separator) {
		return fmt.Errorf("%w: club names cannot contain %q", ErrInvalidInput, topics.Separator)
	}
	return nil
}
