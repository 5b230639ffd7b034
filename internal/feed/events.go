package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leoconnect/backend/internal/model"
	"gorm.io/gorm"
)

// Event is a club event enriched with author, club and viewer RSVP context.
type Event struct {
	EventID          string        `json:"eventId"`
	ClubID           string        `json:"clubId"`
	ClubName         string        `json:"clubName"`
	AuthorID         string        `json:"authorId"`
	AuthorName       string        `json:"authorName"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	EventDate        time.Time     `json:"eventDate"`
	ImageURL         string        `json:"imageUrl,omitempty"`
	RSVPCount        int64         `json:"rsvpCount"`
	HasRSVPd         bool          `json:"hasRSVPd"`
	RSVPParticipants []Participant `json:"rsvpParticipants"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Participant is an RSVP'd user summary.
type Participant struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

type eventRow struct {
	model.Event
	AuthorName string
	ClubName   string
}

// CreateEventInput carries a new event's fields and optional inline image.
type CreateEventInput struct {
	Name          string
	Description   string
	EventDate     time.Time
	ClubID        string
	ImageBytes    []byte
	ImageMimeType string
}

// UpdateEventInput carries a partial event update; nil fields are untouched.
type UpdateEventInput struct {
	Name          *string
	Description   *string
	EventDate     *time.Time
	ImageBytes    []byte
	ImageMimeType string
}

// CreateEvent validates and persists an event, assigning a random club when
// the caller omits one, mirroring post creation.
func (s *Service) CreateEvent(ctx context.Context, author model.User, input CreateEventInput) (Event, error) {
	if err := validateEventName(input.Name); err != nil {
		return Event{}, err
	}
	if err := validateEventDescription(input.Description); err != nil {
		return Event{}, err
	}
	if input.EventDate.IsZero() {
		return Event{}, fmt.Errorf("%w: event date is required", ErrInvalidContent)
	}

	imageURL := s.relayImage(ctx, input.ImageBytes, input.ImageMimeType)

	clubID := input.ClubID
	if clubID == "" {
		var club model.Club
		err := s.db.WithContext(ctx).Order("RANDOM()").Select("id").First(&club).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Event{}, ErrNoClubs
			}
			return Event{}, err
		}
		clubID = club.ID
	}

	eventID, err := s.ids.NewID()
	if err != nil {
		return Event{}, err
	}
	now := s.now().UTC()
	event := model.Event{
		ID:          eventID,
		ClubID:      clubID,
		AuthorID:    author.UID,
		Name:        input.Name,
		Description: input.Description,
		EventDate:   input.EventDate,
		ImageURL:    imageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return Event{}, err
	}
	return s.GetEvent(ctx, author.UID, eventID)
}

// GetEvent returns one enriched event.
func (s *Service) GetEvent(ctx context.Context, viewerID, eventID string) (Event, error) {
	var row eventRow
	err := s.eventQuery(ctx).Where("events.id = ?", eventID).Scan(&row).Error
	if err != nil {
		return Event{}, err
	}
	if row.ID == "" {
		return Event{}, ErrEventNotFound
	}
	return s.decorateEvent(ctx, viewerID, row)
}

// ListEvents returns upcoming events ordered by event date, optionally
// scoped to one club.
func (s *Service) ListEvents(ctx context.Context, viewerID, clubID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	query := s.eventQuery(ctx)
	if clubID != "" {
		query = query.Where("events.club_id = ?", clubID)
	}
	var rows []eventRow
	if err := query.Order("events.event_date ASC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		event, err := s.decorateEvent(ctx, viewerID, row)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// UpdateEvent applies a partial update. Permitted for the author or an
// administrator.
func (s *Service) UpdateEvent(ctx context.Context, actor model.User, eventID string, input UpdateEventInput) (Event, error) {
	var event model.Event
	if err := s.db.WithContext(ctx).Select("id", "author_id").Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, err
	}
	if event.AuthorID != actor.UID && !actor.IsWebmaster {
		return Event{}, fmt.Errorf("%w: only the author or an administrator can update an event", ErrForbidden)
	}

	updates := map[string]any{}
	if input.Name != nil {
		if err := validateEventName(*input.Name); err != nil {
			return Event{}, err
		}
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		if err := validateEventDescription(*input.Description); err != nil {
			return Event{}, err
		}
		updates["description"] = *input.Description
	}
	if input.EventDate != nil {
		updates["event_date"] = input.EventDate.UTC()
	}
	if len(input.ImageBytes) > 0 {
		if url := s.relayImage(ctx, input.ImageBytes, input.ImageMimeType); url != "" {
			updates["image_url"] = url
		}
	}
	if len(updates) == 0 {
		return Event{}, fmt.Errorf("%w: no fields to update", ErrInvalidContent)
	}
	updates["updated_at"] = s.now().UTC()

	if err := s.db.WithContext(ctx).Model(&model.Event{}).Where("id = ?", eventID).Updates(updates).Error; err != nil {
		return Event{}, err
	}
	return s.GetEvent(ctx, actor.UID, eventID)
}

// DeleteEvent removes an event and cascades its RSVPs. Permitted for the
// author or an administrator.
func (s *Service) DeleteEvent(ctx context.Context, actor model.User, eventID string) error {
	var event model.Event
	if err := s.db.WithContext(ctx).Select("id", "author_id").Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	if event.AuthorID != actor.UID && !actor.IsWebmaster {
		return fmt.Errorf("%w: only the author or an administrator can delete an event", ErrForbidden)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).Delete(&model.EventRSVP{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", eventID).Delete(&model.Event{}).Error
	})
}

func (s *Service) eventQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Event{}).
		Select("events.*, u.display_name AS author_name, c.name AS club_name").
		Joins("LEFT JOIN users u ON events.author_id = u.uid").
		Joins("LEFT JOIN clubs c ON events.club_id = c.id")
}

func (s *Service) decorateEvent(ctx context.Context, viewerID string, row eventRow) (Event, error) {
	var rsvpCount int64
	if viewerID != "" {
		if err := s.db.WithContext(ctx).Model(&model.EventRSVP{}).
			Where("event_id = ? AND user_id = ?", row.ID, viewerID).
			Count(&rsvpCount).Error; err != nil {
			return Event{}, err
		}
	}

	var participants []Participant
	err := s.db.WithContext(ctx).Model(&model.EventRSVP{}).
		Select("u.uid, u.display_name, u.photo_url").
		Joins("LEFT JOIN users u ON event_rsvps.user_id = u.uid").
		Where("event_rsvps.event_id = ?", row.ID).
		Scan(&participants).Error
	if err != nil {
		return Event{}, err
	}
	if participants == nil {
		participants = []Participant{}
	}

	return Event{
		EventID:          row.ID,
		ClubID:           row.ClubID,
		ClubName:         row.ClubName,
		AuthorID:         row.AuthorID,
		AuthorName:       row.AuthorName,
		Name:             row.Name,
		Description:      row.Description,
		EventDate:        row.EventDate,
		ImageURL:         row.ImageURL,
		RSVPCount:        row.RSVPCount,
		HasRSVPd:         rsvpCount > 0,
		RSVPParticipants: participants,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func validateEventName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: event name cannot be empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(name) > maxEventNameLength {
		return fmt.Errorf("%w: event name exceeds %d characters", ErrInvalidContent, maxEventNameLength)
	}
	return nil
}

func validateEventDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: event description cannot be empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(description) > maxEventDescLength {
		return fmt.Errorf("%w: event description exceeds %d characters", ErrInvalidContent, maxEventDescLength)
	}
	return nil
}
