package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chatrelay/api/internal/cache"
	"chatrelay/api/internal/httpdate"
	"chatrelay/api/internal/search"
	"chatrelay/api/internal/store"
)

// DefaultChannel receives every message posted without an explicit channel.
const DefaultChannel = "default"

const maxMessageBytes = 255
const maxChannelNameBytes = 50

type dataStore interface {
	CreateChannel(ctx context.Context, name string) error
	ListChannels(ctx context.Context) ([]string, error)
	ChannelExists(ctx context.Context, name string) (bool, error)
	InsertMessage(ctx context.Context, msg store.Message) error
	MessagesSince(ctx context.Context, channel string, since int64) ([]store.Message, error)
	LatestMessages(ctx context.Context, channel string, limit int) ([]store.Message, error)
	HasMessages(ctx context.Context) (bool, error)
	CountMessages(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

type registrar interface {
	Register(ctx context.Context, username, password, email string) error
}

// Service orchestrates the post, fetch, registration, and channel
// operations over the stores. It holds no persisted state of its own.
type Service struct {
	store  dataStore
	creds  registrar
	cache  *cache.RecentCache // nil when Redis is not configured
	search *search.Service    // nil in tests without a database
}

func New(dataStore dataStore, creds registrar, recent *cache.RecentCache, searchSvc *search.Service) *Service {
	return &Service{
		store:  dataStore,
		creds:  creds,
		cache:  recent,
		search: searchSvc,
	}
}

// Bootstrap guarantees the default channel exists before the server accepts
// requests, and warms the search index when one is configured.
func (s *Service) Bootstrap(ctx context.Context) error {
	exists, err := s.store.ChannelExists(ctx, DefaultChannel)
	if err != nil {
		return fmt.Errorf("check default channel: %w", err)
	}
	if !exists {
		if err := s.store.CreateChannel(ctx, DefaultChannel); err != nil && !errors.Is(err, store.ErrChannelExists) {
			return fmt.Errorf("create default channel: %w", err)
		}
		log.Printf("bootstrap: created channel %q", DefaultChannel)
	}

	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PostRequest is the parsed body of a post-message call. Sent is the
// client's ISO-8601 offset date-time string, parsed here.
type PostRequest struct {
	User    string
	Message string
	Sent    string
	Channel string
}

// PostMessage validates and stores one message. Returns nil on success or a
// DomainError carrying the wire status.
func (s *Service) PostMessage(ctx context.Context, req PostRequest) error {
	channel := req.Channel
	if channel == "" {
		channel = DefaultChannel
	} else {
		exists, err := s.store.ChannelExists(ctx, channel)
		if err != nil {
			log.Printf("post: channel lookup failed: %v", err)
			return internalError("Message could not be saved: Database error.")
		}
		if !exists {
			return badRequest("Error: channel name is not valid.")
		}
	}

	sentAt, err := time.Parse(time.RFC3339Nano, req.Sent)
	if err != nil {
		return badRequest("Could not parse date/time. Message was not sent.")
	}

	if req.User == "" || req.Message == "" {
		return badRequest("No required content in request.")
	}
	if len(req.Message) > maxMessageBytes {
		return badRequest("Message exceeds 255 bytes.")
	}

	msg := store.Message{
		User:    req.User,
		Message: req.Message,
		Sent:    sentAt.UnixMilli(),
		Channel: channel,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrMessageExists) {
			return tooManyRequests("Error: Sending messages too fast.")
		}
		if errors.Is(err, store.ErrUnknownChannel) {
			return badRequest("Error: channel name is not valid.")
		}
		log.Printf("post: insert failed: %v", err)
		return internalError("Message could not be saved: Database error.")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, channel); err != nil {
			log.Printf("post: cache invalidate failed: %v", err)
		}
	}
	if s.search != nil {
		s.search.IndexMessage(search.MessageRecord{
			ID:      search.RecordID(msg.User, msg.Sent),
			User:    msg.User,
			Message: msg.Message,
			Sent:    msg.Sent,
			Channel: msg.Channel,
		})
	}
	return nil
}

// FetchRequest carries the fetch headers. HasSince distinguishes "no
// watermark" from a zero watermark.
type FetchRequest struct {
	Channel  string // empty means the default channel
	Since    int64
	HasSince bool
}

// FetchResult is a page of messages in ascending sent order. LastModified
// is set iff Messages is non-empty and carries the newest sent timestamp in
// HTTP-date form.
type FetchResult struct {
	Messages     []store.Message
	LastModified string
}

// FetchMessages resolves the watermark and queries the log. An empty page
// is a normal result, never an error.
func (s *Service) FetchMessages(ctx context.Context, req FetchRequest) (FetchResult, error) {
	channel := req.Channel
	if channel == "" {
		channel = DefaultChannel
	} else {
		exists, err := s.store.ChannelExists(ctx, channel)
		if err != nil {
			log.Printf("fetch: channel lookup failed: %v", err)
			return FetchResult{}, notFound("Database access error.")
		}
		if !exists {
			return FetchResult{}, badRequest("Error: requested channel is not valid.")
		}
	}

	hasAny, err := s.store.HasMessages(ctx)
	if err != nil {
		log.Printf("fetch: empty check failed: %v", err)
		return FetchResult{}, notFound("Database access error.")
	}
	if !hasAny {
		return FetchResult{}, nil
	}

	var messages []store.Message
	if req.HasSince {
		messages, err = s.store.MessagesSince(ctx, channel, req.Since)
		if err != nil {
			log.Printf("fetch: query failed: %v", err)
			return FetchResult{}, notFound("Database access error.")
		}
	} else {
		messages, err = s.latestMessages(ctx, channel)
		if err != nil {
			log.Printf("fetch: query failed: %v", err)
			return FetchResult{}, notFound("Database access error.")
		}
	}

	if len(messages) == 0 {
		return FetchResult{}, nil
	}

	// Ascending order makes the newest timestamp the last element.
	newest := messages[len(messages)-1].Sent
	return FetchResult{
		Messages:     messages,
		LastModified: httpdate.Format(newest),
	}, nil
}

func (s *Service) latestMessages(ctx context.Context, channel string) ([]store.Message, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetLatest(ctx, channel); ok {
			return cached, nil
		}
	}

	messages, err := s.store.LatestMessages(ctx, channel, store.LatestLimit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, channel, messages); err != nil {
			log.Printf("fetch: cache set failed: %v", err)
		}
	}
	return messages, nil
}

// Register creates a new account. Duplicate usernames answer the same
// diagnostic as the original server.
func (s *Service) Register(ctx context.Context, username, password, email string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" || strings.TrimSpace(email) == "" {
		return badRequest("No content in request.")
	}
	if err := s.creds.Register(ctx, username, password, email); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return badRequest("Invalid user credentials.")
		}
		log.Printf("register: %v", err)
		return internalError("Registration failed: Database error.")
	}
	return nil
}

// CreateChannel registers a new channel and returns the confirmation text.
func (s *Service) CreateChannel(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", badRequest("Error: invalid channel name.")
	}
	if len(name) > maxChannelNameBytes {
		return "", badRequest("Error: invalid channel name.")
	}
	if err := s.store.CreateChannel(ctx, name); err != nil {
		if errors.Is(err, store.ErrChannelExists) {
			return "", badRequest("Error: invalid channel name.")
		}
		log.Printf("channels: create failed: %v", err)
		return "", internalError("Channel could not be created: Database error.")
	}
	return fmt.Sprintf("New channel called %q created.", name), nil
}

// ListChannels returns channel names in creation order.
func (s *Service) ListChannels(ctx context.Context) ([]string, error) {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		log.Printf("channels: list failed: %v", err)
		return nil, internalError("Channels could not be listed: Database error.")
	}
	return channels, nil
}

// SearchMessages answers the message-history search endpoint. Returns an
// empty response when no search backend is configured.
func (s *Service) SearchMessages(ctx context.Context, q search.Query) (search.Response, error) {
	if q.Channel != "" {
		exists, err := s.store.ChannelExists(ctx, q.Channel)
		if err != nil {
			log.Printf("search: channel lookup failed: %v", err)
			return search.Response{}, internalError("Search failed: Database error.")
		}
		if !exists {
			return search.Response{}, badRequest("Error: requested channel is not valid.")
		}
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(q), nil
}
