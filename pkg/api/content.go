package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrContentNotFound is returned when no forum, topic, or reply matches
var ErrContentNotFound = errors.New("content not found")

// Forum is a top-level discussion board
type Forum struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TopicCount  int    `json:"topic_count"`
}

// Topic is a discussion thread within a forum
type Topic struct {
	ID        int64     `json:"id"`
	ForumID   int64     `json:"forum_id"`
	AuthorID  int64     `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Reply is a post within a topic
type Reply struct {
	ID        int64     `json:"id"`
	TopicID   int64     `json:"topic_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentStore persists forum content. Reads are public; writes require
// an authenticated member (enforced by the policy layer, not here).
type ContentStore interface {
	ListForums(ctx context.Context) ([]*Forum, error)
	GetForum(ctx context.Context, id int64) (*Forum, error)
	ListTopics(ctx context.Context, forumID int64) ([]*Topic, error)
	GetTopic(ctx context.Context, forumID, topicID int64) (*Topic, []*Reply, error)
	CreateTopic(ctx context.Context, t *Topic) error
	CreateReply(ctx context.Context, r *Reply) error
}

// MemoryContentStore is an in-memory ContentStore
type MemoryContentStore struct {
	mu      sync.RWMutex
	forums  map[int64]*Forum
	topics  map[int64]*Topic
	replies map[int64]*Reply
	nextID  int64
}

// NewMemoryContentStore creates an empty in-memory content store
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{
		forums:  make(map[int64]*Forum),
		topics:  make(map[int64]*Topic),
		replies: make(map[int64]*Reply),
		nextID:  1,
	}
}

// AddForum seeds a forum and assigns its ID
func (s *MemoryContentStore) AddForum(name, description string) *Forum {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &Forum{ID: s.nextID, Name: name, Description: description}
	s.nextID++
	s.forums[f.ID] = f
	return f
}

// ListForums returns all forums ordered by ID
func (s *MemoryContentStore) ListForums(ctx context.Context) ([]*Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Forum, 0, len(s.forums))
	for _, f := range s.forums {
		clone := *f
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetForum returns the forum with the given identifier
func (s *MemoryContentStore) GetForum(ctx context.Context, id int64) (*Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.forums[id]
	if !ok {
		return nil, ErrContentNotFound
	}
	clone := *f
	return &clone, nil
}

// ListTopics returns a forum's topics, newest first
func (s *MemoryContentStore) ListTopics(ctx context.Context, forumID int64) ([]*Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.forums[forumID]; !ok {
		return nil, ErrContentNotFound
	}

	var result []*Topic
	for _, t := range s.topics {
		if t.ForumID == forumID {
			clone := *t
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// GetTopic returns a topic and its replies, oldest reply first
func (s *MemoryContentStore) GetTopic(ctx context.Context, forumID, topicID int64) (*Topic, []*Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topics[topicID]
	if !ok || t.ForumID != forumID {
		return nil, nil, ErrContentNotFound
	}

	var replies []*Reply
	for _, r := range s.replies {
		if r.TopicID == topicID {
			clone := *r
			replies = append(replies, &clone)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].ID < replies[j].ID })

	clone := *t
	return &clone, replies, nil
}

// CreateTopic persists a topic and assigns its ID
func (s *MemoryContentStore) CreateTopic(ctx context.Context, t *Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.forums[t.ForumID]
	if !ok {
		return ErrContentNotFound
	}

	t.ID = s.nextID
	s.nextID++
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	clone := *t
	s.topics[t.ID] = &clone
	f.TopicCount++
	return nil
}

// CreateReply persists a reply and assigns its ID
func (s *MemoryContentStore) CreateReply(ctx context.Context, r *Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.topics[r.TopicID]; !ok {
		return ErrContentNotFound
	}

	r.ID = s.nextID
	s.nextID++
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	clone := *r
	s.replies[r.ID] = &clone
	return nil
}
