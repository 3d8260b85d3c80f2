package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/pkg/httputil"
)

// listForums handles GET /api/v1/forums
func (s *Server) listForums(w http.ResponseWriter, r *http.Request) {
	forums, err := s.content.ListForums(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if forums == nil {
		forums = []*Forum{}
	}
	httputil.WriteSuccess(w, forums)
}

// getForum handles GET /api/v1/forums/{forum}
func (s *Server) getForum(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "forum")
	if !ok {
		return
	}

	forum, err := s.content.GetForum(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) {
			httputil.WriteNotFoundError(w, "forum not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, forum)
}

// listTopics handles GET /api/v1/forums/{forum}/topics
func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "forum")
	if !ok {
		return
	}

	topics, err := s.content.ListTopics(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) {
			httputil.WriteNotFoundError(w, "forum not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	if topics == nil {
		topics = []*Topic{}
	}
	httputil.WriteSuccess(w, topics)
}

// getTopic handles GET /api/v1/forums/{forum}/topics/{topic}
func (s *Server) getTopic(w http.ResponseWriter, r *http.Request) {
	forumID, ok := httputil.ParsePathInt64OrError(w, r, "forum")
	if !ok {
		return
	}
	topicID, ok := httputil.ParsePathInt64OrError(w, r, "topic")
	if !ok {
		return
	}

	topic, replies, err := s.content.GetTopic(r.Context(), forumID, topicID)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) {
			httputil.WriteNotFoundError(w, "topic not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	if replies == nil {
		replies = []*Reply{}
	}
	httputil.WriteSuccess(w, TopicResponse{Topic: topic, Replies: replies})
}

// createTopic handles POST /api/v1/forums/{forum}/topics
func (s *Server) createTopic(w http.ResponseWriter, r *http.Request) {
	p := s.principal(w, r)
	if p == nil {
		return
	}

	forumID, ok := httputil.ParsePathInt64OrError(w, r, "forum")
	if !ok {
		return
	}

	var req CreateTopicRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}

	topic := &Topic{
		ForumID:  forumID,
		AuthorID: p.MemberID,
		Title:    req.Title,
		Body:     req.Body,
	}
	if err := s.content.CreateTopic(r.Context(), topic); err != nil {
		if errors.Is(err, ErrContentNotFound) {
			httputil.WriteNotFoundError(w, "forum not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, topic)
}

// createReply handles POST /api/v1/forums/{forum}/topics/{topic}/replies
func (s *Server) createReply(w http.ResponseWriter, r *http.Request) {
	p := s.principal(w, r)
	if p == nil {
		return
	}

	forumID, ok := httputil.ParsePathInt64OrError(w, r, "forum")
	if !ok {
		return
	}
	topicID, ok := httputil.ParsePathInt64OrError(w, r, "topic")
	if !ok {
		return
	}

	// The topic must belong to the addressed forum.
	if _, _, err := s.content.GetTopic(r.Context(), forumID, topicID); err != nil {
		if errors.Is(err, ErrContentNotFound) {
			httputil.WriteNotFoundError(w, "topic not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	var req CreateReplyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		httputil.WriteBadRequest(w, "body is required")
		return
	}

	reply := &Reply{
		TopicID:  topicID,
		AuthorID: p.MemberID,
		Body:     req.Body,
	}
	if err := s.content.CreateReply(r.Context(), reply); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, reply)
}
