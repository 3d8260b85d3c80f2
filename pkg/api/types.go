package api

import (
	"github.com/parleyhq/parley/pkg/members"
	"github.com/parleyhq/parley/pkg/moderation"
)

// RegisterRequest is the body of POST /api/v1/auth/register
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	// NameOrEmail identifies the member; either form is accepted
	NameOrEmail string `json:"name_or_email"`
	Password    string `json:"password"`
}

// LoginResponse carries the issued token
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresIn int64           `json:"expires_in"` // seconds
	Member    *members.Member `json:"member"`
}

// MeResponse is the authenticated member's profile
type MeResponse struct {
	Member *members.Member  `json:"member"`
	State  moderation.State `json:"moderation_state"`
}

// IssueWarningRequest is the body of POST /api/v1/moderation/warnings
type IssueWarningRequest struct {
	TargetID    int64  `json:"target_id"`
	Reason      string `json:"reason"`
	ContentType string `json:"content_type,omitempty"`
	ContentID   int64  `json:"content_id,omitempty"`
}

// IssueWarningResponse reports the recorded warning and whether it
// crossed the ban threshold
type IssueWarningResponse struct {
	Warning *moderation.Warning `json:"warning"`
	Banned  bool                `json:"banned"`
}

// MemberStateResponse is the moderation view of a member
type MemberStateResponse struct {
	MemberID     int64            `json:"member_id"`
	State        moderation.State `json:"state"`
	WarningCount int              `json:"warning_count"`
	Banned       bool             `json:"banned"`
	BanReason    string           `json:"ban_reason,omitempty"`
}

// CreateTopicRequest is the body of POST /api/v1/forums/{forum}/topics
type CreateTopicRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreateReplyRequest is the body of
// POST /api/v1/forums/{forum}/topics/{topic}/replies
type CreateReplyRequest struct {
	Body string `json:"body"`
}

// TopicResponse is a topic together with its replies
type TopicResponse struct {
	Topic   *Topic   `json:"topic"`
	Replies []*Reply `json:"replies"`
}
