// Package moderation implements the warning and ban lifecycle. Members
// accumulate warnings; the warning that reaches the configured threshold
// transitions the member to banned, exactly once, no matter how many
// moderators act concurrently. Members acknowledge their own warnings;
// acknowledgement is idempotent and does not reduce the count.
package moderation
