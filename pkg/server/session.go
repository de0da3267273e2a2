package server

import "github.com/starhost/starhost/pkg/protocol"

// Session is the per-connection context. An empty User is the admin.
type Session struct {
	User string
}

// IsAdmin reports whether the session runs in admin context
func (s *Session) IsAdmin() bool {
	return s.User == ""
}

// RequireAdmin fails for non-admin sessions
func (s *Session) RequireAdmin() error {
	if !s.IsAdmin() {
		return protocol.ErrForbidden("admin only")
	}
	return nil
}
