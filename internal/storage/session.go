package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// StoredSession is the durable auth session: the token pair plus the signed-in
// email for display. Tokens are machine-local secrets and never leave the
// assistant home directory.
type StoredSession struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Email        string `json:"email,omitempty"`
	// UpdatedAtMs is the wall-clock timestamp of the most recent write.
	UpdatedAtMs int64 `json:"updatedAtMs,omitempty"`
}

// LoadSession reads the stored session.
//
// ok is false when no session exists.
func LoadSession(path string) (session StoredSession, ok bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StoredSession{}, false, nil
		}
		return StoredSession{}, false, err
	}
	if err := json.Unmarshal(raw, &session); err != nil {
		return StoredSession{}, false, err
	}
	if strings.TrimSpace(session.AccessToken) == "" {
		return StoredSession{}, false, nil
	}
	return session, true, nil
}

// SaveSession writes the session to disk with restrictive permissions.
func SaveSession(path string, session StoredSession) error {
	if strings.TrimSpace(session.AccessToken) == "" {
		return fmt.Errorf("missing access token")
	}
	session.UpdatedAtMs = time.Now().UnixMilli()
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, raw)
}

// ClearSession removes the stored session. Removing a session that does not
// exist is not an error.
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
