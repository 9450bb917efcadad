package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads a single session from IGCRAWLER_SESSION_ID,
// IGCRAWLER_CSRF_TOKEN and optionally IGCRAWLER_USERNAME, IGCRAWLER_DS_USER_ID
// and IGCRAWLER_USER_AGENT. It is read-only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment session. A non-empty username must match
// IGCRAWLER_USERNAME when that is set.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	sessionID := os.Getenv("IGCRAWLER_SESSION_ID")
	csrfToken := os.Getenv("IGCRAWLER_CSRF_TOKEN")
	if sessionID == "" || csrfToken == "" {
		return nil, ErrCredentialsNotFound
	}

	envUser := os.Getenv("IGCRAWLER_USERNAME")
	switch {
	case username == "" && envUser == "":
		username = "default"
	case username == "":
		username = envUser
	case envUser != "" && envUser != username:
		return nil, ErrCredentialsNotFound
	}

	cookies := map[string]string{
		"sessionid": sessionID,
		"csrftoken": csrfToken,
	}
	if dsUserID := os.Getenv("IGCRAWLER_DS_USER_ID"); dsUserID != "" {
		cookies["ds_user_id"] = dsUserID
	}

	return &Account{
		Username:     username,
		Cookies:      cookies,
		UserAgent:    os.Getenv("IGCRAWLER_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
