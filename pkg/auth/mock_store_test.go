package auth

import "sync"

// mockStore is an in-memory CredentialStore with error injection
type mockStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account

	storeErr    error
	retrieveErr error
	listErr     error
}

func newMockStore() *mockStore {
	return &mockStore{accounts: make(map[string]*Account)}
}

func (m *mockStore) Store(account *Account) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = account.clone()
	return nil
}

func (m *mockStore) Retrieve(username string) (*Account, error) {
	if m.retrieveErr != nil {
		return nil, m.retrieveErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return account.clone(), nil
}

func (m *mockStore) List() ([]*Account, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*Account
	for _, account := range m.accounts {
		accounts = append(accounts, account.clone())
	}
	return accounts, nil
}

func (m *mockStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *mockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[username]
	return ok
}

func (m *mockStore) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
