package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient is an in-memory Directory for tests and the local console.
type MockClient struct {
	mu sync.Mutex

	// Files maps "driveID/path" to file content.
	Files map[string][]byte
	// Latest maps a folder to the name of its latest file.
	Latest map[string]string
	// Links maps a file name to its download URL.
	Links map[string]string
	// Users maps an email to its summary; unknown emails degrade.
	Users    map[string]UserSummary
	Managers map[string]string
	Presence map[string]string
	Photos   map[string]string
	// AutoreplyEnds maps an email to its autoreply end date.
	AutoreplyEnds map[string]string

	SetAutoreplyErr error
	SetOOFErr       error

	Autoreplies  []Autoreply
	OutOfOffices []OutOfOffice
	Lookups      []string
}

var _ Directory = (*MockClient)(nil)

// NewMockClient returns an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{
		Files:         make(map[string][]byte),
		Latest:        make(map[string]string),
		Links:         make(map[string]string),
		Users:         make(map[string]UserSummary),
		Managers:      make(map[string]string),
		Presence:      make(map[string]string),
		Photos:        make(map[string]string),
		AutoreplyEnds: make(map[string]string),
	}
}

func (m *MockClient) record(op, key string) {
	m.mu.Lock()
	m.Lookups = append(m.Lookups, op+":"+key)
	m.mu.Unlock()
}

func (m *MockClient) DownloadFile(_ context.Context, _, driveID, path string) ([]byte, error) {
	m.record("download", path)
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[driveID+"/"+path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, nil
}

func (m *MockClient) ListLatest(_ context.Context, _, _, folder string) (string, error) {
	m.record("latest", folder)
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.Latest[folder]
	if !ok {
		return "", fmt.Errorf("%w: no latest file in %s", ErrNotFound, folder)
	}
	return name, nil
}

func (m *MockClient) ResolveLinks(_ context.Context, _, _, folder string, names []string) (map[string]string, error) {
	m.record("links", folder+":"+strings.Join(names, ","))
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for _, n := range names {
		if u, ok := m.Links[n]; ok {
			out[n] = u
		}
	}
	return out, nil
}

func (m *MockClient) GetUserSummary(_ context.Context, email string) UserSummary {
	m.record("user", email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.Users[email]; ok {
		return u
	}
	return UserSummary{Name: NotAvailable, Title: NotAvailable, Email: NotAvailable}
}

func (m *MockClient) GetManagerName(_ context.Context, email string) string {
	m.record("manager", email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.Managers[email]; ok {
		return v
	}
	return NotAvailable
}

func (m *MockClient) GetPresence(_ context.Context, email string) string {
	m.record("presence", email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.Presence[email]; ok {
		return v
	}
	return NoInfo
}

func (m *MockClient) GetAutoreplyEndDate(_ context.Context, email string) string {
	m.record("mailtips", email)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AutoreplyEnds[email]
}

func (m *MockClient) GetProfilePhoto(_ context.Context, email string) string {
	m.record("photo", email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.Photos[email]; ok {
		return v
	}
	return PlaceholderPhoto()
}

func (m *MockClient) SetAutoreply(_ context.Context, a Autoreply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetAutoreplyErr != nil {
		return m.SetAutoreplyErr
	}
	m.Autoreplies = append(m.Autoreplies, a)
	return nil
}

func (m *MockClient) SetOutOfOfficeEvent(_ context.Context, o OutOfOffice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetOOFErr != nil {
		return m.SetOOFErr
	}
	m.OutOfOffices = append(m.OutOfOffices, o)
	return nil
}
