// Package directory is the facade over the corporate directory and
// collaboration API: document storage, people lookups and mailbox settings.
//
// Read lookups about people never fail; when the remote side is unavailable
// they degrade to placeholders. File operations and mailbox writes return
// errors wrapping ErrRemoteUnavailable.
package directory

import (
	"context"
	"errors"
)

// Placeholders returned by degraded people lookups.
const (
	NotAvailable = "Not Available"
	NoInfo       = "No info"
)

var (
	// ErrRemoteUnavailable is returned when the remote API fails or answers
	// with an unexpected status.
	ErrRemoteUnavailable = errors.New("directory service unavailable")
	// ErrNotFound is returned when a requested file or folder entry is missing.
	ErrNotFound = errors.New("directory entry not found")
)

// UserSummary is the display data of a person.
type UserSummary struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Email string `json:"email"`
}

// Autoreply is a scheduled automatic reply. Dates use the 2006-01-02 layout.
type Autoreply struct {
	Email     string
	Message   string
	StartDate string
	EndDate   string
}

// OutOfOffice is an all-day calendar event shown as out of office.
type OutOfOffice struct {
	Email     string
	Subject   string
	StartDate string
	EndDate   string
}

// Directory is everything the dialogs need from the remote API.
type Directory interface {
	// DownloadFile returns the content of the file at path in a drive.
	DownloadFile(ctx context.Context, siteID, driveID, path string) ([]byte, error)
	// ListLatest returns the name of the file flagged as latest in folder.
	ListLatest(ctx context.Context, siteID, driveID, folder string) (string, error)
	// ResolveLinks maps the requested file names in folder to download URLs.
	// Names that do not exist are absent from the result.
	ResolveLinks(ctx context.Context, siteID, driveID, folder string, names []string) (map[string]string, error)

	GetUserSummary(ctx context.Context, email string) UserSummary
	GetManagerName(ctx context.Context, email string) string
	GetPresence(ctx context.Context, email string) string
	// GetAutoreplyEndDate returns the end of an active autoreply as
	// dd.mm.yyyy, or "" when none is set.
	GetAutoreplyEndDate(ctx context.Context, email string) string
	// GetProfilePhoto returns a 96x96 image as a data URI.
	GetProfilePhoto(ctx context.Context, email string) string

	SetAutoreply(ctx context.Context, a Autoreply) error
	SetOutOfOfficeEvent(ctx context.Context, o OutOfOffice) error
}
