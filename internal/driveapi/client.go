// Package driveapi wraps the Google Drive v3 API behind the narrow
// file-store surface the project stores consume.
package driveapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"pressdesk/internal/config"
)

// File is the metadata subset the stores care about.
type File struct {
	ID           string
	Name         string
	Parents      []string
	Trashed      bool
	CreatedTime  time.Time
	ModifiedTime time.Time
	WebViewLink  string
}

// InFolder reports whether the file lives under the given parent.
func (f *File) InFolder(folderID string) bool {
	for _, p := range f.Parents {
		if p == folderID {
			return true
		}
	}
	return false
}

// Client is the remote object-store surface. List filters by parent
// folder and, when name is non-empty, by exact file name.
type Client interface {
	List(ctx context.Context, folderID, name string) ([]File, error)
	Get(ctx context.Context, fileID string) (*File, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	Create(ctx context.Context, name, folderID string, content []byte) (string, error)
	Update(ctx context.Context, fileID string, content []byte) error
	Copy(ctx context.Context, fileID, newName, folderID string) (*File, error)
	Delete(ctx context.Context, fileID string) error
	SharePublic(ctx context.Context, fileID string) error
}

const fileFields = "files(id, name, parents, trashed, createdTime, modifiedTime, webViewLink)"

// Service implements Client against the real Drive API using offline
// OAuth2 credentials.
type Service struct {
	drive *drive.Service
}

// TokenSource builds the refresh-token source shared by the Drive and
// Sheets clients. Missing credential values are a configuration error.
func TokenSource(ctx context.Context, cfg config.GoogleConfig) (oauth2.TokenSource, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("missing Google OAuth2 credentials: set GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN")
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
	}
	return oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}), nil
}

func New(ctx context.Context, cfg config.GoogleConfig) (*Service, error) {
	ts, err := TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Service{drive: svc}, nil
}

func (s *Service) List(ctx context.Context, folderID, name string) ([]File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", folderID)
	if name != "" {
		q += fmt.Sprintf(" and name='%s'", escapeQuery(name))
	}

	call := s.drive.Files.List().
		Q(q).
		Fields(fileFields).
		OrderBy("modifiedTime desc").
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list files in %s: %w", folderID, err)
	}

	files := make([]File, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, fromDriveFile(f))
	}
	return files, nil
}

func (s *Service) Get(ctx context.Context, fileID string) (*File, error) {
	f, err := s.drive.Files.Get(fileID).
		Fields("id, name, parents, trashed, createdTime, modifiedTime, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}
	file := fromDriveFile(f)
	return &file, nil
}

func (s *Service) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := s.drive.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	return data, nil
}

func (s *Service) Create(ctx context.Context, name, folderID string, content []byte) (string, error) {
	f, err := s.drive.Files.Create(&drive.File{
		Name:     name,
		Parents:  []string{folderID},
		MimeType: "application/json",
	}).
		Media(bytes.NewReader(content)).
		Fields("id, name").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", name, err)
	}
	return f.Id, nil
}

func (s *Service) Update(ctx context.Context, fileID string, content []byte) error {
	_, err := s.drive.Files.Update(fileID, &drive.File{}).
		Media(bytes.NewReader(content)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update file %s: %w", fileID, err)
	}
	return nil
}

func (s *Service) Copy(ctx context.Context, fileID, newName, folderID string) (*File, error) {
	req := &drive.File{Name: newName}
	if folderID != "" {
		req.Parents = []string{folderID}
	}
	f, err := s.drive.Files.Copy(fileID, req).
		Fields("id, name, parents, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("copy file %s: %w", fileID, err)
	}
	file := fromDriveFile(f)
	return &file, nil
}

func (s *Service) Delete(ctx context.Context, fileID string) error {
	if err := s.drive.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}

func (s *Service) SharePublic(ctx context.Context, fileID string) error {
	_, err := s.drive.Permissions.Create(fileID, &drive.Permission{
		Role: "reader",
		Type: "anyone",
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("share file %s: %w", fileID, err)
	}
	return nil
}

func fromDriveFile(f *drive.File) File {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return File{
		ID:           f.Id,
		Name:         f.Name,
		Parents:      f.Parents,
		Trashed:      f.Trashed,
		CreatedTime:  created,
		ModifiedTime: modified,
		WebViewLink:  f.WebViewLink,
	}
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
