package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/utils"
)

// SpaceDirectory wraps space search and membership. It caches nothing
// beyond the current result list.
type SpaceDirectory struct {
	gw Gateway

	mu      sync.Mutex
	results []SpaceResult
	lastErr string
}

func NewSpaceDirectory(gw Gateway) *SpaceDirectory {
	return &SpaceDirectory{gw: gw}
}

// Search fetches spaces matching the query and replaces the result list.
func (d *SpaceDirectory) Search(ctx context.Context, query string, limit int) ([]SpaceResult, error) {
	results, err := d.gw.SearchSpaces(ctx, query, limit)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.lastErr = err.Error()
		return nil, err
	}

	d.results = results
	d.lastErr = ""
	return results, nil
}

// Join adds the caller to a space. When the cached result marks the space
// as not joinable the call returns a nil result without issuing the
// write.
func (d *SpaceDirectory) Join(ctx context.Context, spaceID uint) (*JoinResult, error) {
	d.mu.Lock()
	for _, r := range d.results {
		if r.ID == spaceID && !r.CanJoin {
			d.mu.Unlock()
			return nil, nil
		}
	}
	d.mu.Unlock()

	result, err := d.gw.JoinSpace(ctx, spaceID)
	if err != nil {
		d.setError(err)
		return nil, err
	}
	return result, nil
}

// Leave removes the caller from a space; leaving twice is not an error.
func (d *SpaceDirectory) Leave(ctx context.Context, spaceID uint) (bool, error) {
	ok, err := d.gw.LeaveSpace(ctx, spaceID)
	if err != nil {
		d.setError(err)
		return false, err
	}
	return ok, nil
}

// Create validates the request locally and creates the space. The bounds
// mirror the server's so obviously bad input never leaves the device.
func (d *SpaceDirectory) Create(ctx context.Context, req CreateSpaceRequest) (*models.Space, error) {
	if !utils.ValidateSpaceName(req.Name) {
		return nil, errors.New("space name must be between 1 and 100 characters")
	}
	if len(req.Description) > utils.MaxDescriptionLength {
		return nil, errors.New("description too long")
	}
	if len(req.Tags) > models.MaxSpaceTags {
		return nil, errors.New("too many tags")
	}
	switch req.Visibility {
	case "", models.VisibilityPublic, models.VisibilityPrivate:
	default:
		return nil, errors.New("invalid visibility")
	}

	req.Name = strings.TrimSpace(req.Name)
	space, err := d.gw.CreateSpace(ctx, req)
	if err != nil {
		d.setError(err)
		return nil, err
	}
	return space, nil
}

// Results returns the current result list.
func (d *SpaceDirectory) Results() []SpaceResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SpaceResult, len(d.results))
	copy(out, d.results)
	return out
}

// Err returns the last gateway error surfaced by the directory.
func (d *SpaceDirectory) Err() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *SpaceDirectory) setError(err error) {
	d.mu.Lock()
	d.lastErr = err.Error()
	d.mu.Unlock()
}
