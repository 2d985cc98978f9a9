package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/momspace/momspace_backend/database"
	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/ratelimit"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestDB opens a fresh in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// authAs injects an authenticated user the way the JWT middleware does.
func authAs(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

// stubPublisher records published events instead of pushing them.
type stubPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	topic     string
	eventType string
	payload   interface{}
}

func (p *stubPublisher) Publish(topic, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, eventType: eventType, payload: payload})
}

func (p *stubPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// stubLimiter returns a canned decision for every key.
type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error

	mu   sync.Mutex
	keys []string
}

func allowAll() *stubLimiter {
	return &stubLimiter{allowed: true}
}

func denyFor(retryAfter time.Duration) *stubLimiter {
	return &stubLimiter{allowed: false, retryAfter: retryAfter}
}

func (l *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}
	return &ratelimit.Result{Allowed: l.allowed, RetryAfter: l.retryAfter}, nil
}

// stubAuditor records audit calls.
type stubAuditor struct {
	mu      sync.Mutex
	records []auditRecord
}

type auditRecord struct {
	reportID  uint
	userAgent string
	ip        string
}

func (a *stubAuditor) RecordReport(reportID uint, userAgent, ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditRecord{reportID: reportID, userAgent: userAgent, ip: ip})
}

func (a *stubAuditor) recorded() []auditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]auditRecord, len(a.records))
	copy(out, a.records)
	return out
}

// doJSON performs a request with an optional JSON body against a router.
func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// seedUser inserts a user and returns its id.
func seedUser(t *testing.T, db *gorm.DB, username string) uint {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

// seedSpace inserts a space with a default channel and returns both.
func seedSpace(t *testing.T, db *gorm.DB, space models.Space) (models.Space, models.Channel) {
	t.Helper()
	if space.Visibility == "" {
		space.Visibility = models.VisibilityPublic
	}
	if space.MaxMembers == 0 {
		space.MaxMembers = models.MaxMembersFor(space.Visibility)
	}
	require.NoError(t, db.Create(&space).Error)

	channel := models.Channel{SpaceID: space.ID, Name: "general", IsDefault: true}
	require.NoError(t, db.Create(&channel).Error)
	return space, channel
}

// seedMember adds a membership and bumps the space's member count.
func seedMember(t *testing.T, db *gorm.DB, spaceID, userID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.SpaceMember{SpaceID: spaceID, UserID: userID}).Error)
	require.NoError(t, db.Model(&models.Space{}).Where("id = ?", spaceID).
		UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error)
}
