// Package testutil provides a mock VK API server for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockPost is a post served by MockVK.
type MockPost struct {
	ID      int64
	OwnerID int64
	Date    time.Time
	Text    string
	Likes   int
	Reposts int
	Pinned  bool
}

// MockObject is a screen name resolution result.
type MockObject struct {
	Type     string
	ObjectID int64
}

// WallRequest records the parameters of one wall.get call.
type WallRequest struct {
	OwnerID int64
	Offset  int
	Count   int
}

// wallFailure makes wall.get answer with an API error.
type wallFailure struct {
	code    int
	message string
	offset  int // -1 matches any offset
	times   int // -1 fails forever
}

// MockVK is a configurable mock VK API server.
type MockVK struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	walls    map[int64][]MockPost
	names    map[string]MockObject
	failures []*wallFailure
	delay    time.Duration

	// Tracking
	RequestCount int
	wallRequests []WallRequest
}

// NewMockVK creates a new mock VK server.
func NewMockVK() *MockVK {
	mock := &MockVK{
		handlers: make(map[string]http.HandlerFunc),
		walls:    make(map[int64][]MockPost),
		names:    make(map[string]MockObject),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		delay := mock.delay
		mock.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		method := strings.TrimPrefix(r.URL.Path, "/method/")

		mock.mu.RLock()
		handler, exists := mock.handlers[method]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		switch method {
		case "wall.get":
			mock.handleWallGet(w, r)
		case "utils.resolveScreenName":
			mock.handleResolve(w, r)
		default:
			WriteError(w, 3, "Unknown method passed")
		}
	}))

	return mock
}

// URL returns the mock server root URL.
func (m *MockVK) URL() string {
	return m.server.URL
}

// BaseURL returns the method endpoint to configure a client with.
func (m *MockVK) BaseURL() string {
	return m.server.URL + "/method/"
}

// Close shuts down the mock server.
func (m *MockVK) Close() {
	m.server.Close()
}

// Reset clears tracking counters.
func (m *MockVK) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.wallRequests = nil
}

// SetHandler overrides the handler of an API method.
func (m *MockVK) SetHandler(method string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = handler
}

// SetWall sets the posts of a wall, newest first as VK returns them.
func (m *MockVK) SetWall(ownerID int64, posts []MockPost) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walls[ownerID] = posts
}

// SetScreenName registers a resolvable screen name.
func (m *MockVK) SetScreenName(name, objType string, objectID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[name] = MockObject{Type: objType, ObjectID: objectID}
}

// SetDelay delays every response.
func (m *MockVK) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// FailWall makes the next `times` wall.get calls fail with the given API
// error. times < 0 fails forever.
func (m *MockVK) FailWall(code int, message string, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, &wallFailure{code: code, message: message, offset: -1, times: times})
}

// FailWallAt makes wall.get fail at a specific offset. times < 0 fails forever.
func (m *MockVK) FailWallAt(offset, code int, message string, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, &wallFailure{code: code, message: message, offset: offset, times: times})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockVK) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// WallRequests returns the recorded wall.get calls in arrival order.
func (m *MockVK) WallRequests() []WallRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]WallRequest, len(m.wallRequests))
	copy(out, m.wallRequests)
	return out
}

func (m *MockVK) handleWallGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ownerID, _ := strconv.ParseInt(q.Get("owner_id"), 10, 64)
	offset, _ := strconv.Atoi(q.Get("offset"))
	count, err := strconv.Atoi(q.Get("count"))
	if err != nil {
		count = 20
	}

	m.mu.Lock()
	m.wallRequests = append(m.wallRequests, WallRequest{OwnerID: ownerID, Offset: offset, Count: count})
	failure := m.takeFailure(offset)
	posts, exists := m.walls[ownerID]
	m.mu.Unlock()

	if failure != nil {
		WriteError(w, failure.code, failure.message)
		return
	}
	if !exists {
		WriteError(w, 100, "One of the parameters specified was missing or invalid: owner_id is undefined")
		return
	}
	if count < 0 || count > 100 {
		WriteError(w, 100, "One of the parameters specified was missing or invalid: count should be less or equal to 100")
		return
	}

	items := make([]map[string]any, 0, count)
	for i := offset; i < offset+count && i < len(posts); i++ {
		items = append(items, EncodePost(posts[i]))
	}

	WriteResponse(w, map[string]any{
		"count": len(posts),
		"items": items,
	})
}

// takeFailure pops a matching failure rule. Caller holds m.mu.
func (m *MockVK) takeFailure(offset int) *wallFailure {
	for i, f := range m.failures {
		if f.offset >= 0 && f.offset != offset {
			continue
		}
		if f.times > 0 {
			f.times--
			if f.times == 0 {
				m.failures = append(m.failures[:i], m.failures[i+1:]...)
			}
		}
		return f
	}
	return nil
}

func (m *MockVK) handleResolve(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("screen_name")

	m.mu.RLock()
	obj, exists := m.names[name]
	m.mu.RUnlock()

	if !exists {
		WriteResponse(w, []any{})
		return
	}
	WriteResponse(w, map[string]any{
		"type":      obj.Type,
		"object_id": obj.ObjectID,
	})
}

// EncodePost renders a post in wall.get's item format.
func EncodePost(p MockPost) map[string]any {
	item := map[string]any{
		"id":       p.ID,
		"owner_id": p.OwnerID,
		"from_id":  p.OwnerID,
		"date":     p.Date.Unix(),
		"text":     p.Text,
		"likes":    map[string]int{"count": p.Likes},
		"reposts":  map[string]int{"count": p.Reposts},
	}
	if p.Pinned {
		item["is_pinned"] = 1
	}
	return item
}

// WriteResponse writes a successful API envelope.
func WriteResponse(w http.ResponseWriter, response any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"response": response})
}

// WriteError writes an API error envelope. VK reports errors with HTTP 200.
func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"error_code": code,
			"error_msg":  message,
		},
	})
}

// DescendingPosts builds n posts of ownerID, newest first, one per `step`
// going back from newest. Likes decrease with age and reposts cycle so that
// rankings by either metric are non-trivial.
func DescendingPosts(ownerID int64, n int, newest time.Time, step time.Duration) []MockPost {
	posts := make([]MockPost, n)
	for i := range n {
		posts[i] = MockPost{
			ID:      int64(n - i),
			OwnerID: ownerID,
			Date:    newest.Add(-time.Duration(i) * step),
			Text:    "post " + strconv.Itoa(n-i),
			Likes:   (n - i) * 3,
			Reposts: (i * 7) % 11,
		}
	}
	return posts
}
