package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chakriappu140/collaborative-study-planner/internal/config"
	"github.com/chakriappu140/collaborative-study-planner/internal/database"
	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/notify"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/internal/services"
	"github.com/chakriappu140/collaborative-study-planner/internal/storage"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
)

const testFrontendURL = "http://localhost:5173"

type testEnv struct {
	app      *fiber.App
	store    *store.Store
	hub      *realtime.Hub
	objects  *memoryStorage
	handlers Handlers
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.InitWithWriter(io.Discard)
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := database.Open(config.DBConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st := store.New(db)
	objects := newMemoryStorage()
	access := services.NewAccessService(st)
	hub := realtime.NewHub()
	manager := realtime.NewManager(hub, access, realtime.Options{WriteTimeout: 5 * time.Second})
	engine := notify.NewEngine(st, hub)
	auth := middleware.NewAuthMiddleware(st)

	h := Handlers{
		Users:          NewUsersHandler(st, objects),
		Groups:         NewGroupsHandler(st, access, hub, engine, testFrontendURL, time.Hour),
		Tasks:          NewTasksHandler(st, access, hub, engine),
		Calendar:       NewCalendarHandler(st, access, hub, engine),
		Messages:       NewMessagesHandler(st, access, hub, engine),
		DirectMessages: NewDirectMessagesHandler(st, hub, engine),
		Files:          NewFilesHandler(st, objects, access, hub, engine),
		Notifications:  NewNotificationsHandler(st),
		Realtime:       NewRealtimeHandler(ctx, manager, auth, false),
	}

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(testFrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	RegisterRoutes(app, h, auth)

	return &testEnv{app: app, store: st, hub: hub, objects: objects, handlers: h}
}

func createTestUser(t *testing.T, st *store.Store, name, email string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword("password123")
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		AvatarURL:    models.DefaultAvatarURL,
	}
	if err := st.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

// createTestGroup creates a group owned by admin with the extra members
// already joined.
func createTestGroup(t *testing.T, st *store.Store, name string, admin *models.User, members ...*models.User) *models.Group {
	t.Helper()

	group := &models.Group{Name: name, AdminID: admin.ID}
	if err := st.CreateGroup(context.Background(), group); err != nil {
		t.Fatalf("failed creating test group: %v", err)
	}
	for _, m := range members {
		if err := st.AddMember(context.Background(), group.ID, m.ID); err != nil {
			t.Fatalf("failed adding member: %v", err)
		}
	}
	return group
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

// performUpload sends a single file part named field.
func performUpload(t *testing.T, app *fiber.App, method, path, field, filename, contentType, content string, headers map[string]string) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed creating multipart part: %v", err)
	}
	_, _ = io.WriteString(part, content)
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{"Content-Type": writer.FormDataContentType()}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T (%+v)", body["data"], body)
	}
	return data
}

func dataList(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %T (%+v)", body["data"], body)
	}
	return data
}

func notificationsFor(t *testing.T, st *store.Store, userID uuid.UUID) []models.Notification {
	t.Helper()
	list, err := st.Notifications.FindMany(context.Background(), store.Query{
		Where: store.Filter{"user_id": userID},
		Order: "created_at ASC",
	})
	if err != nil {
		t.Fatalf("failed loading notifications: %v", err)
	}
	return list
}

// roomRecorder is a realtime connection that keeps every frame it is sent.
type roomRecorder struct {
	id     string
	mu     sync.Mutex
	frames []realtime.Envelope
}

func listen(t *testing.T, hub *realtime.Hub, rooms ...string) *roomRecorder {
	t.Helper()
	rec := &roomRecorder{id: uuid.NewString()}
	for _, room := range rooms {
		hub.Join(rec, room)
	}
	t.Cleanup(func() { hub.Remove(rec.id) })
	return rec
}

func (r *roomRecorder) ID() string { return r.id }

func (r *roomRecorder) Send(frame []byte) bool {
	var env realtime.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return false
	}
	r.mu.Lock()
	r.frames = append(r.frames, env)
	r.mu.Unlock()
	return true
}

func (r *roomRecorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.frames))
	for i, f := range r.frames {
		names[i] = f.Event
	}
	return names
}

// last decodes the payload of the most recent event with the given name.
func (r *roomRecorder) last(t *testing.T, event string, dst any) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].Event == event {
			if err := json.Unmarshal(r.frames[i].Data, dst); err != nil {
				t.Fatalf("failed decoding %s payload: %v", event, err)
			}
			return
		}
	}
	t.Fatalf("no %s event received; got %v", event, r.events())
}

func (r *roomRecorder) count(event string) int {
	n := 0
	for _, name := range r.events() {
		if name == event {
			n++
		}
	}
	return n
}

// memoryStorage is an in-process ObjectStorage.
type memoryStorage struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failDelete bool
}

var _ storage.ObjectStorage = (*memoryStorage)(nil)

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return errors.New("storage unavailable")
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) ObjectURL(key string) string {
	return "http://objects.test/studyplanner/" + key
}

func (m *memoryStorage) has(prefix string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (m *memoryStorage) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// asList treats a JSON null as an empty array.
func asList(v any) []any {
	list, _ := v.([]any)
	return list
}
