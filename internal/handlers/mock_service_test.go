package handlers

import (
	"context"
	"net/http"
	"sync"

	"printer_monitor/internal/models"
	"printer_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockMonitoring struct {
	states  []models.DeviceState
	listErr error
}

func (m *mockMonitoring) GetState(_ context.Context, id string) (models.DeviceState, error) {
	for _, st := range m.states {
		if st.DeviceID == id {
			return st, nil
		}
	}
	return models.DeviceState{}, service.ErrDeviceNotFound
}

func (m *mockMonitoring) ListStates(context.Context) ([]models.DeviceState, error) {
	return m.states, m.listErr
}

type switchCall struct {
	id string
	on bool
}

type mockControl struct {
	switchErr   error
	resetErr    error
	switchCalls []switchCall
	resetCalls  []string
}

func (m *mockControl) SetSwitch(_ context.Context, id string, on bool) error {
	m.switchCalls = append(m.switchCalls, switchCall{id: id, on: on})
	return m.switchErr
}

func (m *mockControl) Reset(_ context.Context, id string) error {
	m.resetCalls = append(m.resetCalls, id)
	return m.resetErr
}

type mockHistory struct {
	resp       []models.HistoryEntry
	err        error
	lastFilter service.HistoryFilter
	calls      int
}

func (m *mockHistory) List(_ context.Context, f service.HistoryFilter) ([]models.HistoryEntry, error) {
	m.calls++
	m.lastFilter = f
	return m.resp, m.err
}

// eventSourceStub hands out one channel per subscription and lets tests push into all of them.
type eventSourceStub struct {
	mu     sync.Mutex
	subs   []chan models.StateEvent
	subbed chan struct{}
}

func newEventSourceStub() *eventSourceStub {
	return &eventSourceStub{subbed: make(chan struct{}, 8)}
}

func (s *eventSourceStub) Subscribe(buffer int) (<-chan models.StateEvent, func()) {
	ch := make(chan models.StateEvent, buffer)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	s.subbed <- struct{}{}
	return ch, func() {}
}

func (s *eventSourceStub) push(ev models.StateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		ch <- ev
	}
}

func (s *eventSourceStub) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, nil, nil)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// okAuth accepts any bearer token.
func okAuth() *mockAuth { return &mockAuth{parseID: 1} }
