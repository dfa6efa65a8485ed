package controller_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"docchat-cli/internal/model"
)

const welcome = "👋 I'm your chat bot. You can ask me anything or upload a document to get started!"

type fakeThread struct {
	thread   model.Thread
	messages []model.Message
	docs     []model.Document
}

// fakeServer 模拟文档问答服务
type fakeServer struct {
	mu        sync.Mutex
	srv       *httptest.Server
	token     string
	threads   []*fakeThread // 创建时间倒序
	nextID    int64
	nextMsgID int64
	calls     map[string]int
	fail      map[string]int // 路由名 -> 返回的状态码
	gates     map[string]chan struct{} // "get:101"、"send:101"、"list" 等
	arrived   chan string
	welcome   bool // 新建会话时是否附带欢迎消息
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		token:   "T1",
		nextID:  100,
		calls:   map[string]int{},
		fail:    map[string]int{},
		gates:   map[string]chan struct{}{},
		arrived: make(chan string, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", f.handleLogin)
	mux.HandleFunc("POST /auth/register/", f.handleRegister)
	mux.HandleFunc("POST /auth/logout/", f.authed("logout", f.handleLogout))
	mux.HandleFunc("GET /auth/user/", f.authed("user", f.handleUser))
	mux.HandleFunc("GET /threads/", f.authed("list", f.handleList))
	mux.HandleFunc("POST /threads/", f.authed("create", f.handleCreate))
	mux.HandleFunc("GET /threads/{id}/", f.authed("get", f.handleGet))
	mux.HandleFunc("DELETE /threads/{id}/", f.authed("delete", f.handleDelete))
	mux.HandleFunc("POST /threads/{id}/send_message/", f.authed("send", f.handleSend))
	mux.HandleFunc("POST /threads/{id}/upload_document/", f.authed("upload", f.handleUpload))

	f.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.mu.Lock()
		for id, ch := range f.gates {
			close(ch)
			delete(f.gates, id)
		}
		f.mu.Unlock()
		f.srv.Close()
	})
	return f
}

func (f *fakeServer) URL() string { return f.srv.URL }

// Close 让后续请求都无法连接
func (f *fakeServer) Close() { f.srv.Close() }

func (f *fakeServer) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *fakeServer) FailWith(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[route] = status
}

// Gate 阻塞该会话的详情请求，直到调用返回的 release
func (f *fakeServer) Gate(id int64) (release func()) {
	return f.gate(threadKey("get", id))
}

// GateSend 阻塞该会话的提问请求
func (f *fakeServer) GateSend(id int64) (release func()) {
	return f.gate(threadKey("send", id))
}

// GateLogin 阻塞登录请求
func (f *fakeServer) GateLogin() (release func()) {
	return f.gate("login")
}

// GateList 阻塞会话列表请求
func (f *fakeServer) GateList() (release func()) {
	return f.gate("list")
}

func (f *fakeServer) gate(key string) func() {
	// 丢弃之前的到达记录，等待时只会看到拦截之后的请求
	for drained := false; !drained; {
		select {
		case <-f.arrived:
		default:
			drained = true
		}
	}

	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[key] = ch
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.gates[key] == ch {
			delete(f.gates, key)
			close(ch)
		}
	}
}

// hold 请求被 gate 拦住时阻塞，返回 false 表示客户端已放弃
func (f *fakeServer) hold(r *http.Request, key string) bool {
	f.mu.Lock()
	gate := f.gates[key]
	f.mu.Unlock()

	if gate == nil {
		select {
		case f.arrived <- key:
		default:
		}
		return true
	}
	f.arrived <- key
	select {
	case <-gate:
		return true
	case <-r.Context().Done():
		return false
	}
}

// WaitArrived 等待某个详情请求到达服务端
func (f *fakeServer) WaitArrived(t *testing.T, id int64) {
	t.Helper()
	f.waitFor(t, threadKey("get", id))
}

// WaitSendArrived 等待某个提问请求到达服务端
func (f *fakeServer) WaitSendArrived(t *testing.T, id int64) {
	t.Helper()
	f.waitFor(t, threadKey("send", id))
}

// WaitListArrived 等待列表请求到达服务端
func (f *fakeServer) WaitListArrived(t *testing.T) {
	t.Helper()
	f.waitFor(t, "list")
}

func (f *fakeServer) waitFor(t *testing.T, key string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.arrived:
			if got == key {
				return
			}
		case <-timeout:
			t.Fatalf("request %s never arrived", key)
		}
	}
}

func threadKey(route string, id int64) string {
	return route + ":" + strconv.FormatInt(id, 10)
}

// Seed 添加一个已有会话，返回 id
func (f *fakeServer) Seed(title string, msgs ...string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ft := &fakeThread{thread: model.Thread{ID: f.nextID, Title: title, CreatedAt: time.Now()}}
	for i, content := range msgs {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		ft.messages = append(ft.messages, f.newMessageLocked(role, content))
	}
	f.threads = append([]*fakeThread{ft}, f.threads...)
	return ft.thread.ID
}

func (f *fakeServer) newMessageLocked(role model.Role, content string) model.Message {
	f.nextMsgID++
	return model.Message{ID: f.nextMsgID, Role: role, Content: content, Sources: []model.Source{}, CreatedAt: time.Now()}
}

func (f *fakeServer) findLocked(r *http.Request) (*fakeThread, int) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, -1
	}
	for i, ft := range f.threads {
		if ft.thread.ID == id {
			return ft, i
		}
	}
	return nil, -1
}

func (f *fakeServer) authed(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[route]++
		status := f.fail[route]
		token := f.token
		f.mu.Unlock()

		if r.Header.Get("Authorization") != "Token "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
			return
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": "injected " + route + " failure"})
			return
		}
		h(w, r)
	}
}

func (f *fakeServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls["login"]++
	f.mu.Unlock()

	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if !f.hold(r, "login") {
		return
	}
	if body["username"] != "alice" || body["password"] != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": f.token,
		"user":  model.User{ID: 1, Username: "alice"},
	})
}

func (f *fakeServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body["username"] == "alice" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token": f.token,
		"user":  model.User{ID: 2, Username: body["username"], Email: body["email"]},
	})
}

func (f *fakeServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (f *fakeServer) handleUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.User{ID: 1, Username: "alice"})
}

func (f *fakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	if !f.hold(r, "list") {
		return
	}

	f.mu.Lock()
	list := make([]model.Thread, 0, len(f.threads))
	for _, ft := range f.threads {
		t := ft.thread
		t.MessageCount = len(ft.messages)
		list = append(list, t)
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (f *fakeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.nextID++
	ft := &fakeThread{thread: model.Thread{ID: f.nextID, Title: "New Chat", CreatedAt: time.Now()}}
	if f.welcome {
		ft.messages = append(ft.messages, f.newMessageLocked(model.RoleAssistant, welcome))
	}
	f.threads = append([]*fakeThread{ft}, f.threads...)
	t := ft.thread
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, t)
}

func (f *fakeServer) handleGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	ft, _ := f.findLocked(r)
	f.mu.Unlock()

	if ft == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	if !f.hold(r, threadKey("get", ft.thread.ID)) {
		return
	}

	f.mu.Lock()
	d := model.ThreadDetail{
		Thread:    ft.thread,
		Messages:  append([]model.Message{}, ft.messages...),
		Documents: append([]model.Document{}, ft.docs...),
	}
	d.MessageCount = len(ft.messages)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, d)
}

func (f *fakeServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	_, idx := f.findLocked(r)
	if idx >= 0 {
		f.threads = append(f.threads[:idx], f.threads[idx+1:]...)
	}
	f.mu.Unlock()

	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeServer) handleSend(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if !f.hold(r, "send:"+r.PathValue("id")) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ft, _ := f.findLocked(r)
	if ft == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	if body["message"] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message content is required"})
		return
	}

	userMsg := f.newMessageLocked(model.RoleUser, body["message"])
	answer := f.newMessageLocked(model.RoleAssistant, "answer to "+body["message"])
	answer.Sources = []model.Source{{Content: "page 1"}}
	ft.messages = append(ft.messages, userMsg, answer)
	if ft.thread.Title == "New Chat" {
		ft.thread.Title = body["message"]
	}
	writeJSON(w, http.StatusOK, model.MessagePair{UserMessage: userMsg, AssistantMessage: answer})
}

func (f *fakeServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer file.Close()
	_, _ = io.Copy(io.Discard, file)

	f.mu.Lock()
	defer f.mu.Unlock()
	ft, _ := f.findLocked(r)
	if ft == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}

	doc := model.Document{ID: int64(len(ft.docs) + 1), Title: hdr.Filename, FileType: "pdf", Processed: true}
	ft.docs = append(ft.docs, doc)
	ft.thread.Title = hdr.Filename + " Chat"

	resp := map[string]interface{}{"document": doc, "thread_title": ft.thread.Title}
	if len(ft.messages) > 0 {
		ft.messages[0].Content = welcome + "📄 I have access to your uploaded document."
		resp["updated_message_id"] = ft.messages[0].ID
	}
	writeJSON(w, http.StatusCreated, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
