package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/harrison/orchestra/internal/coordinator"
	"github.com/harrison/orchestra/internal/filelock"
	"github.com/harrison/orchestra/internal/models"
	"github.com/harrison/orchestra/internal/orchestrator"
)

// Server adapts an orchestrator run to JSON-RPC 2.0 over HTTP (spec.md
// §4.10). One Server serves one workspace: message/send kicks off an
// orchestrator.Execute run in the background and returns immediately;
// tasks/get polls its progress; tasks/cancel requests cancellation. Each run
// takes the workspace's file lock so it still serializes against a CLI
// `orchestra run` pointed at the same workspace root.
type Server struct {
	Coordinator   *coordinator.Coordinator
	Orchestrator  *orchestrator.Orchestrator
	Card          AgentCard
	WorkspaceRoot string

	mu    sync.Mutex
	tasks map[string]*taskRecord
}

// NewServer constructs a Server for one workspace's coordinator/orchestrator pair.
func NewServer(coord *coordinator.Coordinator, orch *orchestrator.Orchestrator, workspaceRoot string, card AgentCard) *Server {
	return &Server{
		Coordinator:   coord,
		Orchestrator:  orch,
		Card:          card,
		WorkspaceRoot: workspaceRoot,
		tasks:         make(map[string]*taskRecord),
	}
}

// Router builds the chi mux: the JSON-RPC endpoint and the agent-card
// discovery endpoint, with permissive CORS for browser-based A2A clients.
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Post("/a2a", s.handleRPC)
	r.Get("/.well-known/agent-card.json", s.handleAgentCard)
	return r
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Card)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, errorResponse(nil, CodeParseError, "invalid JSON-RPC request"))
		return
	}

	switch req.Method {
	case "message/send":
		s.handleMessageSend(w, req)
	case "tasks/get":
		s.handleTasksGet(w, req)
	case "tasks/cancel":
		s.handleTasksCancel(w, req)
	default:
		writeResponse(w, errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method)))
	}
}

func writeResponse(w http.ResponseWriter, resp Response) {
	json.NewEncoder(w).Encode(resp)
}

func concatText(msg Message) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func (s *Server) handleMessageSend(w http.ResponseWriter, req Request) {
	var params MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeResponse(w, errorResponse(req.ID, CodeInvalidParams, "invalid message/send params"))
		return
	}
	text := concatText(params.Message)
	if strings.TrimSpace(text) == "" {
		writeResponse(w, errorResponse(req.ID, CodeInvalidParams, "message has no text parts"))
		return
	}

	contextID := params.Message.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	taskID := uuid.NewString()
	now := time.Now()

	runCtx, cancel := context.WithCancel(context.Background())
	record := newTaskRecord(taskID, contextID, cancel, now)

	s.mu.Lock()
	s.tasks[taskID] = record
	s.mu.Unlock()

	go s.runOrchestration(runCtx, record, text)

	writeResponse(w, resultResponse(req.ID, record.snapshot(s.liveTaskStatus)))
}

// runOrchestration drives one orchestrator.Execute call for a message/send
// request, updating record as the run progresses and completes.
func (s *Server) runOrchestration(ctx context.Context, record *taskRecord, text string) {
	lock := filelock.NewFileLock(filepath.Join(s.WorkspaceRoot, ".orchestra.lock"))
	if err := lock.Lock(); err != nil {
		record.setState(StateFailed, fmt.Sprintf("acquire workspace lock: %v", err), time.Now())
		return
	}
	defer lock.Unlock()

	record.setState(StateWorking, "orchestration running", time.Now())

	result := s.Orchestrator.Execute(ctx, text)

	taskIDs := make([]string, len(result.Tasks))
	for i, t := range result.Tasks {
		taskIDs[i] = t.ID
	}
	record.setLinkedTasks(taskIDs, time.Now())

	switch result.Kind {
	case models.OutcomeSuccess:
		record.setState(StateCompleted, "orchestration completed", time.Now())
		record.setCompletionSummary(summarizeTasks(result.Tasks), time.Now())
	case models.OutcomeNoTasks:
		record.setState(StateRejected, "plan contained no tasks", time.Now())
	case models.OutcomeMaxWavesReached:
		record.setState(StateInputRequired, "max waves reached without approval", time.Now())
		record.setCompletionSummary(summarizeTasks(result.Tasks), time.Now())
	case models.OutcomeFailed:
		record.setState(StateFailed, result.Err.Error(), time.Now())
	case models.OutcomeCancelled:
		record.setState(StateCanceled, "cancellation requested", time.Now())
		record.setCompletionSummary(summarizeTasks(result.Tasks), time.Now())
	}
}

func summarizeTasks(tasks []models.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "%s: %s\n", t.Title, t.Status)
	}
	return b.String()
}

func (s *Server) liveTaskStatus(taskID string) (models.TaskStatus, bool) {
	task, found, err := s.Coordinator.Tasks.Get(context.Background(), taskID)
	if err != nil || !found {
		return "", false
	}
	return task.Status, true
}

func (s *Server) getRecord(id string) (*taskRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tasks[id]
	return r, ok
}

func (s *Server) handleTasksGet(w http.ResponseWriter, req Request) {
	var params TaskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeResponse(w, errorResponse(req.ID, CodeInvalidParams, "invalid tasks/get params"))
		return
	}
	record, found := s.getRecord(params.ID)
	if !found {
		writeResponse(w, errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("task %s not found", params.ID)))
		return
	}
	writeResponse(w, resultResponse(req.ID, record.snapshot(s.liveTaskStatus)))
}

func (s *Server) handleTasksCancel(w http.ResponseWriter, req Request) {
	var params TaskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeResponse(w, errorResponse(req.ID, CodeInvalidParams, "invalid tasks/cancel params"))
		return
	}
	record, found := s.getRecord(params.ID)
	if !found {
		writeResponse(w, errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("task %s not found", params.ID)))
		return
	}

	record.mu.Lock()
	cancel := record.cancel
	record.mu.Unlock()
	s.Orchestrator.StopExecution()
	if cancel != nil {
		cancel()
	}
	// A no-op here means runOrchestration already wrote a terminal state
	// (completed/failed/rejected) before the cancellation landed; the
	// snapshot below reflects whichever state actually won.
	record.setState(StateCanceled, "cancellation requested", time.Now())
	writeResponse(w, resultResponse(req.ID, record.snapshot(s.liveTaskStatus)))
}
