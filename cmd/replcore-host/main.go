// Command replcore-host is a reference host process for replcore: it reads
// newline-delimited JSON commands from stdin, drives a Session and an
// interp.Evaluator against them, and writes newline-delimited JSON frames to
// stdout (§6's host command protocol). Real deployments are expected to
// embed the replcore/interp packages directly rather than shell out to this
// binary; it exists to exercise the wire protocol end to end and as a
// runnable example of wiring a Bridge to concrete tools.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/docker/docker/client"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnscript/replcore"
	"github.com/turnscript/replcore/interp"
	"github.com/turnscript/replcore/internal/config"
	"github.com/turnscript/replcore/internal/telemetry"
	"github.com/turnscript/replcore/store/postgres"
	"github.com/turnscript/replcore/store/sqlite"
	"github.com/turnscript/replcore/tools/file"
	"github.com/turnscript/replcore/tools/shell"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := os.Getenv("REPLCORE_CONFIG")
	if cfgPath == "" {
		cfgPath = "replcore.toml"
	}
	cfg := config.Load(cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var inst *telemetry.Instruments
	if cfg.Telemetry.Enabled {
		var err error
		var shutdown func(context.Context) error
		inst, shutdown, err = telemetry.Init(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			logger.Error("telemetry init failed, continuing without it", "error", err)
			inst = nil
		} else {
			defer func() {
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutCtx); err != nil {
					logger.Error("telemetry shutdown failed", "error", err)
				}
			}()
		}
	}

	snapStore, closeStore := buildSnapshotStore(ctx, cfg, logger)
	if closeStore != nil {
		defer closeStore()
	}

	dockerCli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		logger.Error("docker client init failed, shell tool will error on use", "error", err)
	}
	shellRunner := shell.NewRunner(dockerAdapter{cli: dockerCli}, cfg.Sandbox.Image, cfg.Sandbox.WorkingDir,
		time.Duration(cfg.Sandbox.TimeoutSec)*time.Second, cfg.Sandbox.MemoryMB)
	fileTool := file.New(cfg.Sandbox.WorkingDir)

	out := newFrameWriter(os.Stdout)
	bridge := &hostBridge{shell: shellRunner, file: fileTool, out: out, workspaceDir: cfg.Sandbox.WorkingDir}

	h := &host{
		in:        bufio.NewReaderSize(os.Stdin, 1<<20),
		out:       out,
		bridge:    bridge,
		snapStore: snapStore,
		inst:      inst,
		logger:    logger,
	}

	if err := h.run(ctx); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("host loop exited with error", "error", err)
		os.Exit(1)
	}
}

func buildSnapshotStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (replcore.SnapshotStore, func()) {
	switch cfg.Snapshot.Backend {
	case "sqlite":
		st := sqlite.New(cfg.Snapshot.Path)
		if err := st.Init(ctx); err != nil {
			logger.Error("sqlite snapshot store init failed", "error", err)
			return nil, func() { st.Close() }
		}
		return st, func() { st.Close() }
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Snapshot.DSN)
		if err != nil {
			logger.Error("postgres pool init failed", "error", err)
			return nil, nil
		}
		st := postgres.New(pool)
		if err := st.Init(ctx); err != nil {
			logger.Error("postgres snapshot store init failed", "error", err)
		}
		return st, pool.Close
	default:
		return nil, nil
	}
}

// errShutdown signals a clean exit requested by a shutdown command.
var errShutdown = errors.New("replcore-host: shutdown requested")

// frameWriter serialises concurrent writers (exec_result replies race with
// fire-and-forget message frames from say()/done()) onto stdout, one JSON
// value per line.
type frameWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newFrameWriter(w *os.File) *frameWriter {
	return &frameWriter{enc: json.NewEncoder(w)}
}

func (f *frameWriter) writeJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enc.Encode(v)
}

func (f *frameWriter) writeRaw(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var v json.RawMessage = payload
	return f.enc.Encode(v)
}

// hostBridge implements replcore.Bridge by dispatching InvokeTool calls
// straight to in-process tool implementations (shell, file) rather than
// round-tripping over the wire protocol — the wire protocol's exec/
// snapshot/restore/reset commands are the outer control loop a driving LLM
// host speaks; tool dispatch within a single exec stays local to this
// process.
type hostBridge struct {
	shell        *shell.Runner
	file         *file.Tool
	out          *frameWriter
	workspaceDir string
}

func (b *hostBridge) SendMessage(ctx context.Context, payload []byte) error {
	return b.out.writeRaw(payload)
}

func (b *hostBridge) InvokeTool(ctx context.Context, callID, name string, argsJSON []byte) ([]byte, error) {
	var params map[string]any
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return envelope(false, fmt.Sprintf("decoding args: %v", err))
	}

	var result string
	var err error
	switch name {
	case "shell":
		result, err = b.shell.Run(ctx, params)
	case "read_file":
		result, err = b.file.ReadFile(params)
	case "write_file":
		result, err = b.file.WriteFile(params)
	case "edit_file":
		result, err = b.file.EditFile(params)
	case "find_replace":
		result, err = b.file.FindReplace(params)
	case "diff_file":
		result, err = b.file.DiffFile(params)
	case "enter_plan_mode":
		result, err = enterPlanMode(b.workspaceDir)
	case "exit_plan_mode":
		decision, _ := params["decision"].(string)
		result, err = exitPlanMode(b.workspaceDir, decision)
	default:
		return envelope(false, fmt.Sprintf("unknown tool %q", name))
	}
	if err != nil {
		return envelope(false, err.Error())
	}
	return envelope(true, result)
}

func (b *hostBridge) AskUser(ctx context.Context, payload []byte) (string, error) {
	if err := b.out.writeRaw(payload); err != nil {
		return "", err
	}
	return "", errors.New("replcore-host: interactive ask() requires a driving host attached to stdin; the reference binary has no such loop wired")
}

func envelope(success bool, result string) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"success": success, "result": json.RawMessage(raw)})
}

// host owns the stdio command loop: one Session built from the init
// message, repeatedly driven by exec/snapshot/restore/reset/shutdown
// commands until shutdown or EOF.
type host struct {
	in        *bufio.Reader
	out       *frameWriter
	bridge    *hostBridge
	snapStore replcore.SnapshotStore
	inst      *telemetry.Instruments
	logger    *slog.Logger

	session  *replcore.Session
	defs     []replcore.ToolDef
	agentID  string
	headless bool
}

func (h *host) run(ctx context.Context) error {
	line, err := h.in.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("replcore-host: reading init message: %w", err)
	}
	var init replcore.InitMessage
	if err := json.Unmarshal(line, &init); err != nil {
		return fmt.Errorf("replcore-host: decoding init message: %w", err)
	}
	h.defs = init.Tools
	h.agentID = init.AgentID
	h.headless = init.Headless
	h.session = replcore.NewSession(h.bridge, h.defs, h.agentID, h.headless)

	if h.snapStore != nil {
		if rec, ok, err := h.snapStore.Load(ctx, h.agentID); err != nil {
			h.logger.Error("snapshot load failed", "agent_id", h.agentID, "error", err)
		} else if ok {
			if err := h.session.Restore(rec.NamespaceBlob); err != nil {
				h.logger.Error("snapshot restore failed", "agent_id", h.agentID, "error", err)
			}
		}
	}

	if err := h.out.writeJSON(replcore.ReadyMessage{Type: "ready"}); err != nil {
		return err
	}

	for {
		line, err := h.in.ReadBytes('\n')
		if err != nil {
			return nil // EOF: host closed stdin, exit cleanly
		}
		if len(bytesTrim(line)) == 0 {
			continue
		}
		var cmd replcore.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			h.logger.Error("decoding command failed", "error", err)
			continue
		}
		if cmd.Type == "shutdown" {
			h.session.Close()
			return errShutdown
		}
		h.handle(ctx, cmd)
	}
}

func (h *host) handle(ctx context.Context, cmd replcore.Command) {
	switch cmd.Type {
	case "exec":
		h.handleExec(ctx, cmd)
	case "snapshot":
		h.handleSnapshot(ctx, cmd)
	case "restore":
		if err := h.session.Restore(cmd.Data); err != nil {
			h.logger.Error("restore failed", "id", cmd.ID, "error", err)
		}
	case "reset":
		h.session.Reset(h.defs, h.agentID, h.headless)
		h.out.writeJSON(replcore.ResetResult{Type: "reset_result", ID: cmd.ID})
	default:
		h.logger.Error("unrecognised command", "type", cmd.Type)
	}
}

func (h *host) handleExec(ctx context.Context, cmd replcore.Command) {
	parsed, err := interp.Parse(cmd.Code)
	if err != nil {
		h.session.RecordTurn(cmd.Code, "", cmd.Code, "", errPtr(err))
		errStr := err.Error()
		h.out.writeJSON(replcore.ExecResult{Type: "exec_result", ID: cmd.ID, Error: &errStr})
		return
	}

	names, attrs := h.session.AutoDispatchSets(interp.FixedHandleMethods)
	sites := interp.TagAwaitSites(parsed.Stmts, names, attrs)

	capture := replcore.NewCapture()
	askFn := func(ctx context.Context, question string, options []string) (string, error) {
		payload, _ := json.Marshal(map[string]any{"question": question, "options": options})
		return h.bridge.AskUser(ctx, payload)
	}
	ev := interp.NewEvaluator(h.session.Namespace(), h.session.Registry(), capture, askFn, h.headless)
	ev.Sites = sites
	ev.SetSendMessage(h.bridge.SendMessage)

	runFn := func(ctx context.Context) (replcore.Turn, error) {
		var execErr *string
		if runErr := ev.RunBlock(ctx, parsed.Stmts); runErr != nil {
			execErr = errPtr(runErr)
		}
		output := capture.Finalize()
		turn := h.session.RecordTurn(cmd.Code, "", cmd.Code, output, execErr)
		return turn, nil
	}

	var turn replcore.Turn
	if h.inst != nil {
		turn, _ = telemetry.WrapTurnExec(ctx, h.inst, h.agentID, runFn)
	} else {
		turn, _ = runFn(ctx)
	}

	response, _ := ev.Done()
	h.out.writeJSON(replcore.ExecResult{
		Type:     "exec_result",
		ID:       cmd.ID,
		Output:   turn.Output,
		Response: response,
		Error:    turn.Error,
	})

	if h.snapStore != nil {
		h.persistSnapshot(ctx)
	}
}

func (h *host) handleSnapshot(ctx context.Context, cmd replcore.Command) {
	data, err := h.session.Snapshot()
	if err != nil {
		h.logger.Error("snapshot failed", "id", cmd.ID, "error", err)
		return
	}
	h.out.writeJSON(replcore.SnapshotResult{Type: "snapshot_result", ID: cmd.ID, Data: data})
}

func (h *host) persistSnapshot(ctx context.Context) {
	blob, err := h.session.Snapshot()
	if err != nil {
		h.logger.Error("snapshot for persistence failed", "error", err)
		return
	}
	historyJSON, memJSON, err := h.session.InheritFrom()
	if err != nil {
		h.logger.Error("serialising history/mem for persistence failed", "error", err)
		return
	}
	rec := replcore.SnapshotRecord{
		AgentID:       h.agentID,
		NamespaceBlob: blob,
		HistoryJSON:   historyJSON,
		MemJSON:       memJSON,
		UpdatedAtUnix: time.Now().Unix(),
	}
	if err := h.snapStore.Save(ctx, rec); err != nil {
		h.logger.Error("snapshot save failed", "agent_id", h.agentID, "error", err)
	}
}

func errPtr(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

func bytesTrim(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && (b[i] == ' ' || b[i] == '\n' || b[i] == '\r' || b[i] == '\t') {
		i++
	}
	for j > i && (b[j-1] == ' ' || b[j-1] == '\n' || b[j-1] == '\r' || b[j-1] == '\t') {
		j--
	}
	return b[i:j]
}
