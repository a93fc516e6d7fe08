package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/turnscript/replcore"
)

// WrapTurnExec runs exec (the host's "parse, tag, evaluate a turn's script"
// step) inside a turn.execute span, recording a turn.executions counter and
// turn.duration histogram and emitting a structured log on completion —
// the agent-lifecycle decorator from the teacher's observer package,
// retargeted from agent.Execute onto a single REPL turn.
func WrapTurnExec(ctx context.Context, inst *Instruments, agentID string, exec func(context.Context) (replcore.Turn, error)) (replcore.Turn, error) {
	ctx, span := inst.Tracer.Start(ctx, "turn.execute", trace.WithAttributes(
		AttrAgentID.String(agentID),
	))
	defer span.End()
	start := time.Now()

	turn, err := exec(ctx)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if turn.Error != nil {
		status = "turn_error"
	}

	span.SetAttributes(
		AttrTurnIndex.Int(turn.Index),
		AttrTurnToolCalls.Int(len(turn.ToolCalls)),
		AttrTurnStatus.String(status),
	)

	inst.TurnExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrAgentID.String(agentID),
		attribute.String("status", status),
	))
	inst.TurnDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrAgentID.String(agentID),
	))

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("turn executed"))
	rec.AddAttributes(
		otellog.String("agent.id", agentID),
		otellog.Int("turn.index", turn.Index),
		otellog.String("turn.status", status),
		otellog.Float64("turn.duration_ms", durationMs),
	)
	inst.Logger.Emit(ctx, rec)

	return turn, err
}
