package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for tool-dispatch and turn-execution spans and metrics.
var (
	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")

	AttrAgentID       = attribute.Key("agent.id")
	AttrTurnIndex     = attribute.Key("turn.index")
	AttrTurnToolCalls = attribute.Key("turn.tool_calls")
	AttrTurnStatus    = attribute.Key("turn.status")
)
