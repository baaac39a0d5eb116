package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsLLMMessagesSent is base for counter metric for total messages sent to LLM
	StatsLLMMessagesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_messages_sent",
		Help:         "stats_llm_messages_sent provides total messages sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total bytes sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_received",
		Help:         "stats_llm_bytes_received provides total bytes received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMTotalTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_total_tokens",
		Help:         "stats_llm_total_tokens provides total tokens sent and received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMParseErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_parse_errors",
		Help:         "stats_llm_parse_errors provides total tool call arguments the engine could not parse",
		RequiredTags: []string{"agent"},
	}

	StatsDecisionCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_decision_calls_succeeded",
		Help:         "stats_decision_calls_succeeded provides total decision engine calls succeeded",
		RequiredTags: []string{"agent"},
	}

	StatsDecisionCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_decision_calls_failed",
		Help:         "stats_decision_calls_failed provides total decision engine calls failed",
		RequiredTags: []string{"agent"},
	}

	StatsDecisionCallsRetried = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_decision_calls_retried",
		Help:         "stats_decision_calls_retried provides total decision engine calls retried on empty response",
		RequiredTags: []string{"agent"},
	}

	StatsRunsCompleted = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_runs_completed",
		Help:         "stats_runs_completed provides total orchestrator runs completed with an answer",
		RequiredTags: []string{"agent"},
	}

	StatsRunsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_runs_failed",
		Help:         "stats_runs_failed provides total orchestrator runs failed",
		RequiredTags: []string{"agent"},
	}

	StatsRunsIterationsExceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_runs_iterations_exceeded",
		Help:         "stats_runs_iterations_exceeded provides total orchestrator runs stopped at the iteration bound",
		RequiredTags: []string{"agent"},
	}

	StatsSessionsConnected = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_sessions_connected",
		Help:         "stats_sessions_connected provides total sessions that reached the Ready state",
		RequiredTags: []string{"server"},
	}

	StatsSessionsFaulted = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_sessions_faulted",
		Help:         "stats_sessions_faulted provides total sessions moved to the Faulted state",
		RequiredTags: []string{"server"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool", "kind"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsTimedOut = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_timed_out",
		Help:         "stats_tool_calls_timed_out provides total tool calls abandoned on timeout",
		RequiredTags: []string{"tool"},
	}
)

// Perf
var (
	PerfDecisionCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_decision_call",
		Help:         "perf_decision_call provides duration of decision engine call",
		RequiredTags: []string{"agent"},
	}

	PerfOrchestratorRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_orchestrator_run",
		Help:         "perf_orchestrator_run provides duration of orchestrator run",
		RequiredTags: []string{"agent"},
	}

	PerfSessionCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_session_call",
		Help:         "perf_session_call provides duration of tool call round trip",
		RequiredTags: []string{"tool"},
	}

	PerfSessionConnect = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_session_connect",
		Help:         "perf_session_connect provides duration of session startup and discovery",
		RequiredTags: []string{"server"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool handler execution",
		RequiredTags: []string{"tool"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfDecisionCall,
	&PerfOrchestratorRun,
	&PerfSessionCall,
	&PerfSessionConnect,
	&PerfToolCall,
	&StatsDecisionCallsFailed,
	&StatsDecisionCallsRetried,
	&StatsDecisionCallsSucceeded,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsLLMInputTokens,
	&StatsLLMMessagesSent,
	&StatsLLMOutputTokens,
	&StatsLLMParseErrors,
	&StatsLLMTotalTokens,
	&StatsRunsCompleted,
	&StatsRunsFailed,
	&StatsRunsIterationsExceeded,
	&StatsSessionsConnected,
	&StatsSessionsFaulted,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
	&StatsToolCallsTimedOut,
}
