package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-tester/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "op_tester"
)

var (
	Debug                bool = false
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusError, types.TestStatusDisabled}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of test outcomes",
	}, []string{
		"suite",
		"result",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Wall time of executed tests",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Number of tests per outcome in a run",
	}, []string{
		"run_id",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall clock duration of a run",
	}, []string{
		"run_id",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of completed runs",
	}, []string{
		"result",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordTest counts one test outcome. Disabled tests have no duration.
func RecordTest(suite string, result types.TestStatus, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordTest - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"suite", suite,
			"result", result)
	}
	testsTotal.WithLabelValues(suite, string(result)).Inc()
	if result != types.TestStatusDisabled {
		testDuration.WithLabelValues(string(result)).Observe(duration.Seconds())
	}
}

// RecordRun publishes the totals of a finished run.
func RecordRun(runID string, passed, failed, errored, disabled int, duration time.Duration) {
	runResults.WithLabelValues(runID, string(types.TestStatusPass)).Set(float64(passed))
	runResults.WithLabelValues(runID, string(types.TestStatusFail)).Set(float64(failed))
	runResults.WithLabelValues(runID, string(types.TestStatusError)).Set(float64(errored))
	runResults.WithLabelValues(runID, string(types.TestStatusDisabled)).Set(float64(disabled))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())

	result := "pass"
	if failed != 0 || errored != 0 {
		result = "fail"
	}
	runsTotal.WithLabelValues(result).Inc()
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}

// ResultSink feeds reporter results into the test counters.
type ResultSink struct{}

// NewResultSink creates a sink recording every reported result.
func NewResultSink() *ResultSink {
	return &ResultSink{}
}

// OnResult implements reporter.Sink.
func (ResultSink) OnResult(result types.TestResult) {
	RecordTest(result.ID.Suite, result.Status, result.Duration)
}
