package metrics

import (
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics holds Prometheus metrics for the vibe pipeline. It satisfies vibe.Observer.
type PipelineMetrics struct {
	ParameterClamps      *prometheus.CounterVec
	TranscriptsProcessed *prometheus.CounterVec
	ProcessingDuration   prometheus.Histogram
	Sentences            prometheus.Histogram
	FramesEmitted        *prometheus.CounterVec
	VibeComponent        *prometheus.GaugeVec
}

// NewPipelineMetrics creates and registers pipeline metrics on the given registry.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		ParameterClamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parameter_clamps_total",
			Help:      "Total number of out-of-range request parameters clamped into [0,1], by parameter.",
		}, []string{"param"}),
		TranscriptsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_processed_total",
			Help:      "Total number of transcripts processed, by outcome.",
		}, []string{"outcome"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcript_processing_duration_seconds",
			Help:      "Duration of transcript processing in seconds, extraction included.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		Sentences: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcript_sentences",
			Help:      "Number of sentences per transcript.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		FramesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_emitted_total",
			Help:      "Total number of frames emitted, by cause and result.",
		}, []string{"cause", "result"}),
		VibeComponent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vibe_component",
			Help:      "Last emitted vibe vector, by component.",
		}, []string{"component"}),
	}

	reg.MustRegister(m.ParameterClamps, m.TranscriptsProcessed, m.ProcessingDuration, m.Sentences, m.FramesEmitted, m.VibeComponent)
	return m
}

func (m *PipelineMetrics) ParameterClamped(param string) {
	m.ParameterClamps.WithLabelValues(param).Inc()
}

func (m *PipelineMetrics) TranscriptProcessed(outcome string, sentences int, duration time.Duration) {
	m.TranscriptsProcessed.WithLabelValues(outcome).Inc()
	m.ProcessingDuration.Observe(duration.Seconds())
	m.Sentences.Observe(float64(sentences))
}

func (m *PipelineMetrics) FrameEmitted(frame domain.Frame, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FramesEmitted.WithLabelValues(string(frame.Cause), result).Inc()
	for i, x := range frame.Vibe {
		m.VibeComponent.WithLabelValues(domain.ComponentName(i)).Set(x)
	}
}
