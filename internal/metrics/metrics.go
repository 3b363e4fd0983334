// Package metrics 进件流程的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/paynext/mchapply/internal/constants"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mchapply"

// Metrics 指标集合，nil 接收者上的方法均为空操作
type Metrics struct {
	registry *prometheus.Registry

	// 渠道调用次数，按渠道、操作、结果码
	ChannelCalls *prometheus.CounterVec
	// 渠道调用耗时
	ChannelCallDuration *prometheus.HistogramVec
	// 状态流转次数
	Transitions *prometheus.CounterVec
	// 渠道通知次数，按渠道、结果
	Notifies *prometheus.CounterVec
}

// New 创建并注册指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChannelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "calls_total",
			Help:      "Channel adapter calls by channel, operation and result code",
		}, []string{"channel", "operation", "result"}),
		ChannelCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "call_duration_seconds",
			Help:      "Channel adapter call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"channel", "operation"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apply",
			Name:      "transitions_total",
			Help:      "Apply status transitions by channel and target status",
		}, []string{"channel", "from", "to"}),
		Notifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apply",
			Name:      "notifies_total",
			Help:      "Inbound channel notifications by channel and outcome",
		}, []string{"channel", "outcome"}),
	}
	m.registry.MustRegister(
		m.ChannelCalls,
		m.ChannelCallDuration,
		m.Transitions,
		m.Notifies,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler 指标端点
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveChannelCall 记录一次渠道调用
func (m *Metrics) ObserveChannelCall(channel, operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "OK"
	}
	m.ChannelCalls.WithLabelValues(channel, operation, result).Inc()
	m.ChannelCallDuration.WithLabelValues(channel, operation).Observe(elapsed.Seconds())
}

// ObserveTransition 记录一次状态流转
func (m *Metrics) ObserveTransition(channel string, from, to int) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(channel, constants.ApplyStatusName(from), constants.ApplyStatusName(to)).Inc()
}

// ObserveNotify 记录一次渠道通知
func (m *Metrics) ObserveNotify(channel, outcome string) {
	if m == nil {
		return
	}
	m.Notifies.WithLabelValues(channel, outcome).Inc()
}
