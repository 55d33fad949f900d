package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 应用指标集合
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	SlotTogglesTotal       *prometheus.CounterVec
	SchedulesGenerated     prometheus.Counter
	BookingsTotal          prometheus.Counter
	ModerationActionsTotal *prometheus.CounterVec
	AgentCallsTotal        *prometheus.CounterVec
	NotificationsReadTotal prometheus.Counter
	NotificationsSentTotal *prometheus.CounterVec
}

// NewCollector 在 reg 上注册全部指标；reg 为 nil 时使用默认注册表
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		SlotTogglesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "slot_toggles_total",
			Help:      "Slot toggle attempts by result.",
		}, []string{"result"}),

		SchedulesGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "day_schedules_generated_total",
			Help:      "Total day schedules generated from the default template.",
		}),

		BookingsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "bookings_total",
			Help:      "Total slots booked by patients.",
		}),

		ModerationActionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "moderation_actions_total",
			Help:      "Doctor moderation decisions by action.",
		}, []string{"action"}),

		AgentCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "agent_calls_total",
			Help:      "Chat agent webhook calls by result.",
		}, []string{"result"}),

		NotificationsReadTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "marked_read_total",
			Help:      "Total notifications marked read.",
		}),

		NotificationsSentTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notifications created by type.",
		}, []string{"type"}),
	}
}

// ── 业务埋点，接收者为 nil 时忽略 ──

// SlotToggled 记录一次时段切换结果
func (c *Collector) SlotToggled(result string) {
	if c != nil {
		c.SlotTogglesTotal.WithLabelValues(result).Inc()
	}
}

// ScheduleGenerated 记录生成一张出诊表
func (c *Collector) ScheduleGenerated() {
	if c != nil {
		c.SchedulesGenerated.Inc()
	}
}

// SlotBooked 记录一次预约
func (c *Collector) SlotBooked() {
	if c != nil {
		c.BookingsTotal.Inc()
	}
}

// Moderated 记录一次医生审核操作
func (c *Collector) Moderated(action string) {
	if c != nil {
		c.ModerationActionsTotal.WithLabelValues(action).Inc()
	}
}

// AgentCalled 记录一次导诊调用结果
func (c *Collector) AgentCalled(result string) {
	if c != nil {
		c.AgentCallsTotal.WithLabelValues(result).Inc()
	}
}

// NotificationsRead 记录标记已读条数
func (c *Collector) NotificationsRead(n int64) {
	if c != nil && n > 0 {
		c.NotificationsReadTotal.Add(float64(n))
	}
}

// NotificationSent 记录一条新通知
func (c *Collector) NotificationSent(kind string) {
	if c != nil {
		c.NotificationsSentTotal.WithLabelValues(kind).Inc()
	}
}

// Handler Prometheus 抓取端点
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor 指定注册表的抓取端点
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
