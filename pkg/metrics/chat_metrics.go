// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	sessionMetricSubsystem   = "session"
	registryMetricSubsystem  = "registry"
	broadcastMetricSubsystem = "broadcast"

	reasonLabelName = "reason"
)

// 会话终止原因，作为 SessionTerminations 的 reason 标签。
const (
	TerminateReasonExit       = "exit"
	TerminateReasonDisconnect = "disconnect"
	TerminateReasonProtocol   = "protocol"
	TerminateReasonTransport  = "transport"
	TerminateReasonShutdown   = "shutdown"
	TerminateReasonInvalid    = "invalid_state"
)

var (
	SessionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: roomchatNamespace,
		Subsystem: sessionMetricSubsystem,
		Name:      "accepted_total",
		Help:      "已接入并完成握手的连接数",
	})

	SessionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: roomchatNamespace,
		Subsystem: sessionMetricSubsystem,
		Name:      "rejected_total",
		Help:      "因会话数达到上限而被拒绝的连接数",
	})

	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: roomchatNamespace,
		Subsystem: sessionMetricSubsystem,
		Name:      "active",
		Help:      "正在运行的会话数",
	})

	SessionTerminations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: roomchatNamespace,
		Subsystem: sessionMetricSubsystem,
		Name:      "terminations_total",
		Help:      "按原因统计的会话终止次数",
	}, []string{reasonLabelName})

	RoomSwitches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: roomchatNamespace,
		Subsystem: sessionMetricSubsystem,
		Name:      "room_switches_total",
		Help:      "会话切换房间的次数",
	})

	RegistryMembers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: roomchatNamespace,
		Subsystem: registryMetricSubsystem,
		Name:      "members",
		Help:      "注册表中的会话数",
	})

	Broadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: roomchatNamespace,
		Subsystem: broadcastMetricSubsystem,
		Name:      "total",
		Help:      "广播次数",
	})

	BroadcastDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: roomchatNamespace,
		Subsystem: broadcastMetricSubsystem,
		Name:      "deliveries_total",
		Help:      "成功写出的广播副本数",
	})

	BroadcastFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: roomchatNamespace,
		Subsystem: broadcastMetricSubsystem,
		Name:      "failures_total",
		Help:      "写出失败的广播副本数",
	})

	BroadcastLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: roomchatNamespace,
		Subsystem: broadcastMetricSubsystem,
		Name:      "latency_ms",
		Help:      "单次广播持锁耗时（毫秒）",
		Buckets:   buckets,
	})
)

func registerChatMetrics(r prometheus.Registerer) {
	r.MustRegister(SessionsAccepted)
	r.MustRegister(SessionsRejected)
	r.MustRegister(SessionsActive)
	r.MustRegister(SessionTerminations)
	r.MustRegister(RoomSwitches)
	r.MustRegister(RegistryMembers)
	r.MustRegister(Broadcasts)
	r.MustRegister(BroadcastDeliveries)
	r.MustRegister(BroadcastFailures)
	r.MustRegister(BroadcastLatency)
}
