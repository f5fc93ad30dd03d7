/*
 * Copyright 2025 Mobyhook Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hook

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/riftworks/mobyhook/api"
)

// Branch labels for the invocation counter.
const (
	branchReset     = "reset"
	branchCollected = "collected"
	branchPass      = "pass"
	branchError     = "error"
)

// Metrics holds the hook-side counters. One Metrics may be shared by
// sibling hooks; branches separate them well enough in practice.
type Metrics struct {
	Invocations *prometheus.CounterVec
	Collections prometheus.Counter
}

// NewMetrics builds the hook counters and registers them with reg when reg
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mobyhook_invocations_total",
			Help: "Hook invocations by branch taken.",
		}, []string{"branch"}),
		Collections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mobyhook_collections_total",
			Help: "First-time collections counted by this process.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Invocations, m.Collections)
	}
	return m
}

// Collector exposes the host's live tracked state: the shared counter and
// the number of set flags. It reads through the session on every scrape.
type Collector struct {
	session  api.HostSession
	capacity int

	counterDesc *prometheus.Desc
	flagsDesc   *prometheus.Desc
}

// NewCollector builds a prometheus.Collector over session. capacity is the
// flags table size to scan.
func NewCollector(session api.HostSession, capacity int) *Collector {
	return &Collector{
		session:  session,
		capacity: capacity,
		counterDesc: prometheus.NewDesc(
			"mobyhook_host_counter",
			"Collection counter as stored in host memory.",
			nil, nil),
		flagsDesc: prometheus.NewDesc(
			"mobyhook_host_flags_set",
			"Flags table entries currently set in host memory.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.counterDesc
	ch <- c.flagsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	total, err := c.session.Counter()
	if err != nil {
		internalLogger.warnf("collector: counter read failed: %s", err.Error())
		return
	}
	ch <- prometheus.MustNewConstMetric(c.counterDesc, prometheus.GaugeValue, float64(total))

	set := 0
	for i := 0; i < c.capacity; i++ {
		flag, err := c.session.Flag(i)
		if err != nil {
			internalLogger.warnf("collector: flag %d read failed: %s", i, err.Error())
			return
		}
		if flag != 0 {
			set++
		}
	}
	ch <- prometheus.MustNewConstMetric(c.flagsDesc, prometheus.GaugeValue, float64(set))
}
