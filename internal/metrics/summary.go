package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Sample is one labelled counter value of the operations_total family.
type Sample struct {
	Kind   string  `json:"kind"`
	Status string  `json:"status"`
	Value  float64 `json:"value"`
}

// Summarize gathers g and returns the operations_total samples sorted by
// kind then status. Families other than the dispatch counter are ignored.
func Summarize(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	name := prometheus.BuildFQName(namespace, subsystem, "operations_total")
	samples := []Sample{}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			s := Sample{Value: m.GetCounter().GetValue()}
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "kind":
					s.Kind = l.GetValue()
				case "status":
					s.Status = l.GetValue()
				}
			}
			samples = append(samples, s)
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Kind != samples[j].Kind {
			return samples[i].Kind < samples[j].Kind
		}
		return samples[i].Status < samples[j].Status
	})
	return samples, nil
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
