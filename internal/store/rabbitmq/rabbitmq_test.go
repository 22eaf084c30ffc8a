package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestTopologyNames(t *testing.T) {
	topo := newTopology("qbot_summaries")
	if topo.main != "qbot_summaries" || topo.retry != "qbot_summaries.retry" || topo.dlq != "qbot_summaries.dlq" {
		t.Fatalf("unexpected topology: %+v", topo)
	}
}

func TestAttemptOf(t *testing.T) {
	cases := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 1},
		{amqp.Table{attemptHeader: int32(2)}, 2},
		{amqp.Table{attemptHeader: int64(3)}, 3},
		{amqp.Table{attemptHeader: "bogus"}, 1},
	}
	for _, c := range cases {
		if got := attemptOf(amqp.Delivery{Headers: c.headers}); got != c.want {
			t.Errorf("attemptOf(%v) = %d, want %d", c.headers, got, c.want)
		}
	}
}
