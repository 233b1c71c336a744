package eventloop

import (
	"sort"

	"kmboard/pkg/kmeans/rpc"

	"github.com/rs/zerolog/log"
)

// MetaData is monitoring info pulled from the local node, see rpc.MetaData.
type MetaData = rpc.MetaData

// Logger is a logger for the event-loop used in this pkg. It is primarily used
// in EventLoopConfig. See method-specific docs for more details.
type Logger interface {
	// LogTask is called for each event-loop task that did something, with a
	// string containing the task name and some additional info such as
	// namespaces.
	LogTask(string)
	// LogMeta is intended to be used for system monitoring, with data
	// pulled from the local node.
	LogMeta(MetaData)
}

// defaultLogger writes through the global zerolog logger; tasks at debug
// level, metadata at info level with one line per board.
type defaultLogger struct {
	localAddr string
}

func (l *defaultLogger) LogTask(s string) {
	log.Debug().Str("node", l.localAddr).Msg(s)
}

func (l *defaultLogger) LogMeta(m MetaData) {
	// Iter like this instead of over m.Items directly because map order
	// is random.
	namespaces := make([]string, 0, len(m.Items))
	for ns := range m.Items {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		item := m.Items[ns]
		log.Info().
			Str("node", l.localAddr).
			Str("namespace", ns).
			Int("observations", item.Observations).
			Int("pending", item.Pending).
			Int("k", item.K).
			Int("iteration", item.Iteration).
			Int("emptyClusters", item.EmptyClusters).
			Bool("running", item.Running).
			Int("speed", item.Speed).
			Msg("board")
	}
}
