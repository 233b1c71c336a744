package eventloop

import (
	"errors"
	"fmt"

	"kmboard/pkg/kmeans/rpc"

	"github.com/rs/zerolog/log"
)

// Wrapper for handing event-loop-task skipping.
func withSkip(cfg *EventLoopConfig, interval int, task func()) {
	if cfg.internal.iter%interval == 0 {
		task()
	}
}

// Wrapper that iterates over all namespaces of the local node.
func withLocalNamespaces(cfg *EventLoopConfig, task func(namespace string)) {
	var err error
	namespaces := rpc.KMeansClient(cfg.LocalAddr, "", &err).Namespaces()
	if err != nil {
		log.Warn().Err(err).Str("node", cfg.LocalAddr).Msg("couldn't list namespaces")
		return
	}
	for _, ns := range namespaces {
		task(ns)
	}
}

// Event-loop task for advancing every board of the local node.
func eltAdvance(cfg *EventLoopConfig) {
	withSkip(cfg, cfg.TaskSkip.Advance, func() {
		withLocalNamespaces(cfg, func(namespace string) {
			var err error
			client := rpc.KMeansClient(cfg.LocalAddr, namespace, &err)
			stepped := client.Advance()

			// Board was reset after namespaces were listed.
			var nsErr rpc.NamespaceErr
			if errors.As(err, &nsErr) {
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("namespace", namespace).Msg("advance failed")
				return
			}
			if stepped {
				s := "[%v (ns '%v')] | task: advance"
				cfg.L.LogTask(fmt.Sprintf(s, cfg.LocalAddr, namespace))
			}
		})
	})
}

// Event-loop task for pulling metadata from the local node into the logger.
func eltMeta(cfg *EventLoopConfig) {
	withSkip(cfg, cfg.TaskSkip.Meta, func() {
		var err error
		meta := rpc.KMeansClient(cfg.LocalAddr, "", &err).Meta()
		if err != nil {
			log.Warn().Err(err).Str("node", cfg.LocalAddr).Msg("couldn't fetch metadata")
			return
		}
		cfg.L.LogMeta(meta)
	})
}
