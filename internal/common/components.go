package common

const (
	ComponentPoller        = "poller"
	ComponentFetcher       = "fetcher"
	ComponentDecoder       = "decoder"
	ComponentDispatcher    = "dispatcher"
	ComponentBackfill      = "backfill"
	ComponentReorgDetector = "reorg-detector"
	ComponentStore         = "store"
	ComponentCoordinator   = "coordinator"
	ComponentNotifier      = "notifier"
	ComponentMaintenance   = "maintenance"
	ComponentAPI           = "api"
)

var AllComponents = map[string]struct{}{
	ComponentPoller:        {},
	ComponentFetcher:       {},
	ComponentDecoder:       {},
	ComponentDispatcher:    {},
	ComponentBackfill:      {},
	ComponentReorgDetector: {},
	ComponentStore:         {},
	ComponentCoordinator:   {},
	ComponentNotifier:      {},
	ComponentMaintenance:   {},
	ComponentAPI:           {},
}
