package sweeper

type sweepMetrics struct {
	selected   int // markers inside the trailing window
	notified   int // markers dispatched this run
	suppressed int // markers skipped via the sent log
	delivered  int // successful push deliveries
	pruned     int // subscriptions pruned as gone
	errored    int // markers whose dispatch failed outright
}
