package driver

import "time"

type LoopOpt func(*Loop)

func WithQueueSize(size int) LoopOpt {
	return func(l *Loop) {
		if size > 0 {
			l.queueSize = size
		}
	}
}

type TickerOpt func(*Ticker)

func WithTickLength(tickLength time.Duration) TickerOpt {
	return func(t *Ticker) {
		if tickLength > 0 {
			t.tickLength = tickLength
		}
	}
}
