package cluster

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Fetcher returns a full list of visible nodes, e.g. task trackers read
// from static configuration or discovered some other way.
type Fetcher interface {
	Fetch() ([]Node, error)
}

// FetchCron polls a Fetcher on an interval and publishes each successful
// snapshot on Ch, for a Cluster's stateCh to diff against its current view.
type FetchCron struct {
	Ch     chan []Node
	f      Fetcher
	ticker *time.Ticker
	closer chan struct{}
}

func NewFetchCron(f Fetcher, interval time.Duration, ch chan []Node) *FetchCron {
	c := &FetchCron{
		Ch:     ch,
		f:      f,
		ticker: time.NewTicker(interval),
		closer: make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *FetchCron) loop() {
	for {
		select {
		case <-c.ticker.C:
			nodes, err := c.f.Fetch()
			if err != nil {
				log.Errorf("cluster fetch failed: %v", err)
				continue
			}
			c.Ch <- nodes
		case <-c.closer:
			return
		}
	}
}

// Close stops polling.
func (c *FetchCron) Close() error {
	c.ticker.Stop()
	close(c.closer)
	return nil
}
