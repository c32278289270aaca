package common

import (
	"time"
)

// DefaultClientTimeout bounds how long the status HTTP server waits on a
// slow handler before giving up.
const DefaultClientTimeout = time.Minute

// DefaultPollerInterval is how often the Initialization Poller's cooperative
// tick runs when no explicit interval is configured.
const DefaultPollerInterval = 3 * time.Second

// DefaultClusterChanSize is a buffer size for node membership update
// channels. Nothing references it: the channels cloud/cluster and
// capsched create are unbuffered.
const DefaultClusterChanSize = 100
