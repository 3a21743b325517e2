package producer

import (
	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
	"github.com/danielpatrickdp/datasentinel/producer/internal/transport"
)

// #region state

// State is the loop's view of its session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// #endregion state

// #region stats

// Stats counts what the loop has done since it started.
type Stats struct {
	Connects uint64
	Sent     uint64
	Results  map[codec.Status]uint64
	Failures map[transport.Kind]uint64
}

// Evaluated returns the number of responses received, whatever their status.
func (s Stats) Evaluated() uint64 {
	var n uint64
	for _, c := range s.Results {
		n += c
	}
	return n
}

func newStats() Stats {
	return Stats{
		Results:  make(map[codec.Status]uint64),
		Failures: make(map[transport.Kind]uint64),
	}
}

func (s Stats) clone() Stats {
	out := Stats{
		Connects: s.Connects,
		Sent:     s.Sent,
		Results:  make(map[codec.Status]uint64, len(s.Results)),
		Failures: make(map[transport.Kind]uint64, len(s.Failures)),
	}
	for k, v := range s.Results {
		out.Results[k] = v
	}
	for k, v := range s.Failures {
		out.Failures[k] = v
	}
	return out
}

// #endregion stats
