// Package bus is an in-process station for entity state change notifications.
// The gateway stays a polling surface, the bus only serves listeners inside
// the process: tests and bounded waits for a wanted state.
package bus

import (
	"sync"

	"github.com/findy-network/findy-issuer-agent/agent/psm"
)

type KeyType = psm.StateKey
type StateChan chan string

type stationMap map[KeyType][]StateChan

type Station struct {
	stationMap
	sync.Mutex
}

// WantAll is the station for all entity state transitions.
var WantAll = &Station{stationMap: make(stationMap)}

// AddListener registers a listener for key's state changes. The channel is
// buffered so a slow listener cannot block transitions.
func (s *Station) AddListener(key KeyType) StateChan {
	s.Lock()
	defer s.Unlock()

	c := make(StateChan, 8)
	s.stationMap[key] = append(s.stationMap[key], c)
	return c
}

// RmListener removes a previously added listener channel.
func (s *Station) RmListener(key KeyType, c StateChan) {
	s.Lock()
	defer s.Unlock()

	chans := s.stationMap[key]
	for i, ch := range chans {
		if ch == c {
			s.stationMap[key] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(s.stationMap[key]) == 0 {
		delete(s.stationMap, key)
	}
}

// Broadcast delivers a state name to every listener of key. Delivery never
// blocks, a full listener channel drops the notification.
func (s *Station) Broadcast(key KeyType, state string) {
	s.Lock()
	defer s.Unlock()

	for _, c := range s.stationMap[key] {
		select {
		case c <- state:
		default:
		}
	}
}
