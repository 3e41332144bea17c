package stats

import (
	"log/slog"
	"sync"
	"time"
)

type StatsManager struct {
	Updates         chan StatusUpdate
	listeners       map[string]chan StatusUpdate
	toBeTerminated  map[string]chan bool
	mu              sync.RWMutex
	logger          *slog.Logger
	listenerTimeout time.Duration
}

func NewStatsManager(logger *slog.Logger, listenerTimeout time.Duration, updateBufferSize int) *StatsManager {
	return &StatsManager{
		Updates:         make(chan StatusUpdate, updateBufferSize),
		listeners:       make(map[string]chan StatusUpdate),
		toBeTerminated:  make(map[string]chan bool),
		logger:          logger,
		listenerTimeout: listenerTimeout,
	}
}

// Enqueue never blocks the invocation path: when the buffer is full the update is dropped.
func (s *StatsManager) Enqueue(su *StatusUpdate) {
	select {
	case s.Updates <- *su:
	default:
		s.logger.Warn("Updates channel is full, dropping update", "event", su.Event, "request_id", su.RequestID)
	}
}

func (s *StatsManager) AddListener(nodeID string, listener chan StatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A reconnecting node replaces its old channel; the old one may still be in use.
	delete(s.listeners, nodeID)

	s.listeners[nodeID] = listener
	s.logger.Info("Added listener with ID", "id", nodeID)
}

func (s *StatsManager) RemoveListener(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.toBeTerminated, nodeID)
	delete(s.listeners, nodeID)
	s.logger.Debug("Removed listener", "id", nodeID)
}

// GetListenerByID returns the channel of a known listener and cancels a pending removal.
func (s *StatsManager) GetListenerByID(nodeID string) chan StatusUpdate {
	s.mu.Lock()

	terminationCh, hasTermination := s.toBeTerminated[nodeID]
	updateChan, hasListener := s.listeners[nodeID]

	if !hasListener {
		s.mu.Unlock()
		return nil
	}

	if hasTermination {
		delete(s.toBeTerminated, nodeID)
		s.mu.Unlock()

		select {
		case terminationCh <- true:
		default:
			s.logger.Warn("Failed to signal termination channel", "node_id", nodeID)
		}
	} else {
		s.mu.Unlock()
	}

	return updateChan
}

// RemoveListenerAfterTimeout removes the listener unless it reconnects within the listener timeout.
func (s *StatsManager) RemoveListenerAfterTimeout(nodeID string) {
	terminationCh := make(chan bool, 1)

	s.mu.Lock()
	s.toBeTerminated[nodeID] = terminationCh
	s.logger.Info("Node set to be terminated", "id", nodeID)
	s.mu.Unlock()

	select {
	case <-terminationCh:
		s.logger.Debug("Termination cancelled for node", "id", nodeID)
	case <-time.After(s.listenerTimeout):
		s.mu.Lock()
		// Only remove if no reconnect replaced the pending termination.
		if s.toBeTerminated[nodeID] == terminationCh {
			delete(s.listeners, nodeID)
			delete(s.toBeTerminated, nodeID)
		}
		s.mu.Unlock()
		s.logger.Debug("Listener removed after timeout", "id", nodeID)
	}
}

// StartStreamingToListeners fans every update out to all listeners until Updates is closed.
// Full listeners miss the update.
func (s *StatsManager) StartStreamingToListeners() {
	for update := range s.Updates {
		s.mu.RLock()
		activeListeners := make(map[string]chan StatusUpdate, len(s.listeners))
		for nodeID, listener := range s.listeners {
			activeListeners[nodeID] = listener
		}
		s.mu.RUnlock()

		for nodeID, listener := range activeListeners {
			select {
			case listener <- update:
			default:
				s.logger.Debug("Listener is full, dropping update", "node_id", nodeID)
			}
		}
	}
}

// Close stops StartStreamingToListeners. Enqueue must not be called afterwards.
func (s *StatsManager) Close() {
	close(s.Updates)
}
