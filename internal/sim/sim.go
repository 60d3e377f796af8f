// Package sim owns the periodic synthetic temperature source. Its lifecycle
// is driven exclusively by the view router: the ticker exists only while the
// dashboard view is active, and the simulation toggle additionally gates each
// tick so flipping it does not require a view transition.
package sim

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/gateway"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

type Simulator struct {
	interval  time.Duration
	min, max  float64
	topic     string
	publisher gateway.Publisher
	active    func() bool
	onReading func(float64)

	mu   sync.Mutex
	stop chan struct{}
}

// New builds a simulator. active reports whether ticks should produce a
// reading; onReading receives each generated value before it is published.
func New(interval time.Duration, min, max float64, topic string, publisher gateway.Publisher, active func() bool, onReading func(float64)) *Simulator {
	return &Simulator{
		interval:  interval,
		min:       min,
		max:       max,
		topic:     topic,
		publisher: publisher,
		active:    active,
		onReading: onReading,
	}
}

// Start launches the ticker. Calling Start on a running simulator replaces
// the existing timer rather than duplicating it.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
	}
	s.stop = make(chan struct{})
	go s.run(s.stop)
	util.LogInfo("Simulation timer started (every %v)", s.interval)
}

// Stop cancels the ticker. Stopping an already-stopped simulator is a no-op.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	util.LogInfo("Simulation timer stopped")
}

// Running reports whether the ticker currently exists.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Simulator) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Simulator) tick() {
	if s.active != nil && !s.active() {
		return
	}
	value := s.reading()
	if s.onReading != nil {
		s.onReading(value)
	}
	s.publisher.Publish(s.topic, strconv.FormatFloat(value, 'f', 1, 64))
}

// reading draws a uniform temperature in [min, max], one decimal.
func (s *Simulator) reading() float64 {
	value := s.min + rand.Float64()*(s.max-s.min)
	return float64(int(value*10)) / 10
}
