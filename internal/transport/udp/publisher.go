// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "reactive/internal/log"
)

// BandSource exposes the latest smoothed band levels and the sequence number
// of the payload they came from. The controller implements this.
type BandSource interface {
	BandLevels() []float64
	Sequence() uint64
}

// Publisher periodically fetches band levels from a BandSource, packs them
// into a binary packet, and sends them over UDP. Packets whose sequence
// number has not advanced since the previous send are skipped, so an idle
// engine does not flood the wire.
type Publisher struct {
	sender   *Sender
	source   BandSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	lastSeq uint64

	// Reusable buffers for the hot path.
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a Publisher. If the interval is invalid (<= 0) it
// defaults to 33ms (~30Hz).
func NewPublisher(interval time.Duration, sender *Sender, source BandSource) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("udp publisher: band source cannot be nil")
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("UDP publisher: invalid interval provided, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publish goroutine. Safe to call more than once; a
// running publisher is left alone.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDP publisher: Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDP publisher: started (interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publish goroutine to exit and waits for it. Idempotent.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDP publisher: stopped")
	return nil
}

/*
Packet layout (BigEndian):

|<-- 4 Bytes -->|<---- 8 Bytes ---->|<- 2 Bytes ->|<--- N * 4 Bytes --->|
+---------------+-------------------+-------------+---------------------+
|   Sequence    |     Timestamp     | Band Count  |     Band Levels     |
|   (uint32)    |      (int64)      |  (uint16)   |    (N * float32)    |
+---------------+-------------------+-------------+---------------------+
*/

func (p *Publisher) buildAndSendPacket() {
	seq := p.source.Sequence()
	if seq == p.lastSeq {
		return // Nothing new since the last tick.
	}

	bands := p.source.BandLevels()
	if len(bands) == 0 {
		return
	}

	if cap(p.f32Buffer) < len(bands) {
		p.f32Buffer = make([]float32, len(bands))
	}
	p.f32Buffer = p.f32Buffer[:len(bands)]
	for i, v := range bands {
		p.f32Buffer[i] = float32(v)
	}

	p.lastSeq = seq
	timestamp := time.Now().UnixNano()

	p.packetBuffer.Reset()
	err := binary.Write(p.packetBuffer, binary.BigEndian, uint32(seq))
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.f32Buffer)))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer)
	}
	if err != nil {
		applog.Errorf("UDP publisher: error packing packet: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("UDP publisher: sent packet %d (%d bytes)", seq, len(packetBytes))
	}
}

// Close implements io.Closer by stopping the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
