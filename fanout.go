// fanout.go: Broadcast of the latest bundle to independent receivers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"sync"
)

type fanoutShared struct {
	mu        sync.Mutex
	current   *Bundle
	receivers []*fanoutSubscription
}

type fanoutSubscription struct {
	queue  *spscQueue[*Bundle]
	notify func()
}

// BundleProducer publishes bundles to every receiver.
type BundleProducer struct {
	shared *fanoutShared
}

// BundleReceiverFactory creates receivers starting at the current bundle.
// It is safe for concurrent use.
type BundleReceiverFactory struct {
	shared *fanoutShared
}

// NewBundleFanout creates a fanout whose current bundle is initial.
func NewBundleFanout(initial *Bundle) (*BundleProducer, *BundleReceiverFactory) {
	shared := &fanoutShared{current: initial}
	return &BundleProducer{shared: shared}, &BundleReceiverFactory{shared: shared}
}

// Produce makes b the current bundle and delivers it to every live receiver.
// Closed receivers are pruned. It returns the number of receivers reached.
func (p *BundleProducer) Produce(b *Bundle) int {
	var notifications []func()

	p.shared.mu.Lock()
	p.shared.current = b
	live := p.shared.receivers[:0]
	for _, sub := range p.shared.receivers {
		if !sub.queue.push(b) {
			continue
		}
		live = append(live, sub)
		if sub.notify != nil {
			notifications = append(notifications, sub.notify)
		}
	}
	for i := len(live); i < len(p.shared.receivers); i++ {
		p.shared.receivers[i] = nil
	}
	p.shared.receivers = live
	delivered := len(live)
	p.shared.mu.Unlock()

	for _, notify := range notifications {
		notify()
	}
	return delivered
}

// Current returns the last produced bundle.
func (p *BundleProducer) Current() *Bundle {
	p.shared.mu.Lock()
	defer p.shared.mu.Unlock()
	return p.shared.current
}

// ReceiverCount returns the number of registered receivers, including closed
// receivers not yet pruned.
func (p *BundleProducer) ReceiverCount() int {
	p.shared.mu.Lock()
	defer p.shared.mu.Unlock()
	return len(p.shared.receivers)
}

// NewReceiver registers a receiver starting at the current bundle.
func (f *BundleReceiverFactory) NewReceiver() *BundleReceiver {
	return f.NewReceiverWithNotify(nil)
}

// NewReceiverWithNotify registers a receiver and calls notify, outside of
// any lock, each time a bundle is delivered to it. Wrappers use it to ask
// the host for a main-thread callback.
func (f *BundleReceiverFactory) NewReceiverWithNotify(notify func()) *BundleReceiver {
	sub := &fanoutSubscription{queue: newSPSCQueue[*Bundle](), notify: notify}

	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()
	f.shared.receivers = append(f.shared.receivers, sub)
	return &BundleReceiver{sub: sub, current: f.shared.current}
}

// Current returns the bundle current when the factory was created.
func (f *BundleReceiverFactory) Current() *Bundle {
	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()
	return f.shared.current
}

// BundleReceiver follows the bundles published after its creation. It must
// be used from a single goroutine.
type BundleReceiver struct {
	sub     *fanoutSubscription
	current *Bundle
}

// Current returns the latest bundle observed by this receiver.
func (r *BundleReceiver) Current() *Bundle { return r.current }

// ReceiveNewBundle drains pending deliveries, keeping only the newest, and
// reports whether Current changed.
func (r *BundleReceiver) ReceiveNewBundle() bool {
	latest, ok := r.sub.queue.drainLast()
	if !ok {
		return false
	}
	r.current = latest
	return true
}

// Close detaches the receiver. It is pruned on the next Produce.
func (r *BundleReceiver) Close() {
	r.sub.queue.close()
}
