// Package notify sends operator alerts when a rebuild fails, falls back to
// the substitute dataset or produces network totals in the red band.
package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"gridloss/internal/lossengine/application/eventbus"
	"gridloss/internal/lossengine/application/events"
	"gridloss/internal/lossengine/domain/network"
)

const (
	EventFailed   = "failed"
	EventFallback = "fallback"
	EventRed      = "red"
)

// Clock provides time for dedupe windows.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

type message struct {
	key         string
	content     string
	fingerprint string
}

// Notifier renders rebuild events and delivers them on a channel. Delivery
// runs on its own goroutine so a slow webhook never holds up a rebuild.
type Notifier struct {
	channel      Channel
	template     *Template
	bands        network.Bands
	clock        Clock
	logger       *log.Logger
	timeout      time.Duration
	cooldown     time.Duration
	dedupeWindow time.Duration

	queue chan message
	mu    sync.Mutex
	sent  map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithBands sets the thresholds used to flag red snapshots.
func WithBands(bands network.Bands) Option {
	return func(n *Notifier) {
		n.bands = bands
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithCooldown sets a minimum interval between notifications of the same kind for a source.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithRequestTimeout bounds each delivery.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// NewNotifier constructs a notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("rebuild notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		bands:    network.DefaultBands(),
		clock:    systemClock{},
		logger:   log.Default(),
		timeout:  10 * time.Second,
		queue:    make(chan message, 32),
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Subscribe attaches the notifier to rebuild events.
func (n *Notifier) Subscribe(bus eventbus.EventBus) {
	eventbus.On(bus, func(_ context.Context, evt events.SnapshotRebuilt) error {
		n.OnRebuilt(evt)
		return nil
	})
	eventbus.On(bus, func(_ context.Context, evt events.RebuildFailed) error {
		n.OnFailed(evt)
		return nil
	})
}

// OnRebuilt queues a notification when the snapshot came from the fallback
// source or its network totals are red. Healthy snapshots are ignored.
func (n *Notifier) OnRebuilt(evt events.SnapshotRebuilt) {
	lossBand := n.bands.Loss(&evt.LossFc)
	slaBand := n.bands.SLA(&evt.SLADaily)

	kind := ""
	switch {
	case evt.Fallback:
		kind = EventFallback
	case lossBand == network.BandRed || slaBand == network.BandRed:
		kind = EventRed
	default:
		return
	}
	n.enqueue(kind, evt.Source, TemplateData{
		Event:      kind,
		EventLabel: eventLabel(kind),
		Source:     evt.Source,
		SnapshotID: evt.SnapshotID,
		Version:    evt.Version,
		Fallback:   evt.Fallback,
		LossFc:     formatFloat(evt.LossFc),
		LossBand:   string(lossBand),
		SLADaily:   formatFloat(evt.SLADaily),
		SLABand:    string(slaBand),
		Time:       evt.OccurredAt.UTC().Format(time.RFC3339),
	})
}

// OnFailed queues a failure notification.
func (n *Notifier) OnFailed(evt events.RebuildFailed) {
	n.enqueue(EventFailed, evt.Source, TemplateData{
		Event:      EventFailed,
		EventLabel: eventLabel(EventFailed),
		Source:     evt.Source,
		Reason:     evt.Reason,
		Time:       evt.OccurredAt.UTC().Format(time.RFC3339),
	})
}

// Run delivers queued notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.queue:
			n.deliver(ctx, msg)
		}
	}
}

func (n *Notifier) enqueue(kind, source string, data TemplateData) {
	content, err := n.template.Render(data)
	if err != nil {
		n.logger.Printf("notify render error: %v", err)
		return
	}
	select {
	case n.queue <- message{key: notificationKey(source, kind), content: content, fingerprint: fingerprint(data)}:
	default:
		n.logger.Printf("notify queue full, dropping %s notification for %s", kind, source)
	}
}

func (n *Notifier) deliver(ctx context.Context, msg message) {
	if !n.shouldSend(msg.key, msg.fingerprint) {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.channel.Send(sendCtx, msg.content); err != nil {
		n.logger.Printf("notify send error: %v", err)
		return
	}
	n.markSent(msg.key, msg.fingerprint)
}

func (n *Notifier) shouldSend(key, hash string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	now := n.clock.Now().UTC()

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(key, hash string) {
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hash,
	}
	n.mu.Unlock()
}

func eventLabel(kind string) string {
	switch kind {
	case EventFailed:
		return "Rebuild Failed"
	case EventFallback:
		return "Fallback Dataset"
	case EventRed:
		return "Red Totals"
	default:
		return kind
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func notificationKey(source, kind string) string {
	return source + "|" + kind
}

// fingerprint ignores the time and snapshot identity so a repeated condition
// dedupes across rebuilds.
func fingerprint(data TemplateData) string {
	data.Time = ""
	data.SnapshotID = ""
	data.Version = 0
	sum := sha1.Sum([]byte(fmt.Sprintf("%+v", data)))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
