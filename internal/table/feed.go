package table

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/shapematch/internal/board"
	"github.com/robalobadob/shapematch/internal/game"
)

// Event names sent on a table's stream.
const (
	EventShape      = "shape"
	EventSilhouette = "silhouette"
	EventStatus     = "status"
	EventReport     = "report"
)

// ShapeEvent is the payload of a "shape" event.
type ShapeEvent struct {
	Shape      board.PlacedShape `json:"shape"`
	DurationMs int64             `json:"durationMs"`
	Easing     string            `json:"easing,omitempty"`
}

// Feed is a game.Renderer that turns every render call into a JSON event.
type Feed struct {
	hub *Broadcaster
}

// NewFeed publishes to hub.
func NewFeed(hub *Broadcaster) *Feed { return &Feed{hub: hub} }

func (f *Feed) RenderShape(u game.ShapeUpdate) {
	f.publish(EventShape, ShapeEvent{
		Shape:      u.Shape,
		DurationMs: u.Transition.Duration.Milliseconds(),
		Easing:     u.Transition.Easing,
	})
}

func (f *Feed) RenderSilhouette(s board.PlacedSilhouette) { f.publish(EventSilhouette, s) }

func (f *Feed) RenderStatus(s game.Status) { f.publish(EventStatus, s) }

func (f *Feed) RenderReport(r game.Report) { f.publish(EventReport, r) }

func (f *Feed) publish(name string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("encode event")
		return
	}
	f.hub.Publish(Event{Name: name, Data: b})
}
