package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/pixil98/go-realm/internal/geom"
)

// Rejection is one refused player move.
type Rejection struct {
	Time       time.Time `json:"time"`
	PlayerID   string    `json:"player_id"`
	Reason     string    `json:"reason"`
	From       geom.Vec3 `json:"from"`
	Proposed   geom.Vec3 `json:"proposed"`
	Correction geom.Vec3 `json:"correction"`
	Measured   float64   `json:"measured,omitempty"`
}

// Recorder receives every movement rejection. Implementations must not block
// the caller for long; Record is invoked from the driver loop.
type Recorder interface {
	Record(ctx context.Context, r Rejection)
}

// LogRecorder writes rejections to slog at warn level.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, r Rejection) {
	slog.WarnContext(ctx, "movement rejected",
		"player", r.PlayerID,
		"reason", r.Reason,
		"from", r.From,
		"proposed", r.Proposed,
		"correction", r.Correction,
		"measured", r.Measured,
	)
}

// Multi fans a rejection out to several recorders in order.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, r Rejection) {
	for _, rec := range m {
		rec.Record(ctx, r)
	}
}
